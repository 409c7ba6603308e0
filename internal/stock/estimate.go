package stock

// Status summarises how a line will be fulfilled.
type Status string

const (
	StatusInStock Status = "in_stock"
	StatusPartial Status = "partial"
	StatusOnOrder Status = "on_order"
)

// Policy holds the delivery lead times applied to an estimate.
type Policy struct {
	InStockDays   int
	BackorderDays int
	// LeadTimeDays is the product's own replenishment time. When positive it
	// replaces BackorderDays.
	LeadTimeDays int
}

// Delivery is the fulfilment estimate for one line.
type Delivery struct {
	Status      Status `json:"status"`
	FromStock   int    `json:"fromStock"`
	Backordered int    `json:"backordered"`
	Days        int    `json:"days"`
}

// Estimate splits quantity between available stock and backorder.
func Estimate(available, quantity int, policy Policy) Delivery {
	available = max(available, 0)
	quantity = max(quantity, 0)
	backorderDays := policy.BackorderDays
	if policy.LeadTimeDays > 0 {
		backorderDays = policy.LeadTimeDays
	}
	switch {
	case available >= quantity:
		return Delivery{Status: StatusInStock, FromStock: quantity, Days: policy.InStockDays}
	case available == 0:
		return Delivery{Status: StatusOnOrder, Backordered: quantity, Days: backorderDays}
	default:
		return Delivery{
			Status:      StatusPartial,
			FromStock:   available,
			Backordered: quantity - available,
			Days:        max(backorderDays, policy.InStockDays),
		}
	}
}
