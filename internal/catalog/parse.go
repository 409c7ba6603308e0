package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gmeppo/eppo-proposals/internal/pricing"
)

// ErrMissingID is returned when a raw record carries no usable identifier.
var ErrMissingID = errors.New("catalog: record has no id")

var nameLanguages = []string{"es", "pt", "en", "fr"}

var (
	keysBasePrice = []string{"base_price", "basePrice", "price", "precio", "precio_base"}
	keysBoxSize   = []string{"box_size", "boxSize", "unidades_caja", "unidadesCaja", "units_per_box"}
	keysTiers     = []string{"price_tiers", "priceTiers", "tiers", "escalones", "precios_escalonados"}
	keysVariants  = []string{"variants", "variantes"}
	keysCategory  = []string{"category_id", "categoryId", "category", "categoria"}
	keysImage     = []string{"image_url", "imageUrl", "imagen", "image"}
	keysLeadTime  = []string{"lead_time_days", "leadTimeDays", "plazo_entrega", "plazoEntrega"}
	keysActive    = []string{"active", "activo", "is_active"}
	keysSKU       = []string{"sku", "codigo", "ref"}
	keysTierMin   = []string{"minQty", "min_qty", "min", "cantidad_min", "desde"}
	keysTierMax   = []string{"maxQty", "max_qty", "max", "cantidad_max", "hasta"}
	keysTierPrice = []string{"price", "unitPrice", "unit_price", "precio"}
)

// DecodeRow decodes a JSON object preserving numbers as json.Number.
func DecodeRow(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	return raw, nil
}

// ParseProduct builds a Product from a loosely typed catalog row. Malformed
// fields are dropped instead of failing the record; only a missing id is an
// error.
func ParseProduct(raw map[string]any) (Product, error) {
	id := parseString(lookup(raw, "id"))
	if id == "" {
		return Product{}, ErrMissingID
	}
	p := Product{
		ID:       id,
		SKU:      parseString(lookup(raw, keysSKU...)),
		Names:    parseNames(raw),
		Category: parseString(lookup(raw, keysCategory...)),
		Tiers:    ParseTiers(lookup(raw, keysTiers...)),
		ImageURL: parseString(lookup(raw, keysImage...)),
		Active:   true,
	}
	if price, ok := parseDecimal(lookup(raw, keysBasePrice...)); ok {
		p.BasePrice = price
	}
	if box, ok := parseInt(lookup(raw, keysBoxSize...)); ok && box > 0 {
		p.BoxSize = box
	}
	if days, ok := parseInt(lookup(raw, keysLeadTime...)); ok && days > 0 {
		p.LeadTimeDays = days
	}
	if active, ok := parseBool(lookup(raw, keysActive...)); ok {
		p.Active = active
	}
	for _, item := range asList(lookup(raw, keysVariants...)) {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := parseVariant(m); ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return p, nil
}

// ParseCategory builds a Category from a loosely typed row.
func ParseCategory(raw map[string]any) (Category, error) {
	id := parseString(lookup(raw, "id", "slug"))
	if id == "" {
		return Category{}, ErrMissingID
	}
	return Category{
		ID:       id,
		Names:    parseNames(raw),
		ParentID: parseString(lookup(raw, "parent_id", "parentId")),
	}, nil
}

// ParseTiers accepts a list of tier objects, or a JSON string holding one,
// and returns every entry that is an object. Unparseable or negative bounds
// and prices are left empty.
func ParseTiers(v any) pricing.TierTable {
	items := asList(v)
	if len(items) == 0 {
		return nil
	}
	tiers := make(pricing.TierTable, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var tier pricing.PriceTier
		if lo, ok := parseInt(lookup(m, keysTierMin...)); ok && lo >= 0 {
			tier.MinQty = &lo
		}
		if hi, ok := parseInt(lookup(m, keysTierMax...)); ok && hi >= 0 {
			tier.MaxQty = &hi
		}
		if price, ok := parseDecimal(lookup(m, keysTierPrice...)); ok && !price.IsNegative() {
			tier.Price = decimal.NewNullDecimal(price)
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

func parseVariant(m map[string]any) (Variant, bool) {
	id := parseString(lookup(m, "id", "sku", "codigo"))
	if id == "" {
		return Variant{}, false
	}
	v := Variant{
		ID:    id,
		Name:  parseString(lookup(m, "name", "nombre", "label", "nombre_es")),
		SKU:   parseString(lookup(m, keysSKU...)),
		Tiers: ParseTiers(lookup(m, keysTiers...)),
	}
	if price, ok := parseDecimal(lookup(m, keysBasePrice...)); ok {
		v.BasePrice = &price
	}
	return v, true
}

func parseNames(raw map[string]any) map[string]string {
	names := map[string]string{}
	for _, lang := range nameLanguages {
		suffix := strings.ToUpper(lang[:1]) + lang[1:]
		name := parseString(lookup(raw, "nombre_"+lang, "nombre"+suffix, "name_"+lang, "name"+suffix))
		if name != "" {
			names[lang] = name
		}
	}
	if _, ok := names[DefaultLanguage]; !ok {
		if name := parseString(lookup(raw, "nombre", "name", "title")); name != "" {
			names[DefaultLanguage] = name
		}
	}
	return names
}

// lookup returns the first non-nil value stored under any of keys.
func lookup(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []map[string]any:
		out := make([]any, 0, len(t))
		for _, m := range t {
			out = append(out, m)
		}
		return out
	case string:
		trimmed := strings.TrimSpace(t)
		if !strings.HasPrefix(trimmed, "[") {
			return nil
		}
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var out []any
		if err := dec.Decode(&out); err != nil {
			return nil
		}
		return out
	default:
		return nil
	}
}

func parseString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return ""
		}
		return decimal.NewFromFloat(t).String()
	case int, int32, int64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}

// parseDecimal accepts numbers and numeric strings, including comma decimal
// separators and currency symbols.
func parseDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		s := strings.TrimSpace(t)
		s = strings.NewReplacer("€", "", "$", "", " ", "", "\u00a0", "").Replace(s)
		if s == "" {
			return decimal.Decimal{}, false
		}
		comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
		switch {
		case comma >= 0 && dot >= 0 && comma > dot:
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		case comma >= 0 && dot >= 0:
			s = strings.ReplaceAll(s, ",", "")
		case comma >= 0:
			s = strings.Replace(s, ",", ".", 1)
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

var (
	maxIntDecimal = decimal.NewFromInt(math.MaxInt32)
	minIntDecimal = decimal.NewFromInt(math.MinInt32)
)

// parseInt truncates v to an integer. Values outside the int32 range are
// rejected rather than wrapped.
func parseInt(v any) (int, bool) {
	d, ok := parseDecimal(v)
	if !ok {
		return 0, false
	}
	d = d.Truncate(0)
	if d.GreaterThan(maxIntDecimal) || d.LessThan(minIntDecimal) {
		return 0, false
	}
	return int(d.IntPart()), true
}

func parseBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "si", "sí", "t":
			return true, true
		case "false", "0", "no", "f":
			return false, true
		}
	case json.Number:
		return t.String() != "0", true
	}
	return false, false
}
