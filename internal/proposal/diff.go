package proposal

import (
	"fmt"
	"time"

	"github.com/gmeppo/eppo-proposals/internal/cart"
)

// ChangeKind names the kind of edit made to a proposal line.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeRemoved  ChangeKind = "removed"
	ChangeQuantity ChangeKind = "quantity"
	ChangeVariant  ChangeKind = "variant"
	ChangePrice    ChangeKind = "price"
	ChangeNotes    ChangeKind = "notes"
)

// Change is one difference between two versions of a proposal.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	LineID    string     `json:"lineId"`
	ProductID string     `json:"productId"`
	Name      string     `json:"name"`
	From      string     `json:"from,omitempty"`
	To        string     `json:"to,omitempty"`
}

// ChangeEntry groups the changes recorded by one save.
type ChangeEntry struct {
	At      time.Time `json:"at"`
	Changes []Change  `json:"changes"`
}

// Diff compares two versions of a proposal's lines by line id. Removed and
// modified lines follow the order of before; added lines follow after.
func Diff(before, after []cart.LineItem) []Change {
	next := make(map[string]cart.LineItem, len(after))
	for _, l := range after {
		next[l.ID] = l
	}
	prev := make(map[string]struct{}, len(before))

	var changes []Change
	for _, old := range before {
		prev[old.ID] = struct{}{}
		cur, ok := next[old.ID]
		if !ok {
			changes = append(changes, change(ChangeRemoved, old, "", ""))
			continue
		}
		if old.VariantID != cur.VariantID {
			changes = append(changes, change(ChangeVariant, cur, variantLabel(old), variantLabel(cur)))
		}
		if old.Quantity != cur.Quantity {
			changes = append(changes, change(ChangeQuantity, cur, fmt.Sprint(old.Quantity), fmt.Sprint(cur.Quantity)))
		}
		if !old.Price.Equal(cur.Price) {
			changes = append(changes, change(ChangePrice, cur, old.Price.StringFixed(2), cur.Price.StringFixed(2)))
		}
		if old.Notes != cur.Notes {
			changes = append(changes, change(ChangeNotes, cur, old.Notes, cur.Notes))
		}
	}
	for _, l := range after {
		if _, ok := prev[l.ID]; !ok {
			changes = append(changes, change(ChangeAdded, l, "", fmt.Sprint(l.Quantity)))
		}
	}
	return changes
}

// ChangeLog renders changes as one readable sentence each.
func ChangeLog(changes []Change) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		switch c.Kind {
		case ChangeAdded:
			out = append(out, fmt.Sprintf("Added %s (%s units)", c.Name, c.To))
		case ChangeRemoved:
			out = append(out, fmt.Sprintf("Removed %s", c.Name))
		case ChangeQuantity:
			out = append(out, fmt.Sprintf("%s: quantity %s -> %s", c.Name, c.From, c.To))
		case ChangeVariant:
			out = append(out, fmt.Sprintf("%s: variant %s -> %s", c.Name, c.From, c.To))
		case ChangePrice:
			out = append(out, fmt.Sprintf("%s: unit price %s -> %s", c.Name, c.From, c.To))
		case ChangeNotes:
			out = append(out, fmt.Sprintf("%s: notes updated", c.Name))
		}
	}
	return out
}

func change(kind ChangeKind, l cart.LineItem, from, to string) Change {
	name := l.Name
	if name == "" {
		name = l.ProductID
	}
	return Change{Kind: kind, LineID: l.ID, ProductID: l.ProductID, Name: name, From: from, To: to}
}

func variantLabel(l cart.LineItem) string {
	switch {
	case l.VariantName != "":
		return l.VariantName
	case l.VariantID != "":
		return l.VariantID
	default:
		return "-"
	}
}
