package proposal

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

const proposalTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Short}}</title>
<style>
@page { size: A4; margin: 18mm 14mm; }
body { font-family: Helvetica, Arial, sans-serif; font-size: 11px; color: #222; }
h1 { font-size: 20px; margin: 0 0 4px; }
.meta { color: #666; margin-bottom: 18px; }
table { width: 100%; border-collapse: collapse; }
th, td { padding: 6px 4px; border-bottom: 1px solid #ddd; text-align: left; vertical-align: top; }
td.num, th.num { text-align: right; white-space: nowrap; }
tr { page-break-inside: avoid; }
.notes { color: #666; font-size: 10px; }
.totals { margin-top: 14px; width: 40%; margin-left: auto; }
.totals td { border: none; }
.grand td { font-weight: bold; border-top: 2px solid #222; }
</style>
</head>
<body>
<h1>{{.Title}} {{.Short}}</h1>
<div class="meta">
{{with .Client.Company}}<strong>{{.}}</strong><br>{{end}}
{{.Client.Name}}{{with .Client.Email}} &middot; {{.}}{{end}}{{with .Client.Phone}} &middot; {{.}}{{end}}<br>
{{.Date}}
</div>
<table>
<thead><tr><th>SKU</th><th>Product</th><th class="num">Qty</th><th class="num">Unit</th><th class="num">Total</th></tr></thead>
<tbody>
{{range .Lines}}<tr>
<td>{{.SKU}}</td>
<td>{{.Name}}{{with .Variant}} ({{.}}){{end}}{{with .Notes}}<div class="notes">{{.}}</div>{{end}}</td>
<td class="num">{{.Quantity}}</td>
<td class="num">{{.Unit}}</td>
<td class="num">{{.Total}}</td>
</tr>
{{end}}</tbody>
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
{{if .HasDiscount}}<tr><td>Discount</td><td class="num">-{{.Discount}}</td></tr>{{end}}
<tr><td>Tax</td><td class="num">{{.Tax}}</td></tr>
<tr class="grand"><td>Total</td><td class="num">{{.Total}}</td></tr>
</table>
{{with .Client.Notes}}<p class="notes">{{.}}</p>{{end}}
</body>
</html>
`

// HTMLRenderer renders a proposal as a printable HTML document.
type HTMLRenderer struct {
	tmpl  *template.Template
	Title string
	Lang  string
	Now   func() time.Time
}

// NewHTMLRenderer parses the proposal template.
func NewHTMLRenderer(title, lang string) *HTMLRenderer {
	if title == "" {
		title = "Proposal"
	}
	if lang == "" {
		lang = "es"
	}
	return &HTMLRenderer{
		tmpl:  template.Must(template.New("proposal").Parse(proposalTemplate)),
		Title: title,
		Lang:  lang,
		Now:   time.Now,
	}
}

type renderLine struct {
	SKU      string
	Name     string
	Variant  string
	Notes    string
	Quantity int
	Unit     string
	Total    string
}

type renderData struct {
	Title       string
	Lang        string
	Short       string
	Date        string
	Client      Client
	Lines       []renderLine
	Subtotal    string
	HasDiscount bool
	Discount    string
	Tax         string
	Total       string
}

// Render writes p as HTML to w.
func (r *HTMLRenderer) Render(w io.Writer, p Proposal) error {
	money := func(d decimal.Decimal) string { return formatMoney(d, p.Currency) }
	date := p.UpdatedAt
	if date.IsZero() {
		date = r.Now()
	}
	data := renderData{
		Title:       r.Title,
		Lang:        r.Lang,
		Short:       shortID(p),
		Date:        date.Format("02/01/2006"),
		Client:      p.Client,
		Subtotal:    money(p.Totals.Subtotal),
		HasDiscount: p.Totals.Discount.IsPositive(),
		Discount:    money(p.Totals.Discount),
		Tax:         money(p.Totals.Tax),
		Total:       money(p.Totals.Total),
	}
	for _, l := range p.Lines {
		data.Lines = append(data.Lines, renderLine{
			SKU:      l.SKU,
			Name:     l.Name,
			Variant:  l.VariantName,
			Notes:    l.Notes,
			Quantity: l.Quantity,
			Unit:     formatUnit(l.Price, p.Currency),
			Total:    money(l.Total()),
		})
	}
	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render proposal: %w", err)
	}
	return nil
}

// RenderBytes is Render into a buffer.
func (r *HTMLRenderer) RenderBytes(p Proposal) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func shortID(p Proposal) string {
	s := p.ID.String()
	if len(s) < 8 {
		return s
	}
	return "#" + s[:8]
}

func formatMoney(d decimal.Decimal, currency string) string {
	return d.StringFixed(2) + " " + currency
}

// formatUnit keeps sub-cent unit prices such as 0.035 readable.
func formatUnit(d decimal.Decimal, currency string) string {
	if d.Exponent() < -2 {
		return d.String() + " " + currency
	}
	return formatMoney(d, currency)
}
