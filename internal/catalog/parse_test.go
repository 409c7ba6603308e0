package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseProductSpanishRow(t *testing.T) {
	raw, err := DecodeRow([]byte(`{
		"id": 7,
		"codigo": "GEL-30",
		"nombre_es": "Gel de ducha 30ml",
		"nombreEn": "Shower gel 30ml",
		"categoria": "bano",
		"precio": "0,45",
		"unidades_caja": "24",
		"escalones": "[{\"desde\":100,\"hasta\":499,\"precio\":\"0,40\"},{\"desde\":500,\"precio\":0.35}]",
		"plazo_entrega": 12,
		"activo": "no",
		"variantes": [
			{"id": "lav", "nombre": "Lavanda", "precio": "0.50"},
			{"nombre": "sin id"}
		]
	}`))
	require.NoError(t, err)

	p, err := ParseProduct(raw)
	require.NoError(t, err)
	require.Equal(t, "7", p.ID)
	require.Equal(t, "GEL-30", p.SKU)
	require.Equal(t, "Gel de ducha 30ml", p.Names["es"])
	require.Equal(t, "Shower gel 30ml", p.Names["en"])
	require.Equal(t, "bano", p.Category)
	require.Equal(t, "0.45", p.BasePrice.String())
	require.Equal(t, 24, p.BoxSize)
	require.Equal(t, 12, p.LeadTimeDays)
	require.False(t, p.Active)

	require.Len(t, p.Tiers, 2)
	require.Equal(t, 100, p.Tiers[0].Min())
	require.Equal(t, 499, *p.Tiers[0].MaxQty)
	require.Equal(t, "0.4", p.Tiers[0].Price.Decimal.String())
	require.True(t, p.Tiers[1].OpenEnded())
	require.Equal(t, "0.35", p.Tiers[1].Price.Decimal.String())

	require.Len(t, p.Variants, 1)
	require.Equal(t, "lav", p.Variants[0].ID)
	require.Equal(t, "Lavanda", p.Variants[0].Name)
	require.NotNil(t, p.Variants[0].BasePrice)
	require.Equal(t, "0.5", p.Variants[0].BasePrice.String())
}

func TestParseProductEnglishCamelCase(t *testing.T) {
	raw, err := DecodeRow([]byte(`{
		"id": "p-1",
		"name": "Soap",
		"basePrice": 1.2,
		"boxSize": 0,
		"priceTiers": [{"minQty": 1, "maxQty": 9, "price": 1.1}, {"minQty": 10, "price": null}]
	}`))
	require.NoError(t, err)

	p, err := ParseProduct(raw)
	require.NoError(t, err)
	require.Equal(t, "Soap", p.Name("fr"))
	require.Zero(t, p.BoxSize)
	require.True(t, p.Active)
	require.Len(t, p.Tiers, 2)
	require.False(t, p.Tiers[1].Price.Valid)
}

func TestParseProductRequiresID(t *testing.T) {
	_, err := ParseProduct(map[string]any{"name": "orphan"})
	require.ErrorIs(t, err, ErrMissingID)

	_, err = ParseCategory(map[string]any{"name": "orphan"})
	require.ErrorIs(t, err, ErrMissingID)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(map[string]any{"slug": "bano", "nombre_es": "Baño", "name_en": "Bathroom", "parent_id": "amenities"})
	require.NoError(t, err)
	require.Equal(t, "bano", c.ID)
	require.Equal(t, "Bathroom", c.Name("en"))
	require.Equal(t, "Baño", c.Name("de"))
	require.Equal(t, "amenities", c.ParentID)
}

func TestParseDecimalFormats(t *testing.T) {
	cases := []struct {
		in   any
		want string
		ok   bool
	}{
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"12,5", "12.5", true},
		{"€ 3", "3", true},
		{"2,40 €", "2.4", true},
		{42, "42", true},
		{"abc", "", false},
		{"", "", false},
		{nil, "", false},
	}
	for _, tc := range cases {
		got, ok := parseDecimal(tc.in)
		require.Equal(t, tc.ok, ok, "input %v", tc.in)
		if tc.ok {
			require.Equal(t, tc.want, got.String(), "input %v", tc.in)
		}
	}
}

func TestParseTiersDegradesGracefully(t *testing.T) {
	require.Nil(t, ParseTiers("not json"))
	require.Nil(t, ParseTiers(nil))
	require.Nil(t, ParseTiers(map[string]any{"min": 1}))

	tiers := ParseTiers([]any{
		map[string]any{"min": "x", "price": "y"},
		"garbage",
	})
	require.Len(t, tiers, 1)
	require.Nil(t, tiers[0].MinQty)
	require.False(t, tiers[0].Price.Valid)
}

func TestParseTiersDropsNegativeAndOversizedValues(t *testing.T) {
	tiers := ParseTiers([]any{
		map[string]any{"min": -5, "max": "1e30", "price": "-0.10"},
		map[string]any{"min": "10", "max": -1, "price": "0.25"},
	})
	require.Len(t, tiers, 2)
	require.Nil(t, tiers[0].MinQty)
	require.Nil(t, tiers[0].MaxQty)
	require.False(t, tiers[0].Price.Valid)

	require.Equal(t, 10, *tiers[1].MinQty)
	require.Nil(t, tiers[1].MaxQty)
	require.True(t, tiers[1].Price.Valid)
	require.Equal(t, "0.25", tiers[1].Price.Decimal.String())
}

func TestParseIntRejectsOverflow(t *testing.T) {
	for _, in := range []any{"1e30", "-1e30", json.Number("9223372036854775808")} {
		_, ok := parseInt(in)
		require.False(t, ok, "input %v", in)
	}
	n, ok := parseInt("12,9")
	require.True(t, ok)
	require.Equal(t, 12, n)
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{"sí": true, "1": true, "false": false, "no": false} {
		got, ok := parseBool(in)
		require.True(t, ok)
		require.Equal(t, want, got, in)
	}
	_, ok := parseBool("maybe")
	require.False(t, ok)
}
