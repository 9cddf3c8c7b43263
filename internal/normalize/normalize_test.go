package normalize_test

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"neon2retro/internal/normalize"
	"neon2retro/pkg/models"
)

func TestDecodeListDoubleEncodedMatchesSingle(t *testing.T) {
	single := `[{"tax_rate":18,"sgst":45,"cgst":45,"hsn_sac":"9965"},{"tax_rate":5,"igst":12.5}]`
	double := `"[{\"tax_rate\":18,\"sgst\":45,\"cgst\":45,\"hsn_sac\":\"9965\"},{\"tax_rate\":5,\"igst\":12.5}]"`

	want, ok := normalize.DecodeList(single)
	if !ok {
		t.Fatal("DecodeList(single) failed")
	}
	got, ok := normalize.DecodeList(double)
	if !ok {
		t.Fatal("DecodeList(double) failed")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("double encoded = %#v, want %#v", got, want)
	}
}

func TestDate(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"empty string", "", ""},
		{"garbage", "not a date", ""},
		{"bare date", "2024-03-15", "2024-03-15T00:00:00.000Z"},
		{"bare date september", "2025-09-02", "2025-09-02T00:00:00.000Z"},
		{"space separated", "2024-03-15 10:30:00", "2024-03-15T10:30:00.000Z"},
		{"iso no zone", "2024-03-15T10:30:00", "2024-03-15T10:30:00.000Z"},
		{"rfc3339 utc", "2024-03-15T10:30:00Z", "2024-03-15T10:30:00.000Z"},
		{"rfc3339 fraction", "2024-03-15T10:30:00.123456Z", "2024-03-15T10:30:00.123Z"},
		{"rfc3339 offset", "2024-03-15T10:30:00+05:30", "2024-03-15T05:00:00.000Z"},
		{"time value", time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), "2024-03-15T10:30:00.000Z"},
		{"time value with zone", time.Date(2024, 3, 15, 10, 30, 0, 0, ist), "2024-03-15T05:00:00.000Z"},
		{"zero time", time.Time{}, ""},
		{"bytes", []byte("2024-01-02"), "2024-01-02T00:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize.Date(tt.in); got != tt.want {
				t.Errorf("Date(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNumeric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "0.00"},
		{"float", 1500.5, "1500.50"},
		{"int", 42, "42.00"},
		{"int64", int64(7), "7.00"},
		{"string", "123.456", "123.46"},
		{"padded string", "  10 ", "10.00"},
		{"bad string", "abc", "0.00"},
		{"bytes", []byte("99.9"), "99.90"},
		{"json number", json.Number("18"), "18.00"},
		{"decimal", decimal.RequireFromString("2.5"), "2.50"},
		{"bool", true, "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalize.Numeric(tt.in).StringFixed(2); got != tt.want {
				t.Errorf("Numeric(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		wantLen int
		wantOK  bool
	}{
		{"nil", nil, 0, true},
		{"empty string", "", 0, true},
		{"json list", `[{"tax_rate":18}]`, 1, true},
		{"double encoded", `"[{\"tax_rate\":18},{\"tax_rate\":5}]"`, 2, true},
		{"bytes", []byte(`[1,2,3]`), 3, true},
		{"decoded slice", []any{map[string]any{"a": 1}}, 1, true},
		{"object", `{"tax_rate":18}`, 0, true},
		{"number", `42`, 0, true},
		{"invalid", `[{"tax_rate":`, 0, false},
		{"double encoded invalid", `"[{oops"`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalize.DecodeList(tt.in)
			if len(got) != tt.wantLen || ok != tt.wantOK {
				t.Errorf("DecodeList(%v) = (%d items, %v), want (%d items, %v)", tt.in, len(got), ok, tt.wantLen, tt.wantOK)
			}
		})
	}
}

func TestNormalizeKeepsRawOnInvalidJSON(t *testing.T) {
	inv := normalize.Normalize(models.Row{
		models.ColID:              int64(9),
		models.ColTaxDetails:      "{broken",
		models.ColAdditionalCosts: "[]",
	})

	if inv.RawTaxDetails != "{broken" {
		t.Errorf("RawTaxDetails = %q, want %q", inv.RawTaxDetails, "{broken")
	}
	if len(inv.TaxDetails) != 0 {
		t.Errorf("TaxDetails = %v, want empty", inv.TaxDetails)
	}
	if inv.RawAdditionalCosts != "" {
		t.Errorf("RawAdditionalCosts = %q, want empty", inv.RawAdditionalCosts)
	}
}

func TestNormalizeSkipsNonObjectEntries(t *testing.T) {
	inv := normalize.Normalize(models.Row{
		models.ColTaxDetails: `[1, "x", {"tax_rate": "5", "sgst": 10, "cgst": 10, "hsn_sac": 9983}]`,
	})

	if len(inv.TaxDetails) != 1 {
		t.Fatalf("TaxDetails has %d entries, want 1", len(inv.TaxDetails))
	}
	td := inv.TaxDetails[0]
	if !td.TaxRate.Equal(decimal.NewFromInt(5)) || !td.TaxSum().Equal(decimal.NewFromInt(20)) {
		t.Errorf("unexpected entry %+v", td)
	}
	if td.HSNSAC != "9983" {
		t.Errorf("HSNSAC = %q, want 9983", td.HSNSAC)
	}
}

func TestNormalizeEmptyRow(t *testing.T) {
	inv := normalize.Normalize(models.Row{})
	if inv.ID != 0 || inv.InvoiceNo != "" || inv.InvoiceDate != "" || !inv.TotalAmount.IsZero() {
		t.Errorf("empty row should normalize to zero values, got %+v", inv)
	}
}

func ExampleNormalize() {
	inv := normalize.Normalize(models.Row{
		"id":               int64(42),
		"vendor_id":        "V-100",
		"invoice_no":       " INV/2024/001 ",
		"invoice_date":     "2024-03-15",
		"invoice_due_date": nil,
		"total_amount":     "1500.5",
		"tax_details":      `"[{\"tax_rate\": 18, \"sgst\": 90, \"cgst\": 90, \"igst\": 0, \"hsn_sac\": \"9983\"}]"`,
		"additional_costs": `[{"type": "Courier Charge", "amount": 100, "tax_rate": 18}]`,
	})

	fmt.Println(inv.ID, inv.VendorID, inv.InvoiceNo)
	fmt.Printf("date=%s due=%q\n", inv.InvoiceDate, inv.InvoiceDueDate)
	fmt.Println(inv.TotalAmount.StringFixed(2))
	fmt.Println(len(inv.TaxDetails), inv.TaxDetails[0].TaxSum().StringFixed(2))
	fmt.Println(inv.AdditionalCosts[0].Type, inv.AdditionalCosts[0].Amount.StringFixed(2))
	// Output:
	// 42 V-100 INV/2024/001
	// date=2024-03-15T00:00:00.000Z due=""
	// 1500.50
	// 1 180.00
	// Courier Charge 100.00
}
