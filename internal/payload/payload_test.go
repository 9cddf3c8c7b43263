package payload_test

import (
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"neon2retro/internal/payload"
	"neon2retro/internal/reconcile"
	"neon2retro/pkg/models"
)

type stubTokens struct{}

func (stubTokens) GSTRate(rate int) string          { return fmt.Sprintf("22!G!rate-%d", rate) }
func (stubTokens) AdditionalCost(name string) string { return "1!G!" + name }

var fixedNow = time.Date(2024, 7, 9, 14, 5, 30, 0, time.UTC)

func settings() payload.Settings {
	return payload.Settings{
		Currency:        "17!G!inr",
		CostCenter:      "14!G!center",
		CargoType:       "9!G!cargo",
		CharterType:     "tc",
		ReferencePrefix: "NEON",
	}
}

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		ID:           42,
		VendorID:     "V-1",
		OrgID:        "ORG-1",
		InvoiceType:  "Service",
		InvoiceNo:    "INV-001",
		InvoiceDate:  "2024-03-15T00:00:00.000Z",
		OfficeVessel: "MV Example",
		TotalAmount:  decimal.RequireFromString("9999"),
		TaxDetails: []models.TaxDetail{
			{TaxRate: decimal.NewFromInt(18), SGST: decimal.NewFromInt(90), CGST: decimal.NewFromInt(90), HSNSAC: "9983"},
		},
		AdditionalCosts: []models.AdditionalCost{
			{Type: "Courier Charge", Amount: decimal.NewFromInt(100)},
		},
	}
}

func build(t *testing.T, s payload.Settings, inv *models.Invoice) (*payload.Payload, map[string]any) {
	t.Helper()

	taxes, costs := reconcile.New(stubTokens{}).Reconcile(inv.TaxDetails, inv.AdditionalCosts)
	p, err := payload.NewBuilder(s).WithClock(func() time.Time { return fixedNow }).Build(inv, taxes, costs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var hdr map[string]any
	if err := json.Unmarshal([]byte(p.Data), &hdr); err != nil {
		t.Fatalf("data is not JSON: %v", err)
	}
	return p, hdr
}

func TestBuildHeader(t *testing.T) {
	p, hdr := build(t, settings(), sampleInvoice())

	want := map[string]any{
		"CounterParty":           "V-1",
		"Organization":           "ORG-1",
		"Type":                   "Service",
		"Location":               "MV Example",
		"Date":                   "2024-03-15T00:00:00.000Z",
		"DueDate":                "",
		"ReferenceNumber":        "NEON-0709140530-42",
		"Currency":               "17!G!inr",
		"CostCenter":             "14!G!center",
		"CargoType":              "9!G!cargo",
		"CharterType":            "tc",
		"SubTotal":               1000.0,
		"GSTTotal":               180.0,
		"AdditionalCostTotal":    100.0,
		"TotalAmount":            1280.0,
		"PendingAssignment":      true,
		"isServicePurchaseOrder": true,
		"DryDockInvoice":         false,
	}
	for key, v := range want {
		if hdr[key] != v {
			t.Errorf("header[%s] = %v, want %v", key, hdr[key], v)
		}
	}

	if remark, _ := hdr["Remark"].(string); remark != "Migrated from Neon on 09/07/2024 (invoice INV-001)" {
		t.Errorf("Remark = %q", remark)
	}
	if p.Reference != "NEON-0709140530-42" {
		t.Errorf("Reference = %q", p.Reference)
	}
}

func TestBuildTotalModes(t *testing.T) {
	tests := []struct {
		name   string
		mode   payload.TotalMode
		taxes  bool
		wantTo float64
	}{
		{"recompute uses slot totals", payload.TotalRecompute, true, 1280},
		{"recompute falls back to source", payload.TotalRecompute, false, 9999},
		{"source passes through", payload.TotalSource, true, 9999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := sampleInvoice()
			if !tt.taxes {
				inv.TaxDetails = nil
				inv.AdditionalCosts = nil
			}
			s := settings()
			s.TotalMode = tt.mode

			_, hdr := build(t, s, inv)
			if hdr["TotalAmount"] != tt.wantTo {
				t.Errorf("TotalAmount = %v, want %v", hdr["TotalAmount"], tt.wantTo)
			}
		})
	}
}

func TestBuildReferenceWithoutPrefix(t *testing.T) {
	s := settings()
	s.ReferencePrefix = ""

	p, _ := build(t, s, sampleInvoice())
	if p.Reference != "INV-001" {
		t.Errorf("Reference = %q, want source invoice number", p.Reference)
	}
}

func TestBuildSlots(t *testing.T) {
	p, _ := build(t, settings(), sampleInvoice())

	if len(p.GSTData) != 6 || len(p.CostData) != 4 {
		t.Fatalf("got %d gst and %d cost entries, want 6 and 4", len(p.GSTData), len(p.CostData))
	}

	var gst map[string]any
	if err := json.Unmarshal([]byte(p.GSTData[4]), &gst); err != nil {
		t.Fatal(err)
	}
	if gst["Rate"] != 18.0 || gst["Amount"] != 1000.0 || gst["Total"] != 1180.0 || gst["GSTType"] != "na" {
		t.Errorf("18%% entry = %v", gst)
	}
	if gst["GSTRate"] != "22!G!rate-18" || gst["HSN_SAC"] != "9983" {
		t.Errorf("18%% entry tokens = %v", gst)
	}
	if _, ok := gst["externalid"]; !ok {
		t.Error("gst entry missing externalid key")
	}

	var cost map[string]any
	if err := json.Unmarshal([]byte(p.CostData[0]), &cost); err != nil {
		t.Fatal(err)
	}
	if cost["Name"] != "Cess" || cost["Amount"] != 100.0 || cost["AdditionalCost"] != "1!G!Cess" || cost["GSTRate"] != "" {
		t.Errorf("first cost entry = %v", cost)
	}
	if _, ok := cost["TaxAmount"]; !ok {
		t.Error("cost entry missing TaxAmount key")
	}
}

func TestForm(t *testing.T) {
	p, _ := build(t, settings(), sampleInvoice())

	form, err := url.ParseQuery(p.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if len(form["data"]) != 1 || len(form["gstData"]) != 6 || len(form["aCostData"]) != 4 {
		t.Errorf("unexpected field counts: data=%d gstData=%d aCostData=%d",
			len(form["data"]), len(form["gstData"]), len(form["aCostData"]))
	}
	if form.Get("masterEdit") != "false" {
		t.Errorf("masterEdit = %q", form.Get("masterEdit"))
	}
}

func TestParseTotalMode(t *testing.T) {
	for in, want := range map[string]payload.TotalMode{"": payload.TotalRecompute, "Source": payload.TotalSource, "recompute": payload.TotalRecompute} {
		got, err := payload.ParseTotalMode(in)
		if err != nil || got != want {
			t.Errorf("ParseTotalMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := payload.ParseTotalMode("guess"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestBuildNilInvoice(t *testing.T) {
	if _, err := payload.NewBuilder(settings()).Build(nil, nil, nil); err == nil {
		t.Error("expected error for nil invoice")
	}
}
