// Package payload assembles the form-encoded invoice submission.
package payload

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"neon2retro/internal/reconcile"
	"neon2retro/pkg/models"
)

// TotalMode selects how the header TotalAmount is derived.
type TotalMode string

const (
	// TotalRecompute sums every slot total and falls back to the source
	// total when the sum is zero.
	TotalRecompute TotalMode = "recompute"

	// TotalSource passes the source total_amount through.
	TotalSource TotalMode = "source"
)

// ParseTotalMode accepts "", "recompute" and "source".
func ParseTotalMode(s string) (TotalMode, error) {
	switch TotalMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TotalRecompute:
		return TotalRecompute, nil
	case TotalSource:
		return TotalSource, nil
	}
	return "", fmt.Errorf("unknown total amount mode %q", s)
}

// Settings holds the destination constants stamped on every header.
type Settings struct {
	Currency               string
	CostCenter             string
	CargoType              string
	CharterType            string
	PurchaseOrderReference string
	ReferencePrefix        string
	TotalMode              TotalMode
}

// Payload is one ready-to-send submission.
type Payload struct {
	Data       string   // JSON header
	GSTData    []string // One JSON object per tax slot
	CostData   []string // One JSON object per cost slot
	MasterEdit string

	// Reference and TotalAmount mirror the header for logging and verification.
	Reference   string
	TotalAmount decimal.Decimal
}

// Form encodes the payload as the destination's form fields.
func (p *Payload) Form() url.Values {
	form := url.Values{}
	form.Set("data", p.Data)
	for _, g := range p.GSTData {
		form.Add("gstData", g)
	}
	for _, c := range p.CostData {
		form.Add("aCostData", c)
	}
	form.Set("masterEdit", p.MasterEdit)
	return form
}

// Encode returns the url-encoded request body.
func (p *Payload) Encode() string {
	return p.Form().Encode()
}

// Builder turns reconciled invoices into payloads.
type Builder struct {
	settings Settings
	now      func() time.Time
}

// NewBuilder creates a Builder stamping dates from the wall clock.
func NewBuilder(settings Settings) *Builder {
	if settings.TotalMode == "" {
		settings.TotalMode = TotalRecompute
	}
	return &Builder{settings: settings, now: time.Now}
}

// WithClock replaces the clock used for remarks and references.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build assembles the payload for one invoice.
func (b *Builder) Build(inv *models.Invoice, taxes []reconcile.TaxSlot, costs []reconcile.CostSlot) (*Payload, error) {
	if inv == nil {
		return nil, fmt.Errorf("build payload: nil invoice")
	}

	now := b.now()
	totals := reconcile.Sum(taxes, costs)
	total := b.totalAmount(inv, totals)
	reference := b.reference(inv, now)

	hdr := header{
		Status:                                 "",
		ApprovalStatus:                         "",
		InternalReference:                      "",
		DryDockInvoice:                         false,
		Date:                                   inv.InvoiceDate,
		DueDate:                                inv.InvoiceDueDate,
		ReceivedDate:                           inv.ReceivedDate,
		CounterParty:                           inv.VendorID,
		ReferenceNumber:                        reference,
		Type:                                   inv.InvoiceType,
		SubTotal:                               money(totals.SubTotal),
		Remark:                                 remark(inv, now),
		Currency:                               b.settings.Currency,
		Location:                               inv.OfficeVessel,
		PendingAssignment:                      true,
		Organization:                           inv.OrgID,
		Department:                             inv.Department,
		TotalAmount:                            money(total),
		AdditionalCostTotal:                    money(totals.AdditionalCostTotal),
		GSTTotal:                               money(totals.GSTTotal),
		CostCenter:                             b.settings.CostCenter,
		CorrespondingProformaInvoice:           inv.CorrespondingProformaInvoice,
		CorrespondingProformaInvoiceExternalID: "",
		RCMApplicable:                          false,
		CargoType:                              b.settings.CargoType,
		CharterType:                            b.settings.CharterType,
		PurchaseOrderID:                        inv.PurchaseOrderNo,
		PurchaseOrderRetroNETReference:         b.settings.PurchaseOrderReference,
		IsServicePurchaseOrder:                 true,
		TakeOverExpense:                        false,
	}

	data, err := json.Marshal(hdr)
	if err != nil {
		return nil, fmt.Errorf("marshal header for invoice %d: %w", inv.ID, err)
	}

	p := &Payload{
		Data:        string(data),
		MasterEdit:  "false",
		Reference:   reference,
		TotalAmount: total,
	}

	for _, s := range taxes {
		raw, err := json.Marshal(newGSTEntry(s))
		if err != nil {
			return nil, fmt.Errorf("marshal gst slot %d%%: %w", s.Rate, err)
		}
		p.GSTData = append(p.GSTData, string(raw))
	}

	for _, c := range costs {
		raw, err := json.Marshal(newCostEntry(c))
		if err != nil {
			return nil, fmt.Errorf("marshal cost slot %s: %w", c.Name, err)
		}
		p.CostData = append(p.CostData, string(raw))
	}

	return p, nil
}

func (b *Builder) totalAmount(inv *models.Invoice, totals reconcile.Totals) decimal.Decimal {
	if b.settings.TotalMode == TotalSource {
		return inv.TotalAmount
	}
	if totals.GrandTotal.IsZero() {
		return inv.TotalAmount
	}
	return totals.GrandTotal
}

// reference is "<prefix>-<MMDDhhmmss>-<id>", or the source invoice number
// when no prefix is configured.
func (b *Builder) reference(inv *models.Invoice, now time.Time) string {
	if b.settings.ReferencePrefix == "" && inv.InvoiceNo != "" {
		return inv.InvoiceNo
	}
	prefix := b.settings.ReferencePrefix
	if prefix == "" {
		prefix = "NEON"
	}
	return prefix + "-" + now.Format("0102150405") + "-" + strconv.FormatInt(inv.ID, 10)
}

func remark(inv *models.Invoice, now time.Time) string {
	r := "Migrated from Neon on " + now.Format("02/01/2006")
	if inv.InvoiceNo != "" {
		r += " (invoice " + inv.InvoiceNo + ")"
	}
	return r
}

// money rounds to cents for the wire. The destination parses JSON numbers.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}
