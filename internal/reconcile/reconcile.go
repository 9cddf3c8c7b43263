// Package reconcile maps free-form tax and cost breakdowns onto the
// destination's fixed tables: six GST rate slots and four cost slots.
package reconcile

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"neon2retro/internal/logger"
	"neon2retro/pkg/models"
)

// RequiredRates are the GST rates the destination expects, in order.
var RequiredRates = []int{0, 3, 5, 12, 18, 28}

// CostCategories are the destination's cost slots, in order.
var CostCategories = []string{"Cess", "Courier Charge", "Transportation Charge", "Delivery Charge"}

var hundred = decimal.NewFromInt(100)

// TaxSlot is one row of the fixed GST table.
type TaxSlot struct {
	Rate     int
	Amount   decimal.Decimal // Taxable base
	TaxTotal decimal.Decimal
	Total    decimal.Decimal
	IGST     decimal.Decimal
	CGST     decimal.Decimal
	SGST     decimal.Decimal
	HSNSAC   string
	Token    string
}

// CostSlot is one row of the fixed additional-cost table.
type CostSlot struct {
	Name       string
	SourceType string // Name the source used for this cost, if any
	Amount     decimal.Decimal
	TaxRate    decimal.Decimal
	TaxTotal   decimal.Decimal
	Total      decimal.Decimal
	HSNSAC     string
	RateToken  string // GST token of TaxRate, empty when untaxed
	Token      string
}

// Reconciler builds the fixed tables for one invoice at a time.
type Reconciler struct {
	tokens Tokens
	log    zerolog.Logger
}

// New creates a Reconciler. A nil tokens source falls back to DefaultTokens.
func New(tokens Tokens) *Reconciler {
	if tokens == nil {
		tokens = DefaultTokens()
	}
	return &Reconciler{
		tokens: tokens,
		log:    logger.WithComponent("reconcile"),
	}
}

// Reconcile produces exactly len(RequiredRates) tax slots and
// len(CostCategories) cost slots, in table order.
func (r *Reconciler) Reconcile(taxes []models.TaxDetail, costs []models.AdditionalCost) ([]TaxSlot, []CostSlot) {
	return r.TaxSlots(taxes), r.CostSlots(costs)
}

// TaxSlots reconciles the tax breakdown.
func (r *Reconciler) TaxSlots(taxes []models.TaxDetail) []TaxSlot {
	byRate := r.lookup(taxes)

	slots := make([]TaxSlot, 0, len(RequiredRates))
	for _, rate := range RequiredRates {
		slot := TaxSlot{Rate: rate, Token: r.tokens.GSTRate(rate)}

		if src, ok := byRate[rate]; ok {
			fraction := decimal.NewFromInt(int64(rate)).Div(hundred)
			taxSum := src.TaxSum()

			slot.Amount = taxSum.Div(fraction).Round(2)
			slot.TaxTotal = slot.Amount.Mul(fraction).Round(2)
			slot.Total = slot.Amount.Add(slot.TaxTotal)
			slot.IGST = src.IGST
			slot.CGST = src.CGST
			slot.SGST = src.SGST
			slot.HSNSAC = src.HSNSAC
		}

		slots = append(slots, slot)
	}
	return slots
}

// lookup indexes usable tax entries by integer rate. Entries sharing a
// rate are summed and the first non-empty HSN code is kept.
func (r *Reconciler) lookup(taxes []models.TaxDetail) map[int]models.TaxDetail {
	byRate := make(map[int]models.TaxDetail, len(taxes))

	for _, td := range taxes {
		if !td.TaxRate.IsPositive() || !td.TaxSum().IsPositive() {
			continue
		}

		rate, ok := requiredRate(td.TaxRate)
		if !ok {
			r.log.Warn().
				Str("tax_rate", td.TaxRate.String()).
				Str("tax_sum", td.TaxSum().StringFixed(2)).
				Msg("Dropping tax entry with unsupported rate")
			continue
		}

		existing, seen := byRate[rate]
		if !seen {
			byRate[rate] = td
			continue
		}

		r.log.Debug().Int("rate", rate).Msg("Merging tax entries with the same rate")
		existing.SGST = existing.SGST.Add(td.SGST)
		existing.CGST = existing.CGST.Add(td.CGST)
		existing.IGST = existing.IGST.Add(td.IGST)
		if existing.HSNSAC == "" {
			existing.HSNSAC = td.HSNSAC
		}
		byRate[rate] = existing
	}

	return byRate
}

// CostSlots fills the cost table positionally. Costs beyond the last
// slot are dropped.
func (r *Reconciler) CostSlots(costs []models.AdditionalCost) []CostSlot {
	if len(costs) > len(CostCategories) {
		for _, extra := range costs[len(CostCategories):] {
			r.log.Warn().
				Str("type", extra.Type).
				Str("amount", extra.Amount.StringFixed(2)).
				Msg("Dropping additional cost with no free slot")
		}
	}

	slots := make([]CostSlot, 0, len(CostCategories))
	for i, name := range CostCategories {
		slot := CostSlot{Name: name, Token: r.tokens.AdditionalCost(name)}

		if i < len(costs) {
			src := costs[i]
			if src.Type != "" && src.Type != name {
				r.log.Debug().
					Str("source_type", src.Type).
					Str("slot", name).
					Msg("Placing additional cost by position")
			}

			slot.SourceType = src.Type
			slot.Amount = src.Amount
			slot.TaxRate = src.TaxRate
			slot.TaxTotal = src.Amount.Mul(src.TaxRate).Div(hundred).Round(2)
			slot.Total = slot.Amount.Add(slot.TaxTotal)
			slot.HSNSAC = src.HSNSAC

			if rate, ok := requiredRate(src.TaxRate); ok && rate > 0 {
				slot.RateToken = r.tokens.GSTRate(rate)
			}
		}

		slots = append(slots, slot)
	}
	return slots
}

func requiredRate(d decimal.Decimal) (int, bool) {
	if !d.Equal(d.Truncate(0)) {
		return 0, false
	}
	rate := int(d.IntPart())
	for _, r := range RequiredRates {
		if r == rate {
			return rate, true
		}
	}
	return 0, false
}

// Totals are the header aggregates derived from the fixed tables.
type Totals struct {
	SubTotal            decimal.Decimal // Sum of tax slot bases
	GSTTotal            decimal.Decimal // Sum of tax slot taxes
	AdditionalCostTotal decimal.Decimal // Sum of cost slot totals
	GrandTotal          decimal.Decimal
}

// Sum aggregates both tables.
func Sum(taxes []TaxSlot, costs []CostSlot) Totals {
	var t Totals
	for _, s := range taxes {
		t.SubTotal = t.SubTotal.Add(s.Amount)
		t.GSTTotal = t.GSTTotal.Add(s.TaxTotal)
	}
	for _, c := range costs {
		t.AdditionalCostTotal = t.AdditionalCostTotal.Add(c.Total)
	}
	t.GrandTotal = t.SubTotal.Add(t.GSTTotal).Add(t.AdditionalCostTotal)
	return t
}
