// Package normalize turns raw invoice rows into canonical records.
//
// Normalization never fails: anything that cannot be coerced degrades to
// the zero value of its kind (empty string, zero amount, empty list).
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"neon2retro/pkg/models"
)

// DateLayout is the destination date format. Values are always in UTC.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Kind describes how a source column is coerced.
type Kind string

const (
	KindText    Kind = "text"
	KindDate    Kind = "date"
	KindNumeric Kind = "numeric"
	KindJSON    Kind = "json"
	KindInteger Kind = "integer"
)

// Field maps a source column to the destination header key it feeds.
type Field struct {
	Column string `json:"column"`
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
}

// Fields is the column table used by Normalize. Target is empty for
// columns that are read but not sent.
var Fields = []Field{
	{Column: models.ColID, Kind: KindInteger},
	{Column: models.ColVendorID, Kind: KindText, Target: "CounterParty"},
	{Column: models.ColOrgID, Kind: KindText, Target: "Organization"},
	{Column: models.ColInvoiceType, Kind: KindText, Target: "Type"},
	{Column: models.ColCorrespondingProformaInvoice, Kind: KindText, Target: "CorrespondingProformaInvoice"},
	{Column: models.ColInvoiceNo, Kind: KindText, Target: "ReferenceNumber"},
	{Column: models.ColInvoiceDate, Kind: KindDate, Target: "Date"},
	{Column: models.ColInvoiceDueDate, Kind: KindDate, Target: "DueDate"},
	{Column: models.ColPurchaseOrderNo, Kind: KindText, Target: "PurchaseOrderId"},
	{Column: models.ColReceivedDate, Kind: KindDate, Target: "ReceivedDate"},
	{Column: models.ColOfficeVessel, Kind: KindText, Target: "Location"},
	{Column: models.ColCurrency, Kind: KindText},
	{Column: models.ColTotalAmount, Kind: KindNumeric, Target: "TotalAmount"},
	{Column: models.ColAdditionalCosts, Kind: KindJSON, Target: "aCostData"},
	{Column: models.ColAdditionalCostsTotal, Kind: KindNumeric},
	{Column: models.ColTaxDetails, Kind: KindJSON, Target: "gstData"},
	{Column: models.ColTaxDetailsTotal, Kind: KindNumeric},
	{Column: models.ColIGSTTotal, Kind: KindNumeric},
	{Column: models.ColDepartment, Kind: KindText, Target: "Department"},
	{Column: models.ColAssignee, Kind: KindText},
	{Column: models.ColInvoiceFile, Kind: KindText},
	{Column: models.ColSupportingDocuments, Kind: KindText},
	{Column: models.ColCreatedAt, Kind: KindDate},
	{Column: models.ColUpdatedAt, Kind: KindDate},
}

// Normalize converts a row into an Invoice. Missing columns are treated as null.
func Normalize(row models.Row) *models.Invoice {
	inv := &models.Invoice{
		ID:                           Integer(row[models.ColID]),
		VendorID:                     Text(row[models.ColVendorID]),
		OrgID:                        Text(row[models.ColOrgID]),
		InvoiceType:                  Text(row[models.ColInvoiceType]),
		CorrespondingProformaInvoice: Text(row[models.ColCorrespondingProformaInvoice]),
		InvoiceNo:                    Text(row[models.ColInvoiceNo]),
		PurchaseOrderNo:              Text(row[models.ColPurchaseOrderNo]),
		OfficeVessel:                 Text(row[models.ColOfficeVessel]),
		Currency:                     Text(row[models.ColCurrency]),
		InvoiceDate:                  Date(row[models.ColInvoiceDate]),
		InvoiceDueDate:               Date(row[models.ColInvoiceDueDate]),
		ReceivedDate:                 Date(row[models.ColReceivedDate]),
		TotalAmount:                  Numeric(row[models.ColTotalAmount]),
		AdditionalCostsTotal:         Numeric(row[models.ColAdditionalCostsTotal]),
		TaxDetailsTotal:              Numeric(row[models.ColTaxDetailsTotal]),
		IGSTTotal:                    Numeric(row[models.ColIGSTTotal]),
		Department:                   Text(row[models.ColDepartment]),
		Assignee:                     Text(row[models.ColAssignee]),
		InvoiceFile:                  Text(row[models.ColInvoiceFile]),
		SupportingDocuments:          Text(row[models.ColSupportingDocuments]),
	}

	taxes, ok := DecodeList(row[models.ColTaxDetails])
	if !ok {
		inv.RawTaxDetails = Text(row[models.ColTaxDetails])
	}
	for _, entry := range taxes {
		obj, isObj := entry.(map[string]any)
		if !isObj {
			continue
		}
		inv.TaxDetails = append(inv.TaxDetails, models.TaxDetail{
			TaxRate: Numeric(obj["tax_rate"]),
			SGST:    Numeric(obj["sgst"]),
			CGST:    Numeric(obj["cgst"]),
			IGST:    Numeric(obj["igst"]),
			HSNSAC:  Text(obj["hsn_sac"]),
		})
	}

	costs, ok := DecodeList(row[models.ColAdditionalCosts])
	if !ok {
		inv.RawAdditionalCosts = Text(row[models.ColAdditionalCosts])
	}
	for _, entry := range costs {
		obj, isObj := entry.(map[string]any)
		if !isObj {
			continue
		}
		inv.AdditionalCosts = append(inv.AdditionalCosts, models.AdditionalCost{
			Type:    Text(obj["type"]),
			Amount:  Numeric(obj["amount"]),
			TaxRate: Numeric(obj["tax_rate"]),
			HSNSAC:  Text(obj["hsn_sac"]),
		})
	}

	return inv
}

// Text renders a value as a trimmed string; nil becomes "".
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case time.Time:
		return t.UTC().Format(DateLayout)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Date formats a timestamp or date string as DateLayout in UTC.
// Null and unparsable values yield "".
func Date(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(DateLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return Date(*t)
	}

	s := Text(v)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC().Format(DateLayout)
		}
	}
	return ""
}

// Numeric coerces a value to a decimal. Unparsable values yield zero.
func Numeric(v any) decimal.Decimal {
	switch t := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return t
	case *decimal.Decimal:
		if t == nil {
			return decimal.Zero
		}
		return *t
	case float64:
		return decimal.NewFromFloat(t)
	case float32:
		return decimal.NewFromFloat32(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int32:
		return decimal.NewFromInt32(t)
	case int64:
		return decimal.NewFromInt(t)
	case json.Number:
		return parseDecimal(t.String())
	case bool:
		return decimal.Zero
	default:
		return parseDecimal(Text(v))
	}
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Integer coerces a value to int64, truncating fractions. Unparsable values yield 0.
func Integer(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	}
	return Numeric(v).IntPart()
}

// DecodeList unwraps a JSON column into a list. Strings and byte slices are
// parsed, and a string result is parsed once more to undo double encoding.
// Already decoded slices pass through. Non-list results give an empty list.
// The boolean is false only when text was present but was not valid JSON.
func DecodeList(v any) ([]any, bool) {
	var raw string
	switch t := v.(type) {
	case nil:
		return nil, true
	case []any:
		return t, true
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out, true
	case map[string]any:
		return nil, true
	case string:
		raw = t
	case []byte:
		raw = string(t)
	case json.RawMessage:
		raw = string(t)
	default:
		return nil, true
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, true
	}

	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, false
	}
	if inner, ok := decoded.(string); ok {
		if err := json.Unmarshal([]byte(inner), &decoded); err != nil {
			return nil, false
		}
	}

	list, ok := decoded.([]any)
	if !ok {
		return nil, true
	}
	return list, true
}
