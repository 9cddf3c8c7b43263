package models

import "github.com/shopspring/decimal"

// Row is a single invoices row as scanned from the source database,
// keyed by column name. Values are whatever the driver produced.
type Row map[string]any

// Source column names
const (
	ColID                           = "id"
	ColVendorID                     = "vendor_id"
	ColOrgID                        = "org_id"
	ColInvoiceType                  = "invoice_type"
	ColCorrespondingProformaInvoice = "corresponding_proforma_invoice"
	ColInvoiceNo                    = "invoice_no"
	ColInvoiceDate                  = "invoice_date"
	ColInvoiceDueDate               = "invoice_due_date"
	ColPurchaseOrderNo              = "purchase_order_no"
	ColReceivedDate                 = "received_date"
	ColOfficeVessel                 = "office_vessel"
	ColCurrency                     = "currency"
	ColTotalAmount                  = "total_amount"
	ColAdditionalCosts              = "additional_costs"
	ColAdditionalCostsTotal         = "additional_costs_total"
	ColTaxDetails                   = "tax_details"
	ColTaxDetailsTotal              = "tax_details_total"
	ColIGSTTotal                    = "igst_total"
	ColDepartment                   = "department"
	ColAssignee                     = "assignee"
	ColInvoiceFile                  = "invoice_file"
	ColSupportingDocuments          = "supporting_documents"
	ColCreatedAt                    = "created_at"
	ColUpdatedAt                    = "updated_at"
)

// InvoiceColumns is the fixed column set selected from the source table.
var InvoiceColumns = []string{
	ColID,
	ColVendorID,
	ColOrgID,
	ColInvoiceType,
	ColCorrespondingProformaInvoice,
	ColInvoiceNo,
	ColInvoiceDate,
	ColInvoiceDueDate,
	ColPurchaseOrderNo,
	ColReceivedDate,
	ColOfficeVessel,
	ColCurrency,
	ColTotalAmount,
	ColAdditionalCosts,
	ColAdditionalCostsTotal,
	ColTaxDetails,
	ColTaxDetailsTotal,
	ColIGSTTotal,
	ColDepartment,
	ColAssignee,
	ColInvoiceFile,
	ColSupportingDocuments,
	ColCreatedAt,
	ColUpdatedAt,
}

// Invoice is the canonical, typed form of a source row.
type Invoice struct {
	ID int64 // Source primary key, used only for lookup and logging

	// Identifiers passed through verbatim
	VendorID                     string
	OrgID                        string
	InvoiceType                  string
	CorrespondingProformaInvoice string
	InvoiceNo                    string
	PurchaseOrderNo              string
	OfficeVessel                 string
	Currency                     string

	// Dates formatted as 2006-01-02T15:04:05.000Z, empty when missing or unparsable
	InvoiceDate    string
	InvoiceDueDate string
	ReceivedDate   string

	// Amounts, zero when missing or unparsable
	TotalAmount          decimal.Decimal
	AdditionalCostsTotal decimal.Decimal
	TaxDetailsTotal      decimal.Decimal
	IGSTTotal            decimal.Decimal

	// Nested breakdowns decoded from JSON columns
	TaxDetails      []TaxDetail
	AdditionalCosts []AdditionalCost

	// Raw column text kept when the JSON could not be decoded
	RawTaxDetails      string
	RawAdditionalCosts string

	// Descriptive fields
	Department          string
	Assignee            string
	InvoiceFile         string
	SupportingDocuments string
}

// TaxDetail is one per-rate entry of the tax_details column.
type TaxDetail struct {
	TaxRate decimal.Decimal // Percentage, e.g. 18
	SGST    decimal.Decimal
	CGST    decimal.Decimal
	IGST    decimal.Decimal
	HSNSAC  string
}

// TaxSum returns sgst+cgst+igst.
func (t TaxDetail) TaxSum() decimal.Decimal {
	return t.SGST.Add(t.CGST).Add(t.IGST)
}

// AdditionalCost is one entry of the additional_costs column.
type AdditionalCost struct {
	Type    string // Free-form cost name, e.g. "Courier Charge"
	Amount  decimal.Decimal
	TaxRate decimal.Decimal
	HSNSAC  string
}
