package payload

import "neon2retro/internal/reconcile"

// header is the JSON document sent in the "data" field. Key names and
// casing are fixed by the destination.
type header struct {
	Status                                 string  `json:"Status"`
	ApprovalStatus                         string  `json:"ApprovalStatus"`
	InternalReference                      string  `json:"InternalReference"`
	DryDockInvoice                         bool    `json:"DryDockInvoice"`
	Date                                   string  `json:"Date"`
	DueDate                                string  `json:"DueDate"`
	ReceivedDate                           string  `json:"ReceivedDate"`
	CounterParty                           string  `json:"CounterParty"`
	ReferenceNumber                        string  `json:"ReferenceNumber"`
	Type                                   string  `json:"Type"`
	SubTotal                               float64 `json:"SubTotal"`
	Remark                                 string  `json:"Remark"`
	Currency                               string  `json:"Currency"`
	Location                               string  `json:"Location"`
	Paid                                   float64 `json:"Paid"`
	Due                                    float64 `json:"Due"`
	Overdue                                float64 `json:"Overdue"`
	PendingAssignment                      bool    `json:"PendingAssignment"`
	ExternalID                             string  `json:"externalId"`
	Organization                           string  `json:"Organization"`
	Department                             string  `json:"Department"`
	TotalAmount                            float64 `json:"TotalAmount"`
	AdditionalCostTotal                    float64 `json:"AdditionalCostTotal"`
	GSTTotal                               float64 `json:"GSTTotal"`
	CostCenter                             string  `json:"CostCenter"`
	CorrespondingProformaInvoice           string  `json:"CorrespondingProformaInvoice"`
	CorrespondingProformaInvoiceExternalID string  `json:"CorrespondingProformaInvoiceExternalId"`
	RCMApplicable                          bool    `json:"RCMApplicable"`
	CargoType                              string  `json:"CargoType"`
	CharterType                            string  `json:"CharterType"`
	PurchaseOrderID                        string  `json:"PurchaseOrderId"`
	PurchaseOrderRetroNETReference         string  `json:"PurchaseOrderRetroNETReference"`
	IsServicePurchaseOrder                 bool    `json:"isServicePurchaseOrder"`
	TakeOverExpense                        bool    `json:"TakeOverExpense"`
}

// gstEntry is one "gstData" value.
type gstEntry struct {
	Rate       int     `json:"Rate"`
	Amount     float64 `json:"Amount"`
	HSNSAC     string  `json:"HSN_SAC"`
	TaxTotal   float64 `json:"TaxTotal"`
	Total      float64 `json:"Total"`
	GSTType    string  `json:"GSTType"`
	IGST       float64 `json:"IGST"`
	CGST       float64 `json:"CGST"`
	SGST       float64 `json:"SGST"`
	ExternalID string  `json:"externalid"`
	GSTRate    string  `json:"GSTRate"`
}

func newGSTEntry(s reconcile.TaxSlot) gstEntry {
	return gstEntry{
		Rate:     s.Rate,
		Amount:   money(s.Amount),
		HSNSAC:   s.HSNSAC,
		TaxTotal: money(s.TaxTotal),
		Total:    money(s.Total),
		GSTType:  "na",
		IGST:     money(s.IGST),
		CGST:     money(s.CGST),
		SGST:     money(s.SGST),
		GSTRate:  s.Token,
	}
}

// costEntry is one "aCostData" value.
type costEntry struct {
	Name           string  `json:"Name"`
	HSNSAC         string  `json:"HSN_SAC"`
	Amount         float64 `json:"Amount"`
	GSTRate        string  `json:"GSTRate"`
	TaxTotal       float64 `json:"TaxTotal"`
	Total          float64 `json:"Total"`
	TaxAmount      float64 `json:"TaxAmount"`
	ExternalID     string  `json:"externalId"`
	AdditionalCost string  `json:"AdditionalCost"`
}

func newCostEntry(c reconcile.CostSlot) costEntry {
	return costEntry{
		Name:           c.Name,
		HSNSAC:         c.HSNSAC,
		Amount:         money(c.Amount),
		GSTRate:        c.RateToken,
		TaxTotal:       money(c.TaxTotal),
		Total:          money(c.Total),
		AdditionalCost: c.Token,
	}
}
