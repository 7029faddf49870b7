package document

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-fieldsales/internal/pricing"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// DefaultHSN is the HSN/SAC code printed on cosmetics lines.
const DefaultHSN = "3304"

// Company is the issuer block printed at the top of every invoice.
type Company struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	GSTIN      string `json:"gstin"`
	Disclaimer string `json:"disclaimer,omitempty"`
}

// Attachment references a stored file by path; the files themselves live
// elsewhere.
type Attachment struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Meta is the invoice-level input to Build.
type Meta struct {
	InvoiceNumber   string
	Date            time.Time
	TransactionType string
	Employee        refdata.Employee
	Outlet          refdata.Outlet
	Distributor     *refdata.Distributor
	PaymentStatus   string
	AmountPaid      decimal.Decimal
	HSN             string
	Attachments     []Attachment
}

// Header carries the invoice metadata block.
type Header struct {
	Number          string `json:"number"`
	Date            string `json:"date"`
	TransactionType string `json:"transactionType"`
	SalesPerson     string `json:"salesPerson"`
	EmployeeCode    string `json:"employeeCode"`
	BillTo          Party  `json:"billTo"`
	Distributor     *Party `json:"distributor,omitempty"`
}

// Party is a bill-to or distributor block.
type Party struct {
	Name      string `json:"name"`
	Contact   string `json:"contact,omitempty"`
	Address   string `json:"address,omitempty"`
	GSTIN     string `json:"gstin,omitempty"`
	Reference string `json:"reference,omitempty"`
	Territory string `json:"territory,omitempty"`
}

// LineRow is one row of the line table.
type LineRow struct {
	SNo      int    `json:"sNo"`
	Product  string `json:"product"`
	HSN      string `json:"hsn"`
	GSTRate  string `json:"gstRate"`
	Quantity int    `json:"quantity"`
	Rate     string `json:"rate"`
	Amount   string `json:"amount"`
}

// TotalsBlock mirrors pricing.Totals in display form.
type TotalsBlock struct {
	Subtotal        string `json:"subtotal"`
	OverallDiscount string `json:"overallDiscount,omitempty"`
	AmountDiscount  string `json:"amountDiscount,omitempty"`
	TaxableAmount   string `json:"taxableAmount"`
	CGST            string `json:"cgst"`
	SGST            string `json:"sgst"`
	GrandTotal      string `json:"grandTotal"`
}

// PaymentBlock is shown under the totals.
type PaymentBlock struct {
	Status     string `json:"status"`
	AmountPaid string `json:"amountPaid,omitempty"`
	Balance    string `json:"balance,omitempty"`
}

// Document is the ordered content handed to a renderer.
type Document struct {
	Company     Company      `json:"company"`
	Header      Header       `json:"header"`
	Lines       []LineRow    `json:"lines"`
	Totals      TotalsBlock  `json:"totals"`
	Payment     PaymentBlock `json:"payment"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Renderer turns a Document into a stored artefact and returns its path.
type Renderer interface {
	Render(ctx context.Context, doc Document) (string, error)
}

// Build lays out the content of an invoice. Amounts are truncated to two
// decimals, never rounded.
func Build(company Company, meta Meta, inv pricing.Invoice) Document {
	hsn := meta.HSN
	if hsn == "" {
		hsn = DefaultHSN
	}
	doc := Document{
		Company: company,
		Header: Header{
			Number:          meta.InvoiceNumber,
			Date:            meta.Date.Format("2006-01-02"),
			TransactionType: meta.TransactionType,
			SalesPerson:     meta.Employee.Name,
			EmployeeCode:    meta.Employee.Code,
			BillTo: Party{
				Name:    meta.Outlet.Name,
				Contact: meta.Outlet.Contact,
				Address: joinNonEmpty(meta.Outlet.Address, meta.Outlet.City, meta.Outlet.State),
				GSTIN:   meta.Outlet.GST,
			},
		},
		Attachments: meta.Attachments,
	}
	if d := meta.Distributor; d != nil {
		doc.Header.Distributor = &Party{
			Name:      d.FirmName,
			Contact:   joinNonEmpty(d.ContactPerson, d.ContactNumber),
			Reference: d.ID,
			Territory: d.Territory,
		}
	}

	gstRate := pricing.TaxRate.Mul(decimal.NewFromInt(100)).String() + "%"
	for i, l := range inv.Lines {
		doc.Lines = append(doc.Lines, LineRow{
			SNo:      i + 1,
			Product:  l.ProductName,
			HSN:      hsn,
			GSTRate:  gstRate,
			Quantity: l.Quantity,
			Rate:     pricing.Display(l.DiscountedUnitPrice),
			Amount:   pricing.Display(l.LineSubtotal),
		})
	}

	t := inv.Totals
	doc.Totals = TotalsBlock{
		Subtotal:      pricing.Display(t.Subtotal),
		TaxableAmount: pricing.Display(t.TaxableAmount),
		CGST:          pricing.Display(t.CGSTTotal),
		SGST:          pricing.Display(t.SGSTTotal),
		GrandTotal:    pricing.Display(t.GrandTotal),
	}
	if t.OverallDiscount.IsPositive() {
		doc.Totals.OverallDiscount = pricing.Display(t.OverallDiscount)
	}
	if t.AmountDiscount.IsPositive() {
		doc.Totals.AmountDiscount = pricing.Display(t.AmountDiscount)
	}

	doc.Payment = PaymentBlock{Status: meta.PaymentStatus}
	if meta.AmountPaid.IsPositive() {
		doc.Payment.AmountPaid = pricing.Display(meta.AmountPaid)
		doc.Payment.Balance = pricing.Display(decimal.Max(t.GrandTotal.Sub(meta.AmountPaid), decimal.Zero))
	}
	return doc
}

func joinNonEmpty(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}
