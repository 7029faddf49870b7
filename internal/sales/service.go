package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/document"
	"github.com/noah-isme/backend-fieldsales/internal/ids"
	"github.com/noah-isme/backend-fieldsales/internal/ledger"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/pricing"
	"github.com/noah-isme/backend-fieldsales/internal/refdata"
)

// Payment statuses.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentPartial = "partial paid"
)

// Delivery statuses.
const (
	DeliveryPending    = "pending"
	DeliveryDispatched = "dispatched"
	DeliveryDelivered  = "delivered"
	DeliveryCancelled  = "cancelled"
)

// TransactionTypes lists the accepted invoice transaction kinds.
var TransactionTypes = []string{"Sold", "Return", "Add On", "Damage", "Expired"}

const (
	dateLayout     = "02-01-2006"
	dateTimeLayout = "02-01-2006 15:04:05"
)

// ErrInvoiceNotFound is returned when no Sales row carries the invoice number.
var ErrInvoiceNotFound = fmt.Errorf("sales: invoice %w", common.ErrNotFound)

// Service records invoices in the Sales table.
type Service struct {
	Store    ledger.Store
	Catalog  *refdata.Catalog
	IDs      *ids.Generator
	Policy   pricing.Policy
	Company  document.Company
	Renderer document.Renderer
	Logger   zerolog.Logger

	// NoInvoiceDiscounts rejects invoice-level discounts on requests.
	NoInvoiceDiscounts bool
}

// ItemInput is one requested invoice line.
type ItemInput struct {
	Product         string          `json:"product" validate:"required"`
	Quantity        int             `json:"quantity" validate:"min=1"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
}

// QuoteInput prices items for an employee without writing anything.
type QuoteInput struct {
	EmployeeCode           string          `json:"employeeCode" validate:"required"`
	Items                  []ItemInput     `json:"items" validate:"required,min=1,dive"`
	OverallDiscountPercent decimal.Decimal `json:"overallDiscountPercent"`
	AmountDiscount         decimal.Decimal `json:"amountDiscount"`
}

// CreateInput is a full invoice submission.
type CreateInput struct {
	QuoteInput
	TransactionType string            `json:"transactionType" validate:"required"`
	Outlet          refdata.OutletRef `json:"outlet"`
	Distributor     string            `json:"distributor"`
	PaymentStatus   string            `json:"paymentStatus"`
	AmountPaid      decimal.Decimal   `json:"amountPaid"`
	ReceiptPath     string            `json:"receiptPath"`
	SelfiePath      string            `json:"selfiePath"`
}

// PaymentInput updates the payment block of an invoice.
type PaymentInput struct {
	Status      string          `json:"status" validate:"required"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	ReceiptPath string          `json:"receiptPath"`
}

// Receipt is returned after an invoice is recorded.
type Receipt struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	InvoiceDate   string          `json:"invoiceDate"`
	Lines         int             `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	DocumentPath  string          `json:"documentPath,omitempty"`
	Pricing       pricing.Invoice `json:"pricing"`
}

// Summary aggregates the rows of one invoice.
type Summary struct {
	InvoiceNumber   string          `json:"invoiceNumber"`
	InvoiceDate     string          `json:"invoiceDate"`
	EmployeeCode    string          `json:"employeeCode"`
	OutletName      string          `json:"outletName"`
	TransactionType string          `json:"transactionType"`
	Lines           int             `json:"lines"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
	PaymentStatus   string          `json:"paymentStatus"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	DeliveryStatus  string          `json:"deliveryStatus"`
}

// Quote prices the items with the employee's discount tier.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (pricing.Invoice, error) {
	if err := common.Validate(in); err != nil {
		return pricing.Invoice{}, err
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return pricing.Invoice{}, err
	}
	return s.price(in, emp)
}

func (s *Service) price(in QuoteInput, emp refdata.Employee) (pricing.Invoice, error) {
	items := make([]pricing.LineItem, len(in.Items))
	for i, it := range in.Items {
		if it.DiscountPercent.IsNegative() || it.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
			return pricing.Invoice{}, fmt.Errorf("line %d: discount must be between 0 and 100: %w", i+1, common.ErrValidation)
		}
		items[i] = pricing.LineItem{ProductName: strings.TrimSpace(it.Product), Quantity: it.Quantity, DiscountPercent: it.DiscountPercent}
	}
	if in.OverallDiscountPercent.IsNegative() || in.OverallDiscountPercent.GreaterThan(decimal.NewFromInt(100)) || in.AmountDiscount.IsNegative() {
		return pricing.Invoice{}, fmt.Errorf("invoice discount out of range: %w", common.ErrValidation)
	}
	if s.NoInvoiceDiscounts && (in.OverallDiscountPercent.IsPositive() || in.AmountDiscount.IsPositive()) {
		return pricing.Invoice{}, fmt.Errorf("invoice-level discounts are disabled: %w", common.ErrValidation)
	}
	return pricing.Compute(items, s.Catalog, pricing.Context{DiscountTier: emp.DiscountCategory, Policy: s.policyFor(in)})
}

// Create validates and prices the invoice, renders its document and appends
// one Sales row per line. Lookup failures abort before anything is written.
func (s *Service) Create(ctx context.Context, in CreateInput) (Receipt, error) {
	if err := common.Validate(in); err != nil {
		return Receipt{}, err
	}
	if !validTransactionType(in.TransactionType) {
		return Receipt{}, fmt.Errorf("transaction type %q: %w", in.TransactionType, common.ErrValidation)
	}
	emp, err := s.Catalog.EmployeeByCode(strings.TrimSpace(in.EmployeeCode))
	if err != nil {
		return Receipt{}, err
	}
	outlet, err := s.Catalog.ResolveOutlet(in.Outlet)
	if err != nil {
		return Receipt{}, err
	}
	var dist *refdata.Distributor
	if name := strings.TrimSpace(in.Distributor); name != "" {
		d, err := s.Catalog.Distributor(name)
		if err != nil {
			return Receipt{}, err
		}
		dist = &d
	}
	inv, err := s.price(in.QuoteInput, emp)
	if err != nil {
		return Receipt{}, err
	}
	status, paid, receipt, err := normalisePayment(in.PaymentStatus, in.AmountPaid, in.ReceiptPath, inv.Totals.GrandTotal)
	if err != nil {
		return Receipt{}, err
	}

	number, err := s.IDs.Unique(ctx, ids.Invoice, func(ctx context.Context, id string) (bool, error) {
		return ledger.Exists(ctx, s.Store, Schema, ColInvoiceNumber, id)
	})
	if err != nil {
		return Receipt{}, err
	}
	now := s.IDs.Today()

	var docPath string
	if s.Renderer != nil {
		var attachments []document.Attachment
		if in.SelfiePath != "" {
			attachments = append(attachments, document.Attachment{Label: "Employee Selfie", Path: in.SelfiePath})
		}
		if receipt != "" {
			attachments = append(attachments, document.Attachment{Label: "Payment Receipt", Path: receipt})
		}
		doc := document.Build(s.Company, document.Meta{
			InvoiceNumber:   number,
			Date:            now,
			TransactionType: in.TransactionType,
			Employee:        emp,
			Outlet:          outlet,
			Distributor:     dist,
			PaymentStatus:   status,
			AmountPaid:      paid,
			Attachments:     attachments,
		}, inv)
		if docPath, err = s.Renderer.Render(ctx, doc); err != nil {
			return Receipt{}, fmt.Errorf("sales: render %s: %w", number, err)
		}
	}

	header := ledger.Row{
		ColInvoiceNumber:       number,
		ColInvoiceDate:         now.Format(dateLayout),
		ColEmployeeName:        emp.Name,
		ColEmployeeCode:        emp.Code,
		ColDesignation:         emp.Designation,
		ColDiscountTier:        emp.DiscountCategory,
		ColTransactionType:     in.TransactionType,
		ColOutletName:          outlet.Name,
		"Outlet Contact":       outlet.Contact,
		"Outlet Address":       outlet.Address,
		"Outlet State":         outlet.State,
		"Outlet City":          outlet.City,
		"Outlet GST":           outlet.GST,
		"Overall Discount (%)": s.policyFor(in.QuoteInput).OverallDiscountPercent.String(),
		ColInvoiceTotal:        inv.Totals.GrandTotal.String(),
		ColPaymentStatus:       status,
		ColAmountPaid:          paid.String(),
		ColReceiptPath:         receipt,
		ColDeliveryStatus:      DeliveryPending,
		"Employee Selfie Path": in.SelfiePath,
		ColPDFPath:             docPath,
	}
	if dist != nil {
		header["Distributor Firm Name"] = dist.FirmName
		header["Distributor ID"] = dist.ID
		header["Distributor Contact Person"] = dist.ContactPerson
		header["Distributor Contact Number"] = dist.ContactNumber
		header["Distributor Email"] = dist.Email
		header["Distributor Territory"] = dist.Territory
	}

	rows := make([]ledger.Row, len(inv.Lines))
	for i, l := range inv.Lines {
		r := header.Clone()
		r[ColLineNo] = strconv.Itoa(i + 1)
		r["Product ID"] = l.ProductID
		r[ColProductName] = l.ProductName
		r["Product Category"] = l.Category
		r[ColQuantity] = strconv.Itoa(l.Quantity)
		r["Unit Price"] = l.UnitPrice.String()
		r["Discount (%)"] = l.DiscountPercent.String()
		r["Discounted Price"] = l.DiscountedUnitPrice.String()
		r["Total Price"] = l.LineSubtotal.String()
		r["Amount Discount (INR)"] = l.AllocatedDiscount.String()
		r["Taxable Amount"] = l.TaxableAmount.String()
		r["GST Rate"] = l.TaxRate.Mul(decimal.NewFromInt(100)).String() + "%"
		r["CGST Amount"] = l.CGST.String()
		r["SGST Amount"] = l.SGST.String()
		r[ColGrandTotal] = l.LineGrandTotal.String()
		rows[i] = r
	}
	if err := s.Store.AppendRows(ctx, Schema, rows); err != nil {
		return Receipt{}, err
	}
	s.Logger.Info().Str("invoice", number).Str("employee_code", emp.Code).Int("lines", len(rows)).
		Str("grand_total", inv.Totals.GrandTotal.String()).Msg("invoice_recorded")
	obs.InvoiceWritten(in.TransactionType, status, inv.Totals.GrandTotal.InexactFloat64())

	return Receipt{
		InvoiceNumber: number,
		InvoiceDate:   now.Format(dateLayout),
		Lines:         len(rows),
		GrandTotal:    inv.Totals.GrandTotal,
		DocumentPath:  docPath,
		Pricing:       inv,
	}, nil
}

// UpdateDelivery sets the delivery status on every line of an invoice.
func (s *Service) UpdateDelivery(ctx context.Context, invoiceNumber, status string) (int, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case DeliveryPending, DeliveryDispatched, DeliveryDelivered, DeliveryCancelled:
	default:
		return 0, fmt.Errorf("delivery status %q: %w", status, common.ErrValidation)
	}
	n, err := s.Store.UpdateRowsWhere(ctx, Schema, ledger.Where(ColInvoiceNumber, invoiceNumber), ledger.Set(map[string]string{
		ColDeliveryStatus:  status,
		ColDeliveryUpdated: s.IDs.Today().Format(dateTimeLayout),
	}))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInvoiceNotFound
	}
	return n, nil
}

// UpdatePayment records a payment against an invoice.
func (s *Service) UpdatePayment(ctx context.Context, invoiceNumber string, in PaymentInput) (int, error) {
	if err := common.Validate(in); err != nil {
		return 0, err
	}
	summary, err := s.Get(ctx, invoiceNumber)
	if err != nil {
		return 0, err
	}
	status, paid, receipt, err := normalisePayment(in.Status, in.AmountPaid, in.ReceiptPath, summary.GrandTotal)
	if err != nil {
		return 0, err
	}
	n, err := s.Store.UpdateRowsWhere(ctx, Schema, ledger.Where(ColInvoiceNumber, invoiceNumber), ledger.Set(map[string]string{
		ColPaymentStatus: status,
		ColAmountPaid:    paid.String(),
		ColReceiptPath:   receipt,
	}))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInvoiceNotFound
	}
	return n, nil
}

// Get summarises one invoice.
func (s *Service) Get(ctx context.Context, invoiceNumber string) (Summary, error) {
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return Summary{}, err
	}
	summaries := summarise(ledger.Filter(rows, ledger.Where(ColInvoiceNumber, invoiceNumber)))
	if len(summaries) == 0 {
		return Summary{}, ErrInvoiceNotFound
	}
	return summaries[0], nil
}

// ListByEmployee returns the employee's invoices, newest last as stored.
func (s *Service) ListByEmployee(ctx context.Context, employeeCode string) ([]Summary, error) {
	if strings.TrimSpace(employeeCode) == "" {
		return nil, fmt.Errorf("employee code is required: %w", common.ErrValidation)
	}
	rows, err := s.Store.ReadTable(ctx, Schema)
	if err != nil {
		return nil, err
	}
	return summarise(ledger.Filter(rows, ledger.Where(ColEmployeeCode, employeeCode))), nil
}

// policyFor layers per-invoice discounts from the request over the
// configured policy.
func (s *Service) policyFor(in QuoteInput) pricing.Policy {
	p := s.Policy
	if in.OverallDiscountPercent.IsPositive() {
		p.OverallDiscountPercent = in.OverallDiscountPercent
	}
	if in.AmountDiscount.IsPositive() {
		p.AmountDiscount = in.AmountDiscount
	}
	return p
}

// normalisePayment applies the payment rules: pending carries no amount or
// receipt, paid defaults to the grand total, partial must be below it.
func normalisePayment(status string, amount decimal.Decimal, receipt string, total decimal.Decimal) (string, decimal.Decimal, string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		status = PaymentPending
	}
	if amount.IsNegative() {
		return "", decimal.Zero, "", fmt.Errorf("amount paid must not be negative: %w", common.ErrValidation)
	}
	switch status {
	case PaymentPending:
		return status, decimal.Zero, "", nil
	case PaymentPaid:
		if amount.IsZero() {
			amount = total
		}
		return status, amount, receipt, nil
	case PaymentPartial:
		if !amount.IsPositive() || !amount.LessThan(total) {
			return "", decimal.Zero, "", fmt.Errorf("partial payment must be above zero and below the grand total: %w", common.ErrValidation)
		}
		return status, amount, receipt, nil
	default:
		return "", decimal.Zero, "", fmt.Errorf("payment status %q: %w", status, common.ErrValidation)
	}
}

func validTransactionType(t string) bool {
	for _, v := range TransactionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// summarise groups line rows by invoice. The stored invoice total wins;
// rows written before it existed fall back to the sum of line totals.
func summarise(rows []ledger.Row) []Summary {
	var out []Summary
	index := map[string]int{}
	stored := map[string]bool{}
	for _, r := range rows {
		number := r[ColInvoiceNumber]
		i, ok := index[number]
		if !ok {
			i = len(out)
			index[number] = i
			out = append(out, Summary{
				InvoiceNumber:   number,
				InvoiceDate:     r[ColInvoiceDate],
				EmployeeCode:    r[ColEmployeeCode],
				OutletName:      r[ColOutletName],
				TransactionType: r[ColTransactionType],
				PaymentStatus:   r[ColPaymentStatus],
				AmountPaid:      parseAmount(r[ColAmountPaid]),
				DeliveryStatus:  r[ColDeliveryStatus],
			})
		}
		out[i].Lines++
		switch total := strings.TrimSpace(r[ColInvoiceTotal]); {
		case stored[number]:
		case total != "":
			out[i].GrandTotal = parseAmount(total)
			stored[number] = true
		default:
			out[i].GrandTotal = out[i].GrandTotal.Add(parseAmount(r[ColGrandTotal]))
		}
	}
	return out
}

func parseAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return d
}
