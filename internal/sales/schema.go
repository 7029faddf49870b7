package sales

import "github.com/noah-isme/backend-fieldsales/internal/ledger"

// Column names of the Sales table.
const (
	ColInvoiceNumber   = "Invoice Number"
	ColLineNo          = "Line No"
	ColInvoiceDate     = "Invoice Date"
	ColEmployeeName    = "Employee Name"
	ColEmployeeCode    = "Employee Code"
	ColDesignation     = "Designation"
	ColDiscountTier    = "Discount Category"
	ColTransactionType = "Transaction Type"
	ColOutletName      = "Outlet Name"
	ColProductName     = "Product Name"
	ColQuantity        = "Quantity"
	ColGrandTotal      = "Grand Total"
	ColInvoiceTotal    = "Invoice Grand Total"
	ColPaymentStatus   = "Payment Status"
	ColAmountPaid      = "Amount Paid"
	ColReceiptPath     = "Payment Receipt Path"
	ColDeliveryStatus  = "Delivery Status"
	ColDeliveryUpdated = "Delivery Updated At"
	ColPDFPath         = "Invoice PDF Path"
)

// Schema is the Sales table: one row per invoice line. The key includes the
// line number so repeated products on one invoice stay separate rows.
// Invoice Grand Total repeats the invoice-level total on every line, since
// a rounded total is not the sum of the line totals.
var Schema = ledger.Schema{
	Table: "Sales",
	Columns: []string{
		ColInvoiceNumber, ColLineNo, ColInvoiceDate,
		ColEmployeeName, ColEmployeeCode, ColDesignation, ColDiscountTier,
		ColTransactionType,
		ColOutletName, "Outlet Contact", "Outlet Address", "Outlet State", "Outlet City", "Outlet GST",
		"Distributor Firm Name", "Distributor ID", "Distributor Contact Person", "Distributor Contact Number",
		"Distributor Email", "Distributor Territory",
		"Product ID", ColProductName, "Product Category",
		ColQuantity, "Unit Price", "Discount (%)", "Discounted Price", "Total Price",
		"Overall Discount (%)", "Amount Discount (INR)", "Taxable Amount",
		"GST Rate", "CGST Amount", "SGST Amount", ColGrandTotal, ColInvoiceTotal,
		ColPaymentStatus, ColAmountPaid, ColReceiptPath,
		ColDeliveryStatus, ColDeliveryUpdated,
		"Employee Selfie Path", ColPDFPath,
	},
	Key: []string{ColInvoiceNumber, ColLineNo},
}
