package infra

// pdf.go renders a receipt for a committed Order with go-pdf/fpdf.
// Layout is a narrow 80mm strip that fits thermal paper:
//   - business header, order code and timestamp
//   - customer line when the order has one
//   - item table, subtotal, tax, discount and bold total
//   - paid amount and, for credit sales, the outstanding balance
//
// Files land in storagePath/receipt_{order_code}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"retailpos/internal/model"

	"github.com/go-pdf/fpdf"
)

const receiptNameMax = 28

// GenerateReceiptPDF writes the receipt and returns its path. storagePath is
// created when missing. The order must have Items preloaded; Customer and
// Debt are optional.
func GenerateReceiptPDF(order *model.Order, businessName, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, ReceiptFileName(order.OrderCode))

	height := 70 + float64(len(order.Items))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(businessName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(contentW, 5, "Sales receipt", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, order.OrderCode, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, order.CreatedAt.Format("2006-01-02  15:04"), "", 1, "L", false, 0, "")
	if order.Customer != nil {
		pdf.CellFormat(contentW, 4, tr(fmt.Sprintf("Customer: %s (%s)", order.Customer.FullName, order.Customer.CustomerCode)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.50
	col2 := contentW * 0.18
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Qty", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range order.Items {
		name := item.ProductName
		if name == "" {
			name = item.ProductID.String()[:8]
		}
		if r := []rune(name); len(r) > receiptNameMax {
			name = string(r[:receiptNameMax-1]) + "."
		}
		pdf.CellFormat(col1, 5, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, "x"+item.Quantity.String(), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, item.LineTotal.String(), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	row := func(label, value string) {
		pdf.CellFormat(col1+col2, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, value, "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 7)
	row("Subtotal:", order.Subtotal.String())
	if !order.TaxAmount.IsZero() {
		row(fmt.Sprintf("Tax (%s%%):", order.TaxRate.String()), order.TaxAmount.String())
	}
	if !order.DiscountAmount.IsZero() {
		row("Discount:", "-"+order.DiscountAmount.String())
	}

	pdf.SetFont("Helvetica", "B", 9)
	row("TOTAL:", order.TotalAmount.String())

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	row(fmt.Sprintf("Paid (%s):", order.PaymentMethod), order.PaidAmount.String())
	if order.Debt != nil {
		pdf.SetFont("Helvetica", "B", 7)
		row("Balance due:", order.Debt.RemainingAmount.String())
		if order.Debt.DueDate != nil {
			pdf.SetFont("Helvetica", "", 7)
			row("Due date:", order.Debt.DueDate.Format("2006-01-02"))
		}
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, "Thank you for your purchase", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func ReceiptFileName(orderCode string) string {
	return "receipt_" + orderCode + ".pdf"
}
