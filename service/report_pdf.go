package service

import (
	"bytes"
	"fmt"

	"wallet/models"

	"github.com/go-pdf/fpdf"
)

type pdfColumn struct {
	title string
	width float64
	align string
}

// A4 纵向可用宽度 190mm
var pdfColumns = []pdfColumn{
	{"Date", 24, "L"},
	{"Description", 58, "L"},
	{"Category", 30, "L"},
	{"Tag", 28, "L"},
	{"Type", 18, "C"},
	{"Amount", 32, "R"},
}

const (
	pdfRowHeight    = 7.0
	pdfBottomMargin = 15.0
)

// renderPDF 先输出汇总表，再输出分页的明细表，每页重复表头，页脚为 "Page N"
func renderPDF(doc reportDocument) ([]byte, error) {
	pdf := buildPDF(doc)
	if pdf.Err() {
		return nil, pdf.Error()
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildPDF(doc reportDocument) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, pdfBottomMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(doc.Period), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(doc.Account), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Generated "+doc.GeneratedAt.Format("January 02, 2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	summary := [][2]string{
		{"Total Income", doc.Summary.Income},
		{"Total Expenses", doc.Summary.Expenses},
		{"Net", doc.Summary.NetFormatted},
		{"Transactions", fmt.Sprintf("%d", doc.Summary.Count)},
	}
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range summary {
		pdf.SetFillColor(226, 232, 240)
		pdf.CellFormat(60, pdfRowHeight, row[0], "1", 0, "L", true, 0, "")
		pdf.CellFormat(60, pdfRowHeight, tr(row[1]), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Transactions", "", 1, "L", false, 0, "")
	drawPDFHeader(pdf)

	_, pageHeight := pdf.GetPageSize()
	pdf.SetFont("Helvetica", "", 9)
	for i, r := range doc.Rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfBottomMargin {
			pdf.AddPage()
			drawPDFHeader(pdf)
			pdf.SetFont("Helvetica", "", 9)
		}

		fill := i%2 == 1
		pdf.SetFillColor(245, 247, 250)
		pdf.SetTextColor(0, 0, 0)
		cells := []string{r.Date, truncate(r.Description, 34), truncate(r.Category, 16), truncate(r.Tag, 15), string(r.Type)}
		for j, text := range cells {
			col := pdfColumns[j]
			pdf.CellFormat(col.width, pdfRowHeight, tr(text), "1", 0, col.align, fill, 0, "")
		}
		if r.Type == models.TransactionIncome {
			pdf.SetTextColor(0x4C, 0xAF, 0x50)
		} else {
			pdf.SetTextColor(0xF4, 0x43, 0x36)
		}
		amount := pdfColumns[len(pdfColumns)-1]
		pdf.CellFormat(amount.width, pdfRowHeight, tr(r.Formatted), "1", 1, amount.align, fill, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	return pdf
}

func drawPDFHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(79, 129, 189)
	pdf.SetTextColor(255, 255, 255)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, pdfRowHeight+1, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(0, 0, 0)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
