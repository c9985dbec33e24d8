package service

import (
	"fmt"

	"wallet/models"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet      = "Summary"
	transactionsSheet = "Transactions"
	incomeColor       = "4CAF50"
	expenseColor      = "F44336"
)

var transactionHeaders = []string{"Date", "Description", "Category", "Tag", "Type", "Amount", "Account"}

// sheetWriter 记录第一个错误，后续写入直接跳过
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) value(sheet, cell string, v interface{}) {
	if w.err == nil {
		w.err = w.f.SetCellValue(sheet, cell, v)
	}
}

func (w *sheetWriter) style(sheet, from, to string, id int) {
	if w.err == nil {
		w.err = w.f.SetCellStyle(sheet, from, to, id)
	}
}

func (w *sheetWriter) width(sheet, from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(sheet, from, to, width)
	}
}

func (w *sheetWriter) newStyle(s *excelize.Style) int {
	if w.err != nil {
		return 0
	}
	id, err := w.f.NewStyle(s)
	w.err = err
	return id
}

func cellBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
}

// renderXLSX 生成 Summary 和 Transactions 两个工作表
func renderXLSX(doc reportDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(transactionsSheet); err != nil {
		return nil, err
	}

	w := &sheetWriter{f: f}
	writeSummarySheet(w, doc)
	writeTransactionsSheet(w, doc)
	if w.err != nil {
		return nil, w.err
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSummarySheet(w *sheetWriter, doc reportDocument) {
	titleStyle := w.newStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	labelStyle := w.newStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E2E8F0"}, Pattern: 1},
		Border: cellBorder(),
	})
	valueStyle := w.newStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "right"},
		Border:    cellBorder(),
	})

	w.width(summarySheet, "A", "A", 20)
	w.width(summarySheet, "B", "B", 36)

	w.value(summarySheet, "A1", doc.Title)
	if w.err == nil {
		w.err = w.f.MergeCell(summarySheet, "A1", "B1")
	}
	w.style(summarySheet, "A1", "B1", titleStyle)

	rows := [][2]interface{}{
		{"Period", doc.Period},
		{"Account", doc.Account},
		{"Generated", doc.GeneratedAt.Format("2006-01-02 15:04")},
		{"Total Income", doc.Summary.Income},
		{"Total Expenses", doc.Summary.Expenses},
		{"Net", doc.Summary.NetFormatted},
		{"Transactions", doc.Summary.Count},
	}
	for i, r := range rows {
		row := i + 3
		w.value(summarySheet, fmt.Sprintf("A%d", row), r[0])
		w.value(summarySheet, fmt.Sprintf("B%d", row), r[1])
		w.style(summarySheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		w.style(summarySheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), valueStyle)
	}
}

func writeTransactionsSheet(w *sheetWriter, doc reportDocument) {
	headerStyle := w.newStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    cellBorder(),
	})
	dataStyle := w.newStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "center"},
		Border:    cellBorder(),
	})
	numFmt := "#,##0.00"
	incomeStyle := w.newStyle(&excelize.Style{
		Font:         &excelize.Font{Color: incomeColor},
		CustomNumFmt: &numFmt,
		Border:       cellBorder(),
	})
	expenseStyle := w.newStyle(&excelize.Style{
		Font:         &excelize.Font{Color: expenseColor},
		CustomNumFmt: &numFmt,
		Border:       cellBorder(),
	})

	for col, width := range map[string]float64{"A": 12, "B": 36, "C": 18, "D": 18, "E": 10, "F": 14, "G": 20} {
		w.width(transactionsSheet, col, col, width)
	}

	for i, h := range transactionHeaders {
		cell := fmt.Sprintf("%c1", 'A'+i)
		w.value(transactionsSheet, cell, h)
		w.style(transactionsSheet, cell, cell, headerStyle)
	}

	for i, r := range doc.Rows {
		row := i + 2
		w.value(transactionsSheet, fmt.Sprintf("A%d", row), r.Date)
		w.value(transactionsSheet, fmt.Sprintf("B%d", row), r.Description)
		w.value(transactionsSheet, fmt.Sprintf("C%d", row), r.Category)
		w.value(transactionsSheet, fmt.Sprintf("D%d", row), r.Tag)
		w.value(transactionsSheet, fmt.Sprintf("E%d", row), string(r.Type))
		w.value(transactionsSheet, fmt.Sprintf("F%d", row), r.Amount.InexactFloat64())
		w.value(transactionsSheet, fmt.Sprintf("G%d", row), r.Account)
		w.style(transactionsSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("G%d", row), dataStyle)

		amountStyle := expenseStyle
		if r.Type == models.TransactionIncome {
			amountStyle = incomeStyle
		}
		w.style(transactionsSheet, fmt.Sprintf("F%d", row), fmt.Sprintf("F%d", row), amountStyle)
	}

	if w.err != nil {
		return
	}
	w.err = w.f.SetPanes(transactionsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	if w.err != nil {
		return
	}
	lastRow := len(doc.Rows) + 1
	w.err = w.f.AutoFilter(transactionsSheet, fmt.Sprintf("A1:G%d", lastRow), []excelize.AutoFilterOptions{})
}
