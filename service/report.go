package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"wallet/logger"
	"wallet/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportFormat 报表格式
type ReportFormat string

const (
	ReportXLSX ReportFormat = "xlsx"
	ReportPDF  ReportFormat = "pdf"
)

// MimeType 报表文件的 Content-Type
func (f ReportFormat) MimeType() string {
	switch f {
	case ReportXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ReportPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Valid 是否为支持的格式
func (f ReportFormat) Valid() bool {
	return f == ReportXLSX || f == ReportPDF
}

// ReportFilters 报表筛选条件，导出时 AccountIDs 必须只有一个
type ReportFilters struct {
	StartDate   *time.Time
	EndDate     *time.Time
	AccountIDs  []uint
	CategoryIDs []uint
	Type        models.TransactionType
	Format      ReportFormat
}

func (f ReportFilters) transactionFilter() TransactionFilter {
	return TransactionFilter{
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Type:        f.Type,
		AccountIDs:  f.AccountIDs,
		CategoryIDs: f.CategoryIDs,
	}
}

// period 报表期间文字
func (f ReportFilters) period() string {
	const layout = "January 02, 2006"
	switch {
	case f.StartDate != nil && f.EndDate != nil:
		return f.StartDate.Format(layout) + " - " + f.EndDate.Format(layout)
	case f.StartDate != nil:
		return "Since " + f.StartDate.Format(layout)
	case f.EndDate != nil:
		return "Until " + f.EndDate.Format(layout)
	default:
		return "All time"
	}
}

// ReportSummary 报表汇总
type ReportSummary struct {
	Currency      string          `json:"currency"`
	TotalIncome   decimal.Decimal `json:"total_income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Net           decimal.Decimal `json:"net"`
	Count         int             `json:"count"`
	Income        string          `json:"income_formatted"`
	Expenses      string          `json:"expenses_formatted"`
	NetFormatted  string          `json:"net_formatted"`
}

// Summarize 汇总交易，currency 为空时金额不带币种前缀
func Summarize(txs []models.Transaction, currency string) ReportSummary {
	s := ReportSummary{Currency: currency, Count: len(txs)}
	for _, t := range txs {
		if t.Type == models.TransactionIncome {
			s.TotalIncome = s.TotalIncome.Add(t.Amount)
		} else {
			s.TotalExpenses = s.TotalExpenses.Add(t.Amount)
		}
	}
	s.Net = s.TotalIncome.Sub(s.TotalExpenses)
	s.Income = FormatMoney(currency, s.TotalIncome)
	s.Expenses = FormatMoney(currency, s.TotalExpenses)
	s.NetFormatted = FormatMoney(currency, s.Net)
	return s
}

// SortForReport 日期倒序，同一天按创建顺序（id 升序）
func SortForReport(txs []models.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

// ReportFile 生成的报表文件
type ReportFile struct {
	Data     []byte
	MimeType string
	Filename string
}

// ReportRow 报表明细行
type ReportRow struct {
	ID          uint                   `json:"id"`
	Date        string                 `json:"date"`
	Description string                 `json:"description"`
	Category    string                 `json:"category"`
	Tag         string                 `json:"tag"`
	Type        models.TransactionType `json:"type"`
	Amount      decimal.Decimal        `json:"amount"`
	Formatted   string                 `json:"amount_formatted"`
	Account     string                 `json:"account"`
}

func reportRow(t models.Transaction, currency string) ReportRow {
	row := ReportRow{
		ID:          t.ID,
		Date:        t.Date.Format("2006-01-02"),
		Description: t.Description,
		Tag:         t.Tag,
		Type:        t.Type,
		Amount:      t.Amount,
		Formatted:   FormatMoney(currency, t.Amount),
	}
	if t.Category != nil {
		row.Category = t.Category.Name
	}
	if t.Account != nil {
		row.Account = t.Account.Name
	}
	return row
}

// ReportPreview 预览：汇总全部匹配记录，明细只取前 N 条
type ReportPreview struct {
	Summary ReportSummary `json:"summary"`
	Rows    []ReportRow   `json:"rows"`
	Total   int           `json:"total"`
}

// reportDocument 渲染所需的全部数据
type reportDocument struct {
	Title       string
	Period      string
	Account     string
	GeneratedAt time.Time
	Summary     ReportSummary
	Rows        []ReportRow
}

// ReportGenerator 报表生成
type ReportGenerator struct {
	db          *gorm.DB
	previewRows int
	now         func() time.Time
	log         *slog.Logger
}

// NewReportGenerator previewRows 为预览的明细行数
func NewReportGenerator(db *gorm.DB, previewRows int) *ReportGenerator {
	if previewRows <= 0 {
		previewRows = 10
	}
	return &ReportGenerator{
		db:          db,
		previewRows: previewRows,
		now:         time.Now,
		log:         logger.Component(logger.ComponentReport),
	}
}

// Transactions 查询报表明细，已排序
func (g *ReportGenerator) Transactions(ctx context.Context, userID uint, f ReportFilters) ([]models.Transaction, error) {
	q := f.transactionFilter().apply(g.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID))

	var txs []models.Transaction
	if err := q.Preload("Account").Preload("Category").
		Order("date DESC, id ASC").
		Find(&txs).Error; err != nil {
		return nil, persistErr("查询报表数据失败", err)
	}
	SortForReport(txs)
	return txs, nil
}

// Export 按筛选条件导出单个账户的报表
func (g *ReportGenerator) Export(ctx context.Context, userID uint, f ReportFilters) (*ReportFile, error) {
	verr := &ValidationError{}
	if !f.Format.Valid() {
		verr.Add("format", "格式必须为 xlsx 或 pdf")
	}
	if len(f.AccountIDs) != 1 {
		verr.Add("account_id", "导出报表需要选择一个账户")
	}
	if f.StartDate != nil && f.EndDate != nil && f.StartDate.After(*f.EndDate) {
		verr.Add("end_date", "结束日期不能早于开始日期")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var account models.Account
	if err := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", f.AccountIDs[0], userID).First(&account).Error; err != nil {
		return nil, notFoundOr(err, "查询账户失败")
	}

	txs, err := g.Transactions(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	file, err := g.Render(txs, f, account)
	if err != nil {
		return nil, err
	}
	g.log.Info("报表已生成", logger.FieldUserID, userID, "format", f.Format, "rows", len(txs), "bytes", len(file.Data))
	return file, nil
}

// Render 将交易渲染为报表文件，交易为空时返回 ErrNoData
func (g *ReportGenerator) Render(txs []models.Transaction, f ReportFilters, account models.Account) (*ReportFile, error) {
	if len(txs) == 0 {
		return nil, ErrNoData
	}
	if !f.Format.Valid() {
		return nil, NewValidationError("format", "格式必须为 xlsx 或 pdf")
	}

	sorted := make([]models.Transaction, len(txs))
	copy(sorted, txs)
	SortForReport(sorted)

	now := g.now()
	doc := reportDocument{
		Title:       "Spending Report",
		Period:      f.period(),
		Account:     fmt.Sprintf("%s (%s)", account.Name, account.Currency),
		GeneratedAt: now,
		Summary:     Summarize(sorted, account.Currency),
		Rows:        make([]ReportRow, 0, len(sorted)),
	}
	for _, t := range sorted {
		doc.Rows = append(doc.Rows, reportRow(t, account.Currency))
	}

	var (
		data []byte
		err  error
	)
	switch f.Format {
	case ReportXLSX:
		data, err = renderXLSX(doc)
	case ReportPDF:
		data, err = renderPDF(doc)
	}
	if err != nil {
		return nil, &ReportError{Format: string(f.Format), Err: err}
	}

	return &ReportFile{
		Data:     data,
		MimeType: f.Format.MimeType(),
		Filename: fmt.Sprintf("spending_report_%s.%s", now.Format("20060102"), f.Format),
	}, nil
}

// Preview 汇总全部匹配记录，只返回前 N 条明细
// 所有记录币种相同时金额带币种前缀
func (g *ReportGenerator) Preview(ctx context.Context, userID uint, f ReportFilters) (*ReportPreview, error) {
	txs, err := g.Transactions(ctx, userID, f)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ErrNoData
	}

	currency := sharedCurrency(txs)
	p := &ReportPreview{
		Summary: Summarize(txs, currency),
		Total:   len(txs),
	}
	n := g.previewRows
	if n > len(txs) {
		n = len(txs)
	}
	p.Rows = make([]ReportRow, 0, n)
	for _, t := range txs[:n] {
		p.Rows = append(p.Rows, reportRow(t, currency))
	}
	return p, nil
}

func sharedCurrency(txs []models.Transaction) string {
	currency := ""
	for _, t := range txs {
		if t.Account == nil {
			return ""
		}
		if currency == "" {
			currency = t.Account.Currency
		} else if currency != t.Account.Currency {
			return ""
		}
	}
	return currency
}
