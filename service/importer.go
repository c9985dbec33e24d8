package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"wallet/logger"
	"wallet/models"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

// csvColumns 无表头时的固定列顺序
var csvColumns = []string{"amount", "type", "description", "date", "category", "tag"}

// RowError 导入失败的行
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult 导入结果
type ImportResult struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

func (r *ImportResult) fail(line int, err error) {
	r.Failed++
	r.Errors = append(r.Errors, RowError{Line: line, Message: rowMessage(err)})
}

func rowMessage(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		for _, k := range []string{"amount", "type", "date", "category", "tag", "description"} {
			if msg, ok := verr.Fields[k]; ok {
				return k + ": " + msg
			}
		}
	}
	return err.Error()
}

// Importer 批量导入交易，每行单独走记账流程，坏行跳过并记录行号
type Importer struct {
	ledger     *LedgerService
	categories *CategoryService
	accounts   *AccountService
	log        *slog.Logger
}

// NewImporter 创建导入服务
func NewImporter(ledger *LedgerService, categories *CategoryService, accounts *AccountService) *Importer {
	return &Importer{
		ledger:     ledger,
		categories: categories,
		accounts:   accounts,
		log:        logger.Component(logger.ComponentImport),
	}
}

// ImportCSV 导入 CSV，列为 amount,type,description,date,category,tag
// 首行包含 amount 列名时按表头（不区分大小写）映射，否则按固定顺序
func (im *Importer) ImportCSV(ctx context.Context, userID, accountID uint, r io.Reader) (*ImportResult, error) {
	if _, err := im.accounts.Get(ctx, userID, accountID); err != nil {
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{Errors: []RowError{}}
	index := defaultColumnIndex()
	categoryCache := make(map[string]uint)
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				result.fail(perr.Line, err)
				continue
			}
			return nil, NewValidationError("file", "无法读取 CSV 文件")
		}
		line, _ := reader.FieldPos(0)
		if isBlank(record) {
			continue
		}
		if first {
			first = false
			if header, ok := headerIndex(record); ok {
				index = header
				continue
			}
		}

		in, err := im.parseRow(ctx, userID, accountID, record, index, categoryCache)
		if err == nil {
			_, err = im.ledger.Create(ctx, userID, in)
		}
		if err != nil {
			result.fail(line, err)
			continue
		}
		result.Imported++
	}

	im.log.Info("CSV 导入完成", logger.FieldUserID, userID, "account_id", accountID,
		"imported", result.Imported, "failed", result.Failed)
	return result, nil
}

func defaultColumnIndex() map[string]int {
	index := make(map[string]int, len(csvColumns))
	for i, c := range csvColumns {
		index[c] = i
	}
	return index
}

func headerIndex(record []string) (map[string]int, bool) {
	index := make(map[string]int)
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if name != "" {
			index[name] = i
		}
	}
	if _, ok := index["amount"]; !ok {
		return nil, false
	}
	return index, true
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func field(record []string, index map[string]int, name string) string {
	i, ok := index[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (im *Importer) parseRow(ctx context.Context, userID, accountID uint, record []string, index map[string]int, cache map[string]uint) (TransactionInput, error) {
	in := TransactionInput{
		AccountID:   accountID,
		Description: field(record, index, "description"),
		Tag:         field(record, index, "tag"),
		Type:        models.TransactionType(strings.ToLower(field(record, index, "type"))),
	}

	amount, err := ParseAmount(field(record, index, "amount"))
	if err != nil {
		return in, NewValidationError("amount", "金额格式错误")
	}
	// 负数金额视为支出
	if amount.IsNegative() {
		amount = amount.Neg()
		if in.Type == "" {
			in.Type = models.TransactionExpense
		}
	}
	in.Amount = amount

	date, err := time.ParseInLocation("2006-01-02", field(record, index, "date"), time.Local)
	if err != nil {
		return in, NewValidationError("date", "日期格式应为 YYYY-MM-DD")
	}
	in.Date = date

	name := field(record, index, "category")
	if name == "" {
		return in, NewValidationError("category", "分类不能为空")
	}
	key := strings.ToLower(name)
	id, ok := cache[key]
	if !ok {
		c, err := im.categories.ResolveByName(ctx, userID, name)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return in, NewValidationError("category", fmt.Sprintf("分类 %q 不存在", name))
			}
			return in, err
		}
		id = c.ID
		cache[key] = id
	}
	in.CategoryID = id
	return in, nil
}

// ImportOFX 导入 OFX/QFX 对账单，负数为支出，全部记入 categoryID
// 已导入过的流水号（FITID）会被跳过
func (im *Importer) ImportOFX(ctx context.Context, userID, accountID, categoryID uint, r io.Reader) (*ImportResult, error) {
	if _, err := im.accounts.Get(ctx, userID, accountID); err != nil {
		return nil, err
	}
	if _, err := im.categories.Get(ctx, userID, categoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NewValidationError("category_id", "分类不存在")
		}
		return nil, err
	}

	inputs, err := ParseOFX(r)
	if err != nil {
		return nil, NewValidationError("file", "无法解析 OFX 文件")
	}

	result := &ImportResult{Errors: []RowError{}}
	for i, in := range inputs {
		if in.ExternalID != "" {
			exists, err := im.ledger.externalIDExists(ctx, userID, accountID, in.ExternalID)
			if err != nil {
				return nil, err
			}
			if exists {
				result.Skipped++
				continue
			}
		}
		in.AccountID = accountID
		in.CategoryID = categoryID
		if _, err := im.ledger.Create(ctx, userID, in); err != nil {
			result.fail(i+1, err)
			continue
		}
		result.Imported++
	}

	im.log.Info("OFX 导入完成", logger.FieldUserID, userID, "account_id", accountID,
		"imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// ParseOFX 解析银行和信用卡对账单中的交易，未设置账户和分类
func ParseOFX(r io.Reader) ([]TransactionInput, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取 OFX 失败: %w", err)
	}
	resp, err := ofxgo.ParseResponse(bytes.NewReader(bytes.TrimLeft(content, " \t\r\n")))
	if err != nil {
		return nil, fmt.Errorf("解析 OFX 失败: %w", err)
	}

	var out []TransactionInput
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			for _, t := range stmt.BankTranList.Transactions {
				out = append(out, ofxInput(t))
			}
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			for _, t := range stmt.BankTranList.Transactions {
				out = append(out, ofxInput(t))
			}
		}
	}
	return out, nil
}

func ofxInput(t ofxgo.Transaction) TransactionInput {
	amount, err := decimal.NewFromString(t.TrnAmt.FloatString(2))
	if err != nil {
		amount = decimal.Zero
	}
	typ := models.TransactionIncome
	if amount.IsNegative() {
		typ = models.TransactionExpense
		amount = amount.Neg()
	}

	desc := strings.TrimSpace(string(t.Name))
	if t.Payee != nil && t.Payee.Name != "" {
		desc = strings.TrimSpace(string(t.Payee.Name))
	}
	if memo := strings.TrimSpace(string(t.Memo)); memo != "" {
		if desc == "" {
			desc = memo
		} else {
			desc += " - " + memo
		}
	}
	if r := []rune(desc); len(r) > MaxDescriptionLength {
		desc = string(r[:MaxDescriptionLength])
	}

	return TransactionInput{
		Amount:      amount,
		Type:        typ,
		Date:        t.DtPosted.Time.In(time.Local),
		Description: desc,
		ExternalID:  string(t.FiTID),
	}
}
