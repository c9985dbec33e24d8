package service

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatMoney 格式化为 "USD 1,234.56"，currency 为空时只输出数字
func FormatMoney(currency string, amount decimal.Decimal) string {
	p := message.NewPrinter(language.English)
	num := p.Sprintf("%.2f", amount.Round(2).InexactFloat64())
	if currency == "" {
		return num
	}
	return strings.ToUpper(currency) + " " + num
}

// ParseAmount 解析金额，允许千分位逗号和首尾空格
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return decimal.NewFromString(s)
}
