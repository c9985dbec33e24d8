package service

import (
	"io"

	"wallet/config"

	"gorm.io/gorm"
)

// Services 应用的全部业务服务，共享同一个数据库连接
type Services struct {
	Users      *UserService
	Accounts   *AccountService
	Categories *CategoryService
	Ledger     *LedgerService
	Budgets    *BudgetService
	Reports    *ReportGenerator
	Templates  *TemplateService
	Stats      *StatsService
	Importer   *Importer

	closers []io.Closer
}

// NewServices 按配置组装服务，notifiers 为空时不发送预算提醒
func NewServices(cfg *config.Config, db *gorm.DB, notifiers ...Notifier) *Services {
	presets := cfg.Categories.Presets
	evaluator := NewBudgetEvaluator(db, cfg.Budget.DegradeOnError)
	alerts := NewAlertDispatcher(db, evaluator, notifiers...)

	s := &Services{
		Users:      NewUserService(db, presets),
		Accounts:   NewAccountService(db),
		Categories: NewCategoryService(db, presets),
		Ledger:     NewLedgerService(db, alerts),
		Budgets:    NewBudgetService(db, evaluator),
		Reports:    NewReportGenerator(db, cfg.Report.PreviewRows),
		Templates:  NewTemplateService(db),
	}
	s.Stats = NewStatsService(db, s.Budgets)
	s.Importer = NewImporter(s.Ledger, s.Categories, s.Accounts)

	for _, n := range notifiers {
		if c, ok := n.(io.Closer); ok {
			s.closers = append(s.closers, c)
		}
	}
	return s
}

// Notifiers 按配置启用的预算提醒通道
func Notifiers(cfg *config.Config) []Notifier {
	var out []Notifier
	if cfg.Email.Enabled {
		out = append(out, NewEmailService(&cfg.Email))
	}
	if cfg.Notify.AMQP.Enabled {
		out = append(out, NewAMQPNotifier(cfg.Notify.AMQP))
	}
	return out
}

// Close 释放提醒通道持有的连接
func (s *Services) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
