package service

import (
	"context"
	"errors"
	"fmt"

	"wallet/config"

	"gopkg.in/gomail.v2"
)

// EmailService 邮件服务
type EmailService struct {
	cfg *config.EmailConfig
}

// NewEmailService 创建邮件服务
func NewEmailService(cfg *config.EmailConfig) *EmailService {
	return &EmailService{cfg: cfg}
}

// Name 通道名
func (s *EmailService) Name() string {
	return "email"
}

// Notify 发送预算提醒邮件，用户没有邮箱时跳过
func (s *EmailService) Notify(_ context.Context, alert BudgetAlert) error {
	if alert.Email == "" {
		return errors.New("用户未设置邮箱")
	}
	return s.SendBudgetAlert(alert)
}

// SendBudgetAlert 发送预算提醒邮件
func (s *EmailService) SendBudgetAlert(alert BudgetAlert) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用，请配置 WALLET_EMAIL_ENABLED=true")
	}
	return s.sendEmail(alert.Email, s.budgetAlertSubject(alert), s.generateBudgetAlertBody(alert))
}

func (s *EmailService) budgetAlertSubject(alert BudgetAlert) string {
	if alert.Exceeded {
		return fmt.Sprintf("【Wallet】预算已超支：%s", alert.budgetName())
	}
	return fmt.Sprintf("【Wallet】预算已使用 %s%%：%s", alert.Percentage.StringFixed(2), alert.budgetName())
}

func (a BudgetAlert) budgetName() string {
	if a.Tag != "" {
		return a.Category + " / " + a.Tag
	}
	return a.Category
}

// generateBudgetAlertBody 生成预算提醒邮件内容
func (s *EmailService) generateBudgetAlertBody(alert BudgetAlert) string {
	status := "即将达到预算上限"
	color := "#f59e0b"
	if alert.Exceeded {
		status = "已超出预算"
		color = "#F44336"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: 'Microsoft YaHei', Arial, sans-serif; background: #f5f5f5; margin: 0; padding: 20px; }
        .container { max-width: 600px; margin: 0 auto; background: #fff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 20px rgba(0,0,0,0.1); }
        .header { background: %s; color: white; padding: 30px; text-align: center; }
        .header h1 { margin: 0; font-size: 24px; }
        .content { padding: 40px 30px; }
        .content p { color: #333; line-height: 1.8; margin: 0 0 20px; }
        table { width: 100%%; border-collapse: collapse; }
        td { padding: 8px 0; border-bottom: 1px solid #eee; color: #333; }
        td.value { text-align: right; font-weight: 600; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>💰 %s</h1>
        </div>
        <div class="content">
            <p>尊敬的 <strong>%s</strong>，您好！</p>
            <p>您的预算 <strong>%s</strong> %s。</p>
            <table>
                <tr><td>预算金额</td><td class="value">%s</td></tr>
                <tr><td>已花费</td><td class="value">%s</td></tr>
                <tr><td>剩余</td><td class="value">%s</td></tr>
                <tr><td>使用比例</td><td class="value">%s%%</td></tr>
                <tr><td>提醒阈值</td><td class="value">%d%%</td></tr>
            </table>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© Wallet - 您的个人财务管理助手</p>
        </div>
    </div>
</body>
</html>
`, color, status, alert.Username, alert.budgetName(), status,
		FormatMoney("", alert.Amount),
		FormatMoney("", alert.Spent),
		FormatMoney("", alert.Remaining),
		alert.Percentage.StringFixed(2),
		alert.Threshold)
}

// sendEmail 发送邮件
func (s *EmailService) sendEmail(to, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	return nil
}

// SendTestEmail 发送测试邮件
func (s *EmailService) SendTestEmail(toEmail string) error {
	if !s.cfg.Enabled {
		return fmt.Errorf("邮件服务未启用")
	}

	subject := "【Wallet】邮件配置测试"
	body := `
<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; padding: 20px;">
    <h2>✅ 邮件配置成功</h2>
    <p>如果您收到这封邮件，说明预算提醒邮件可以正常发送。</p>
    <p style="color: #666;">Wallet</p>
</body>
</html>
`
	return s.sendEmail(toEmail, subject, body)
}
