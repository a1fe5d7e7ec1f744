package service

import (
	"fmt"
	"log"

	"careledger/config"
	"careledger/ledger"
	"careledger/models"

	"gopkg.in/gomail.v2"
)

// AlertService 预算阈值告警服务
// 账本只负责评估水位，越线后是否通知、通知谁由这里决定
type AlertService struct {
	cfg *config.EmailConfig
}

// NewAlertService 创建告警服务
func NewAlertService(cfg *config.EmailConfig) *AlertService {
	return &AlertService{cfg: cfg}
}

// levelTitles 各水位档对应的邮件标题
var levelTitles = map[ledger.ThresholdLevel]string{
	ledger.ThresholdWarning:   "预算预警",
	ledger.ThresholdCritical:  "预算告急",
	ledger.ThresholdExhausted: "预算已耗尽",
}

// NotifyThreshold 预算越过预警/告急/耗尽水位时发送告警邮件
// 正常水位、预算关闭告警或邮件服务未启用时为空操作
func (s *AlertService) NotifyThreshold(b *models.Budget, level ledger.ThresholdLevel) error {
	if level == ledger.ThresholdOK || !b.AlertsEnabled {
		return nil
	}
	if !s.cfg.Enabled {
		log.Printf("邮件服务未启用，跳过预算 %d 的 %s 告警", b.ID, level)
		return nil
	}
	if len(s.cfg.AlertTo) == 0 {
		return fmt.Errorf("未配置告警收件人（email.alert_to）")
	}

	title, ok := levelTitles[level]
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("【照护预算系统】%s（预算 #%d）", title, b.ID)
	body := s.generateAlertBody(b, level, title)
	return s.sendEmail(s.cfg.AlertTo, subject, body)
}

// generateAlertBody 生成告警邮件内容
func (s *AlertService) generateAlertBody(b *models.Budget, level ledger.ThresholdLevel, title string) string {
	color := "#f59e0b"
	if level == ledger.ThresholdCritical || level == ledger.ThresholdExhausted {
		color = "#ef4444"
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
        .content p { color: #333; line-height: 1.8; margin: 0 0 12px; }
        .row { display: flex; justify-content: space-between; border-bottom: 1px solid #eee; padding: 8px 0; }
        .footer { background: #f8f9fa; padding: 20px 30px; text-align: center; color: #6c757d; font-size: 12px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>⚠️ %s</h1>
        </div>
        <div class="content">
            <p>客户 #%d 的预算（周期 %s ~ %s）当前水位：<strong>%s</strong></p>
            <div class="row"><span>总额度</span><strong>%s</strong></div>
            <div class="row"><span>已用</span><strong>%s</strong></div>
            <div class="row"><span>占用（待审批）</span><strong>%s</strong></div>
            <div class="row"><span>余额</span><strong>%s</strong></div>
            <p>请及时复核该客户的支出计划。</p>
        </div>
        <div class="footer">
            <p>此邮件由系统自动发送，请勿回复</p>
            <p>© 照护预算系统</p>
        </div>
    </div>
</body>
</html>
`, color, title, b.ClientID,
		b.PeriodStart.Format("2006-01-02"), b.PeriodEnd.Format("2006-01-02"),
		level,
		b.TotalAllocated.StringFixed(2),
		b.TotalSpent.StringFixed(2),
		b.TotalCommitted.StringFixed(2),
		b.Remaining.StringFixed(2))
}

// sendEmail 发送邮件
func (s *AlertService) sendEmail(to []string, subject, body string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.Username, s.cfg.From))
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("发送告警邮件失败: %w", err)
	}
	return nil
}
