// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"strings"

	"club-directory-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendRefundEmail(toEmail, subject string, amount float64) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string, log logger.ILogger) IEmailService {
	return &emailService{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		logger:      log,
	}
}

func (s *emailService) SendRefundEmail(toEmail, subject string, amount float64) error {
	if strings.TrimSpace(toEmail) == "" {
		return fmt.Errorf("refund email has no recipient")
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", RefundEmailBody(amount))

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error(logger.ModuleMailer, "Failed to send refund email", map[string]interface{}{
			"to":    toEmail,
			"error": err.Error(),
		})
		return err
	}

	s.logger.Info(logger.ModuleMailer, "Refund email sent", map[string]interface{}{"to": toEmail})
	return nil
}

func RefundEmailBody(amount float64) string {
	return fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>Your refund is on its way</h2>
			<p>We have processed a refund of <strong>$%.2f</strong> for your membership.</p>
			<p>Depending on your bank it can take 5 to 10 business days to appear on your statement.</p>
			<p>If you have any questions, just reply to this email.</p>
		</div>
	`, amount)
}
