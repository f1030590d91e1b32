// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"
	"html"

	"nearmiss-bot/internal/entity"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendReportNotification(toEmail string, report entity.Report) error
}

// Dialer is the part of gomail.Dialer the service needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type emailService struct {
	dialer      Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)
	return NewEmailServiceWithDialer(d, username, senderName)
}

func NewEmailServiceWithDialer(d Dialer, senderEmail, senderName string) IEmailService {
	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

// BuildReportMessage renders the notification sent to the safety officer.
func (s *emailService) BuildReportMessage(toEmail string, report entity.Report) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("[Near-Miss][%s] %s - %s", report.Severity, report.Location, report.Area))

	media := "none"
	if report.MediaURL != "" {
		media = fmt.Sprintf(`<a href="%s">view</a>`, html.EscapeString(report.MediaURL))
	}

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>New near-miss report</h2>
			<table>
				<tr><td><b>Time</b></td><td>%s</td></tr>
				<tr><td><b>Reporter</b></td><td>%s</td></tr>
				<tr><td><b>Location</b></td><td>%s</td></tr>
				<tr><td><b>Area</b></td><td>%s</td></tr>
				<tr><td><b>Severity</b></td><td>%s</td></tr>
				<tr><td><b>Description</b></td><td>%s</td></tr>
				<tr><td><b>Media</b></td><td>%s</td></tr>
			</table>
		</div>
	`,
		report.Timestamp.In(entity.ReportZone).Format(entity.ReportTimeLayout),
		html.EscapeString(report.Name),
		html.EscapeString(report.Location),
		html.EscapeString(report.Area),
		html.EscapeString(report.Severity),
		html.EscapeString(report.Description),
		media,
	)

	m.SetBody("text/html", body)
	return m
}

func (s *emailService) SendReportNotification(toEmail string, report entity.Report) error {
	m := s.BuildReportMessage(toEmail, report)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send report notification to %s: %w", toEmail, err)
	}
	return nil
}
