package service

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/adpulse/go-expiry-service/internal/domain"
	apperr "github.com/adpulse/go-expiry-service/internal/shared/errors"
	"github.com/adpulse/go-expiry-service/internal/shared/logger"
)

// OutboundMessage is one fully rendered email ready for the relay.
type OutboundMessage struct {
	To          string
	CC          []string
	Subject     string
	Body        string
	ReadReceipt bool
}

// Mailer delivers rendered messages. The delivery job depends on this
// interface so tests can capture traffic without a relay.
type Mailer interface {
	Send(msg OutboundMessage) error
}

// EmailService renders reminder templates and delivers them over SMTP.
type EmailService struct {
	log *logger.Logger
}

// NewEmailService creates a new email service
func NewEmailService(log *logger.Logger) *EmailService {
	return &EmailService{log: log}
}

// RenderTemplate substitutes the reminder tokens with the principal's
// derived expiry values. Tokens without a binding pass through untouched
// so a typo is visible in the delivered mail instead of silently erased.
func (s *EmailService) RenderTemplate(template string, user *domain.DirectoryUser) string {
	expiryDate := ""
	if user.PasswordExpiryDate != nil {
		expiryDate = *user.PasswordExpiryDate
	}
	replacer := strings.NewReplacer(
		"{{user.displayName}}", user.DisplayName,
		"{{user.userPrincipalName}}", user.UserPrincipalName,
		"{{daysUntilExpiry}}", fmt.Sprintf("%d", user.PasswordExpiresInDays),
		"{{expiryDate}}", expiryDate,
	)
	return replacer.Replace(template)
}

// Recipients expands a profile's recipient policy for one principal. The
// first address is the To recipient; the rest go on CC.
func (s *EmailService) Recipients(policy domain.RecipientPolicy, user *domain.DirectoryUser) (to string, cc []string) {
	if policy.ToUser {
		to = user.UserPrincipalName
	}
	if policy.ToManager && user.ManagerEmail != "" {
		if to == "" {
			to = user.ManagerEmail
		} else {
			cc = append(cc, user.ManagerEmail)
		}
	}
	for _, admin := range policy.ToAdmins {
		if admin == "" {
			continue
		}
		if to == "" {
			to = admin
		} else {
			cc = append(cc, admin)
		}
	}
	return to, cc
}

// SMTPMailer sends messages through the active environment's relay.
type SMTPMailer struct {
	config domain.SMTPConfig
	log    *logger.Logger
}

// NewSMTPMailer creates a mailer bound to one relay configuration.
func NewSMTPMailer(config domain.SMTPConfig, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{config: config, log: log}
}

// Verify opens an authenticated session against the relay and quits
// without sending. Backs the connectivity probe in the settings panel.
func (m *SMTPMailer) Verify() error {
	if m.config.Host == "" {
		return apperr.NewConfigMissingError("SMTP host is not configured")
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	client, err := m.dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Quit()

	if m.config.Username != "" {
		if err := client.Auth(m.auth()); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	return nil
}

// Send delivers one message. Port 465 uses implicit TLS; everything else
// goes through SendMail, which upgrades via STARTTLS when offered.
func (m *SMTPMailer) Send(msg OutboundMessage) error {
	if m.config.Host == "" {
		return apperr.NewConfigMissingError("SMTP host is not configured")
	}
	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	payload := m.buildMessage(msg)
	recipients := append([]string{msg.To}, msg.CC...)

	if m.config.Port == 465 {
		return m.sendTLS(addr, recipients, payload)
	}

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = m.auth()
	}
	if err := smtp.SendMail(addr, auth, m.config.FromEmail, recipients, payload); err != nil {
		return apperr.NewDeliveryFailureError(msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) auth() smtp.Auth {
	return smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
}

func (m *SMTPMailer) dial(addr string) (*smtp.Client, error) {
	if m.config.Port == 465 {
		conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.config.Host})
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, m.config.Host)
	}
	return smtp.Dial(addr)
}

func (m *SMTPMailer) sendTLS(addr string, recipients []string, payload []byte) error {
	client, err := m.dial(addr)
	if err != nil {
		return apperr.NewDeliveryFailureError(recipients[0], err)
	}
	defer client.Quit()

	if m.config.Username != "" {
		if err := client.Auth(m.auth()); err != nil {
			return apperr.NewDeliveryFailureError(recipients[0], fmt.Errorf("SMTP authentication failed: %w", err))
		}
	}
	if err := client.Mail(m.config.FromEmail); err != nil {
		return apperr.NewDeliveryFailureError(recipients[0], fmt.Errorf("failed to set sender: %w", err))
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return apperr.NewDeliveryFailureError(rcpt, fmt.Errorf("failed to set recipient: %w", err))
		}
	}
	w, err := client.Data()
	if err != nil {
		return apperr.NewDeliveryFailureError(recipients[0], fmt.Errorf("failed to get data writer: %w", err))
	}
	if _, err := w.Write(payload); err != nil {
		return apperr.NewDeliveryFailureError(recipients[0], fmt.Errorf("failed to write message: %w", err))
	}
	if err := w.Close(); err != nil {
		return apperr.NewDeliveryFailureError(recipients[0], err)
	}
	return nil
}

// buildMessage assembles the RFC 822 payload. Read-receipt requests ride
// on Disposition-Notification-To and Return-Receipt-To; honoring them is
// up to the recipient's client.
func (m *SMTPMailer) buildMessage(msg OutboundMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.config.FromEmail)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if len(msg.CC) > 0 {
		fmt.Fprintf(&b, "Cc: %s\r\n", strings.Join(msg.CC, ", "))
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	if msg.ReadReceipt {
		fmt.Fprintf(&b, "Disposition-Notification-To: %s\r\n", m.config.FromEmail)
		fmt.Fprintf(&b, "Return-Receipt-To: %s\r\n", m.config.FromEmail)
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return []byte(b.String())
}
