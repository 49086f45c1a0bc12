package emailsend

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "incompat-report/internal/common/errors"
	"incompat-report/internal/common/logger"
)

const provider = "SMTP"

type Service struct {
	config *Config
	logger logger.Logger
	now    func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		config: config,
		logger: log.WithFields(map[string]interface{}{"component": "email-send"}),
		now:    time.Now,
	}
}

// Execute sends input.Body as a single plain-text email. It makes exactly
// one delivery attempt; any failure is returned to the caller.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	runID := input.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	messageID := fmt.Sprintf("<%s@%s>", runID, s.config.SMTPHost)

	s.logger.Info("Executing email send", map[string]interface{}{
		"to":        maskAddress(s.config.Recipient),
		"from":      maskAddress(s.config.SMTPUsername),
		"subject":   s.config.Subject,
		"messageId": messageID,
		"bodyBytes": len(input.Body),
	})

	message, err := s.buildEmailMessage(input.Body, messageID)
	if err != nil {
		return nil, apperrors.NewSMTPError("encode", err)
	}

	if err := s.sendSMTP(ctx, message); err != nil {
		return nil, err
	}

	sentAt := s.now()
	s.logger.Info("Email sent successfully", map[string]interface{}{
		"to":        maskAddress(s.config.Recipient),
		"messageId": messageID,
	})

	return &Output{
		Success:   true,
		Message:   "Email sent successfully",
		MessageID: messageID,
		Provider:  provider,
		SentAt:    sentAt,
	}, nil
}

func (s *Service) buildEmailMessage(body, messageID string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", s.config.SMTPUsername)
	fmt.Fprintf(&buf, "To: %s\r\n", s.config.Recipient)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", s.config.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: %s\r\n", messageID)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Service) sendSMTP(ctx context.Context, message []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewSMTPError("connect", fmt.Errorf("context cancelled before sending email: %w", err))
	}

	addr := net.JoinHostPort(s.config.SMTPHost, strconv.Itoa(s.config.SMTPPort))
	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return apperrors.NewSMTPError("connect", err)
	}

	// One deadline covers the whole session.
	deadline := time.Now().Add(s.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return apperrors.NewSMTPError("connect", err)
	}

	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return apperrors.NewSMTPError("greeting", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{
			ServerName: s.config.SMTPHost,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return apperrors.NewSMTPError("starttls", err)
		}
	} else {
		s.logger.Warn("SMTP server does not offer STARTTLS", map[string]interface{}{"addr": addr})
	}

	auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return apperrors.NewSMTPError("auth", err)
	}

	if err := client.Mail(s.config.SMTPUsername); err != nil {
		return apperrors.NewSMTPError("mail_from", err)
	}
	if err := client.Rcpt(s.config.Recipient); err != nil {
		return apperrors.NewSMTPError("rcpt_to", err)
	}

	w, err := client.Data()
	if err != nil {
		return apperrors.NewSMTPError("data", err)
	}
	if _, err := w.Write(message); err != nil {
		return apperrors.NewSMTPError("data", err)
	}
	if err := w.Close(); err != nil {
		return apperrors.NewSMTPError("data", err)
	}

	if err := client.Quit(); err != nil {
		// The message was accepted at DATA; a failed QUIT is not a delivery failure.
		s.logger.Warn("SMTP QUIT failed", map[string]interface{}{"error": err})
	}
	return nil
}

// maskAddress hides the local part of an address for logs.
func maskAddress(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at <= 1 {
		return addr
	}
	return addr[:1] + strings.Repeat("*", at-1) + addr[at:]
}
