// Package users: mailer.go отправляет одноразовые коды на почту.
package users

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Mailer доставляет код подтверждения.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SMTPConfig: настройки почтового сервера.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// NewMailer возвращает SMTP-отправитель или, без SMTP_HOST, LogMailer.
func NewMailer(cfg SMTPConfig) Mailer {
	if cfg.Host == "" {
		return LogMailer{}
	}
	return &SMTPMailer{cfg: cfg, timeout: 15 * time.Second}
}

// LogMailer только пишет в лог, что код «отправлен». Сам код маскируется.
type LogMailer struct{}

// SendOTP пишет в лог замаскированный код.
func (LogMailer) SendOTP(_ context.Context, to, code string) error {
	log.WithFields(log.Fields{
		"email": to,
		"code":  MaskCode(code),
	}).Info("SMTP не настроен: код подтверждения не отправлен по почте")
	return nil
}

// MaskCode оставляет видимой только последнюю цифру: "123456" → "*****6".
func MaskCode(code string) string {
	if len(code) <= 1 {
		return strings.Repeat("*", len(code))
	}
	return strings.Repeat("*", len(code)-1) + code[len(code)-1:]
}

// SMTPMailer отправляет письма через SMTP с STARTTLS, если сервер его поддерживает.
type SMTPMailer struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// SendOTP отправляет письмо с кодом.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string) error {
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	dialer := &net.Dialer{Timeout: m.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp: подключение: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(m.timeout))
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp: клиент: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp: starttls: %w", err)
		}
	}
	if m.cfg.User != "" {
		if err := client.Auth(smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)); err != nil {
			return fmt.Errorf("smtp: авторизация: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp: отправитель: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp: получатель: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp: data: %w", err)
	}
	if _, err := w.Write([]byte(otpMessage(m.cfg.From, to, code))); err != nil {
		return fmt.Errorf("smtp: запись письма: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: завершение письма: %w", err)
	}
	return client.Quit()
}

func otpMessage(from, to, code string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: BirdWatch <%s>\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	b.WriteString("Subject: Your verification code\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&b, "Your verification code is %s.\r\n", code)
	b.WriteString("It expires in a few minutes. If you did not request it, ignore this email.\r\n")
	return b.String()
}
