package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"github.com/samber/oops"

	"accountgate/internal/config"
)

// Sender delivers one message. Implementations must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) error
}

// New picks the sender configured by EMAIL_PROVIDER.
func New(cfg config.EmailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case "smtp":
		return NewSMTPSender(cfg), nil
	case "postmark":
		return NewPostmarkSender(cfg)
	case "", "log":
		return NewLogSender(logger), nil
	default:
		return nil, oops.Code("CONFIG_INVALID").Errorf("unknown email provider %q", cfg.Provider)
	}
}

type SMTPSender struct {
	cfg  config.EmailConfig
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	if cfg.Secure {
		// Implicit TLS (port 465).
		d := &tls.Dialer{Config: &tls.Config{ServerName: cfg.Host}}
		s.dial = d.DialContext
	} else {
		var d net.Dialer
		s.dial = d.DialContext
	}
	return s
}

// Send talks SMTP over a connection bound to ctx: cancelling ctx aborts the
// dial and closes a connection in use.
func (s *SMTPSender) Send(ctx context.Context, to, subject, text, html string) error {
	if !s.cfg.SMTPEnabled() {
		return fmt.Errorf("email is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body := html
	contentType := "text/html"
	if strings.TrimSpace(body) == "" {
		body = text
		contentType = "text/plain"
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	if s.cfg.ReplyTo != "" {
		fmt.Fprintf(&msg, "Reply-To: %s\r\n", s.cfg.ReplyTo)
	}
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"UTF-8\"\r\n\r\n", contentType)
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	conn, err := s.dial(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer client.Close()

	if !s.cfg.Secure {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}
	if err := client.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg.String())); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
