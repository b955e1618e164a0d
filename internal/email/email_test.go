package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/mrz1836/postmark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"accountgate/internal/auth"
	"accountgate/internal/config"
	"accountgate/internal/i18n"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to, subject, text, html string) error {
	args := m.Called(ctx, to, subject, text, html)
	return args.Error(0)
}

type mockPostmark struct {
	mock.Mock
}

func (m *mockPostmark) SendEmail(ctx context.Context, e postmark.Email) (postmark.EmailResponse, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(postmark.EmailResponse), args.Error(1)
}

func TestNotifier_SendVerifyCode_UsesContextLocale(t *testing.T) {
	s := new(mockSender)
	s.On("Send", mock.Anything, "a@x.com", "Bestätigungscode für dein Konto",
		mock.MatchedBy(func(text string) bool { return strings.Contains(text, "048213") }),
		mock.Anything,
	).Return(nil).Once()

	ctx := i18n.WithLocale(context.Background(), "de")
	err := NewNotifier(s).SendVerifyCode(ctx, "a@x.com", "048213", 10*time.Minute)
	require.NoError(t, err)
	s.AssertExpectations(t)
}

func TestNotifier_PropagatesSenderError(t *testing.T) {
	s := new(mockSender)
	boom := errors.New("connection refused")
	s.On("Send", mock.Anything, "a@x.com", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	n := NewNotifier(s)
	ctx := context.Background()
	assert.ErrorIs(t, n.SendResetCode(ctx, "a@x.com", "123456", 15*time.Minute), boom)
	assert.ErrorIs(t, n.SendWelcome(ctx, "a@x.com"), boom)
	assert.ErrorIs(t, n.SendSignInAlert(ctx, "a@x.com", auth.SignInInfo{Time: time.Now()}), boom)
}

func TestPostmarkSender_Send(t *testing.T) {
	api := new(mockPostmark)
	p := &PostmarkSender{client: api, from: "noreply@x.com", replyTo: "support@x.com"}

	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(e postmark.Email) bool {
		return e.From == "noreply@x.com" && e.To == "a@x.com" && e.ReplyTo == "support@x.com" && e.TextBody == "text"
	})).Return(postmark.EmailResponse{}, nil).Once()
	require.NoError(t, p.Send(context.Background(), "a@x.com", "subject", "text", "<p>html</p>"))

	api.On("SendEmail", mock.Anything, mock.Anything).
		Return(postmark.EmailResponse{ErrorCode: 406, Message: "inactive recipient"}, nil).Once()
	err := p.Send(context.Background(), "a@x.com", "subject", "text", "<p>html</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactive recipient")

	api.AssertExpectations(t)
}

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	s, err := New(config.EmailConfig{Provider: "log"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &LogSender{}, s)

	s, err = New(config.EmailConfig{Provider: "smtp", Host: "smtp.x.com", Port: 587, From: "a@x.com"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, s)

	_, err = New(config.EmailConfig{Provider: "postmark"}, logger)
	assert.Error(t, err)

	s, err = New(config.EmailConfig{Provider: "postmark", PostmarkServerToken: "s", PostmarkAccountToken: "a", From: "a@x.com"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &PostmarkSender{}, s)

	_, err = New(config.EmailConfig{Provider: "pigeon"}, logger)
	assert.Error(t, err)
}

func TestLogSender_WritesMessage(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, s.Send(context.Background(), "a@x.com", "hello", "code 123456", ""))
	assert.Contains(t, buf.String(), "a@x.com")
	assert.Contains(t, buf.String(), "123456")
}

func TestSMTPSender_RequiresConfig(t *testing.T) {
	err := NewSMTPSender(config.EmailConfig{}).Send(context.Background(), "a@x.com", "s", "t", "")
	assert.Error(t, err)
}

func smtpTestConfig() config.EmailConfig {
	return config.EmailConfig{Provider: "smtp", Host: "mail.test", Port: 25, From: "noreply@x.com"}
}

// pipeSender returns a sender whose dial hands out one end of an in-memory
// pipe; the other end is passed to serve.
func pipeSender(cfg config.EmailConfig, serve func(net.Conn)) *SMTPSender {
	s := NewSMTPSender(cfg)
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		client, server := net.Pipe()
		go serve(server)
		return client, nil
	}
	return s
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	dialed := false
	s := NewSMTPSender(smtpTestConfig())
	s.dial = func(context.Context, string, string) (net.Conn, error) {
		dialed = true
		return nil, errors.New("unreachable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Send(ctx, "a@x.com", "s", "t", "")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, dialed)
}

func TestSMTPSender_ClosesConnOnBadGreeting(t *testing.T) {
	closed := make(chan error, 1)
	s := pipeSender(smtpTestConfig(), func(c net.Conn) {
		_, _ = c.Write([]byte("554 go away\r\n"))
		_, err := c.Read(make([]byte, 1))
		closed <- err
		_ = c.Close()
	})

	err := s.Send(context.Background(), "a@x.com", "s", "t", "")
	require.Error(t, err)
	select {
	case err := <-closed:
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("client connection was left open")
	}
}

func TestSMTPSender_Delivers(t *testing.T) {
	got := make(chan []string, 1)
	s := pipeSender(smtpTestConfig(), func(c net.Conn) {
		defer c.Close()
		tp := textproto.NewConn(c)
		var cmds []string
		_ = tp.PrintfLine("220 mail.test ESMTP")
		for {
			line, err := tp.ReadLine()
			if err != nil {
				got <- cmds
				return
			}
			cmds = append(cmds, line)
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_ = tp.PrintfLine("250 mail.test")
			case line == "DATA":
				_ = tp.PrintfLine("354 go ahead")
				body, _ := tp.ReadDotLines()
				cmds = append(cmds, strings.Join(body, "\n"))
				_ = tp.PrintfLine("250 queued")
			case line == "QUIT":
				_ = tp.PrintfLine("221 bye")
				got <- cmds
				return
			default:
				_ = tp.PrintfLine("250 ok")
			}
		}
	})

	require.NoError(t, s.Send(context.Background(), "a@x.com", "Your code", "code 4821", ""))
	cmds := <-got
	require.Len(t, cmds, 6)
	assert.Equal(t, "MAIL FROM:<noreply@x.com>", cmds[1])
	assert.Equal(t, "RCPT TO:<a@x.com>", cmds[2])
	assert.Contains(t, cmds[4], "Subject: Your code")
	assert.Contains(t, cmds[4], "code 4821")
	assert.Equal(t, "QUIT", cmds[5])
}
