package email

import (
	"context"
	"fmt"

	"github.com/mrz1836/postmark"
	"github.com/samber/oops"

	"accountgate/internal/config"
)

// postmarkAPI is the part of *postmark.Client used here.
type postmarkAPI interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// PostmarkSender sends through Postmark's transactional API.
type PostmarkSender struct {
	client  postmarkAPI
	from    string
	replyTo string
}

func NewPostmarkSender(cfg config.EmailConfig) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" || cfg.PostmarkAccountToken == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("postmark server and account tokens are required")
	}
	if cfg.From == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("sender address is required")
	}
	return &PostmarkSender{
		client:  postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:    cfg.From,
		replyTo: cfg.ReplyTo,
	}, nil
}

func (p *PostmarkSender) Send(ctx context.Context, to, subject, text, html string) error {
	resp, err := p.client.SendEmail(ctx, postmark.Email{
		From:     p.from,
		ReplyTo:  p.replyTo,
		To:       to,
		Subject:  subject,
		Tag:      "account",
		HTMLBody: html,
		TextBody: text,
	})
	if err != nil {
		return oops.Code("EMAIL_SEND_FAILED").With("provider", "postmark").Wrap(err)
	}
	if resp.ErrorCode > 0 {
		return oops.Code("EMAIL_SEND_FAILED").
			With("provider", "postmark", "postmark_code", resp.ErrorCode).
			Wrap(fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
