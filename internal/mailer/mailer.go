// Package mailer delivers password reset codes over SMTP.
package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
)

// Sender delivers a reset code to an address.
type Sender interface {
	SendResetCode(ctx context.Context, to, code string) error
}

// Options configures the SMTP relay.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP is a Sender backed by an authenticated SMTP relay.
type SMTP struct {
	opts Options
}

func NewSMTP(opts Options) *SMTP {
	if opts.From == "" {
		opts.From = opts.Username
	}
	return &SMTP{opts: opts}
}

// dialAndSend is a seam for tests.
var dialAndSend = func(ctx context.Context, c *mail.Client, msgs ...*mail.Msg) error {
	return c.DialAndSendWithContext(ctx, msgs...)
}

// BuildResetMessage composes the reset code mail.
func BuildResetMessage(from, to, code string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("recipient address: %w", err)
	}
	msg.Subject("Password Reset Code")
	msg.SetBodyString(mail.TypeTextPlain, "this is your reset code : "+code)
	return msg, nil
}

func (s *SMTP) SendResetCode(ctx context.Context, to, code string) error {
	msg, err := BuildResetMessage(s.opts.From, to, code)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.opts.Port),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
	}
	if s.opts.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
		)
	}

	client, err := mail.NewClient(s.opts.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := dialAndSend(ctx, client, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
