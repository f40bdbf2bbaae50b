package notification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"

	"github.com/domodwyer/mailyak/v3"
	"go.uber.org/zap"
)

// Sink delivers a rendered message.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError is a failed send. Permanent errors are never retried.
type DeliveryError struct {
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Permanent {
		return "permanent delivery failure: " + e.Err.Error()
	}
	return "transient delivery failure: " + e.Err.Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSink sends messages through an SMTP relay.
type SMTPSink struct {
	cfg  SMTPConfig
	addr string
	auth smtp.Auth
}

// NewSMTPSink creates an SMTP sink. Authentication is skipped when no
// username is configured, which is how local relays like Mailpit run.
func NewSMTPSink(cfg SMTPConfig) *SMTPSink {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPSink{
		cfg:  cfg,
		addr: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth: auth,
	}
}

// Send delivers msg. SMTP 5xx replies are permanent; everything else is
// worth another attempt.
func (s *SMTPSink) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return &DeliveryError{Err: err}
	}

	mail := mailyak.New(s.addr, s.auth)
	mail.To(msg.To)
	mail.From(s.cfg.From)
	if s.cfg.FromName != "" {
		mail.FromName(s.cfg.FromName)
	}
	mail.Subject(msg.Subject)
	mail.Plain().Set(msg.Body)

	if err := mail.Send(); err != nil {
		return classifySMTP(err)
	}
	return nil
}

func classifySMTP(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) && protoErr.Code >= 500 {
		return &DeliveryError{Permanent: true, Err: fmt.Errorf("smtp %d: %w", protoErr.Code, err)}
	}
	return &DeliveryError{Err: err}
}

// LogSink writes messages to the log instead of sending them.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink for local development.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.With(zap.String("sink", "log"))}
}

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.log.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
