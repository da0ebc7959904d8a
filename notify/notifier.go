// Package notify delivers account lifecycle email. The SMTP notifier renders
// templates supplied at construction; there is no global template registry.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	gomail "gopkg.in/gomail.v2"

	"github.com/goliatone/go-identity/core"
)

// Templates carries the rendered surfaces for each message kind. Body
// templates receive the data map passed by the caller plus "Email" and
// either "Code" or "Token".
type Templates struct {
	VerificationSubject  string
	VerificationBody     *template.Template
	PasswordResetSubject string
	PasswordResetBody    *template.Template
}

func (t Templates) validate() error {
	if strings.TrimSpace(t.VerificationSubject) == "" || t.VerificationBody == nil {
		return fmt.Errorf("notify: verification template is incomplete")
	}
	if strings.TrimSpace(t.PasswordResetSubject) == "" || t.PasswordResetBody == nil {
		return fmt.Errorf("notify: password reset template is incomplete")
	}
	return nil
}

// DefaultTemplates returns a plain-text template set usable out of the box.
func DefaultTemplates() Templates {
	return Templates{
		VerificationSubject: "Verify your email address",
		VerificationBody: template.Must(template.New("verification").Parse(
			"Hi {{.FirstName}},\n\n" +
				"Use the code below to verify your email address:\n\n" +
				"    {{.Code}}\n\n" +
				"If you did not create this account you can ignore this message.\n",
		)),
		PasswordResetSubject: "Reset your password",
		PasswordResetBody: template.Must(template.New("password_reset").Parse(
			"Hi {{.FirstName}},\n\n" +
				"Use the token below to reset your password:\n\n" +
				"    {{.Token}}\n\n" +
				"If you did not request a reset you can ignore this message.\n",
		)),
	}
}

// SMTPConfig is the dialer configuration for the SMTP notifier.
type SMTPConfig struct {
	Host     string `koanf:"host" mapstructure:"host"`
	Port     int    `koanf:"port" mapstructure:"port"`
	Username string `koanf:"username" mapstructure:"username"`
	Password string `koanf:"password" mapstructure:"password"`
	From     string `koanf:"from" mapstructure:"from"`
}

func (c SMTPConfig) validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("notify: smtp host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("notify: smtp port must be positive")
	}
	if strings.TrimSpace(c.From) == "" {
		return fmt.Errorf("notify: smtp from address is required")
	}
	return nil
}

// mailSender is the slice of gomail.Dialer the notifier uses, so tests can
// capture outbound messages.
type mailSender interface {
	DialAndSend(messages ...*gomail.Message) error
}

// SMTPNotifier implements core.Notifier over a gomail dialer.
type SMTPNotifier struct {
	config    SMTPConfig
	templates Templates
	sender    mailSender
	logger    core.Logger
}

type SMTPOption func(*SMTPNotifier)

func WithSender(sender mailSender) SMTPOption {
	return func(n *SMTPNotifier) {
		n.sender = sender
	}
}

func WithLogger(logger core.Logger) SMTPOption {
	return func(n *SMTPNotifier) {
		n.logger = logger
	}
}

func NewSMTPNotifier(cfg SMTPConfig, templates Templates, opts ...SMTPOption) (*SMTPNotifier, error) {
	if err := templates.validate(); err != nil {
		return nil, err
	}

	notifier := &SMTPNotifier{
		config:    cfg,
		templates: templates,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(notifier)
	}
	if notifier.sender == nil {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		notifier.sender = gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	}
	notifier.logger = glog.Ensure(notifier.logger)
	return notifier, nil
}

func (n *SMTPNotifier) SendVerificationEmail(ctx context.Context, email string, code string, data map[string]any) error {
	body, err := renderBody(n.templates.VerificationBody, email, data, "Code", code)
	if err != nil {
		return err
	}
	return n.send(ctx, email, n.templates.VerificationSubject, body)
}

func (n *SMTPNotifier) SendPasswordResetEmail(ctx context.Context, email string, token string, data map[string]any) error {
	body, err := renderBody(n.templates.PasswordResetBody, email, data, "Token", token)
	if err != nil {
		return err
	}
	return n.send(ctx, email, n.templates.PasswordResetSubject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to string, subject string, body string) error {
	if n == nil || n.sender == nil {
		return fmt.Errorf("notify: notifier is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("notify: recipient is required")
	}

	message := gomail.NewMessage()
	message.SetHeader("From", n.config.From)
	message.SetHeader("To", to)
	message.SetHeader("Subject", subject)
	message.SetBody("text/plain", body)

	startedAt := time.Now()
	if err := n.sender.DialAndSend(message); err != nil {
		n.logger.Error("email delivery failed",
			"to", to,
			"subject", subject,
			"error", err,
		)
		return fmt.Errorf("notify: send email: %w", err)
	}
	n.logger.Debug("email delivered",
		"to", to,
		"subject", subject,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	)
	return nil
}

func renderBody(tmpl *template.Template, email string, data map[string]any, secretKey string, secret string) (string, error) {
	if tmpl == nil {
		return "", fmt.Errorf("notify: body template is missing")
	}
	payload := make(map[string]any, len(data)+2)
	for key, value := range data {
		payload[key] = value
	}
	payload["Email"] = email
	payload[secretKey] = secret
	if _, found := payload["FirstName"]; !found {
		payload["FirstName"] = "there"
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("notify: render template: %w", err)
	}
	return buf.String(), nil
}

// NopNotifier drops all mail. Deployments that verify out of band or tests
// that only exercise lifecycle logic use this.
type NopNotifier struct{}

func (NopNotifier) SendVerificationEmail(context.Context, string, string, map[string]any) error {
	return nil
}

func (NopNotifier) SendPasswordResetEmail(context.Context, string, string, map[string]any) error {
	return nil
}

var (
	_ core.Notifier = (*SMTPNotifier)(nil)
	_ core.Notifier = NopNotifier{}
)
