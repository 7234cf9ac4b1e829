package deliver

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/example/vmdisk-report/internal/config"
	"github.com/example/vmdisk-report/internal/credstore"
	logging "github.com/example/vmdisk-report/internal/log"
)

// MailDispatcher sends the report as the HTML body of one message.
type MailDispatcher struct {
	cfg  config.MailConfig
	cred credstore.Credential
	// send is replaced in tests.
	send func(ctx context.Context, c *mail.Client, m *mail.Msg) error
}

// NewMailDispatcher returns a dispatcher that authenticates with cred.
func NewMailDispatcher(cfg config.MailConfig, cred credstore.Credential) *MailDispatcher {
	return &MailDispatcher{
		cfg:  cfg,
		cred: cred,
		send: func(ctx context.Context, c *mail.Client, m *mail.Msg) error {
			return c.DialAndSendWithContext(ctx, m)
		},
	}
}

func (d *MailDispatcher) Deliver(ctx context.Context, doc []byte) error {
	log := logging.FromContext(ctx)

	msg, err := d.message(doc)
	if err != nil {
		return err
	}
	client, err := d.client()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := d.send(ctx, client, msg); err != nil {
		return fmt.Errorf("sending report via %s: %w", client.ServerAddr(), err)
	}
	log.Info().
		Strs("to", d.cfg.To).
		Str("server", client.ServerAddr()).
		Int64("ms", time.Since(start).Milliseconds()).
		Msg("Report mailed")
	return nil
}

func (d *MailDispatcher) message(doc []byte) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(d.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", d.cfg.From, err)
	}
	if err := m.To(d.cfg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	subject := d.cfg.Subject
	if subject == "" {
		subject = config.DefaultSubject
	}
	m.Subject(subject)
	m.SetDate()
	m.SetBodyString(mail.TypeTextHTML, string(doc))
	return m, nil
}

// client builds the SMTP client. With use_ssl the session must upgrade via
// STARTTLS; without it no TLS is attempted at all, on the configured port.
func (d *MailDispatcher) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(d.cfg.SMTPPort),
		mail.WithTimeout(30 * time.Second),
	}
	if d.cfg.UseSSL {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if d.cred.Username != "" {
		auth := mail.SMTPAuthPlain
		if !d.cfg.UseSSL {
			auth = mail.SMTPAuthPlainNoEnc
		}
		opts = append(opts,
			mail.WithSMTPAuth(auth),
			mail.WithUsername(d.cred.Username),
			mail.WithPassword(d.cred.Password),
		)
	}

	c, err := mail.NewClient(d.cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating SMTP client: %w", err)
	}
	return c, nil
}
