package services

import (
	"errors"
	"fmt"

	"github.com/mlegall/assohub/internal/config"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// ErrMailerUnconfigured is returned when no SMTP relay is configured.
var ErrMailerUnconfigured = errors.New("mail relay not configured")

// Mailer forwards contact-form submissions to the feedback address over an
// authenticated TLS connection to the configured relay.
type Mailer struct {
	cfg config.SMTPConfig
	log zerolog.Logger
}

func NewMailer(cfg config.SMTPConfig, log zerolog.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// SendContact relays one contact-form message. The visitor address only
// appears in the subject; the relay account is the envelope sender.
func (m *Mailer) SendContact(visitorEmail, htmlBody string) error {
	if m.cfg.Host == "" || m.cfg.Receiver == "" {
		return ErrMailerUnconfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.Username); err != nil {
		return fmt.Errorf("sender address: %w", err)
	}
	if err := msg.To(m.cfg.Receiver); err != nil {
		return fmt.Errorf("receiver address: %w", err)
	}
	msg.Subject(fmt.Sprintf("Message depuis le formulaire contact (%s)", visitorEmail))
	msg.SetBodyString(mail.TypeTextPlain, "Message au format HTML.")
	msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)

	client, err := mail.NewClient(m.cfg.Host,
		mail.WithPort(m.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.cfg.Username),
		mail.WithPassword(m.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	if err := client.DialAndSend(msg); err != nil {
		m.log.Error().Err(err).Msg("contact mail relay failed")
		return err
	}
	return nil
}
