package mailer

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Mailer sends the two emails the directory needs.
type Mailer interface {
	SendMagicLink(to, link string, signup bool) error
	SendWelcome(to, name, batch, directoryURL string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

type smtpMailer struct {
	config SMTPConfig
	logger zerolog.Logger
	send   func(to string, msg []byte) error
}

// NewSMTPMailer returns a mailer that only logs when SMTP credentials are missing.
func NewSMTPMailer(config SMTPConfig, logger zerolog.Logger) Mailer {
	m := &smtpMailer{config: config, logger: logger}
	m.send = m.sendSMTP
	return m
}

var magicLinkTemplate = template.Must(template.New("magic").Parse(`<html><body style="font-family: Arial, sans-serif;">
<p>{{if .Signup}}Confirm your email to finish signing up for the alumni directory.{{else}}Use the link below to sign in to the alumni directory.{{end}}</p>
<p><a href="{{.Link}}">{{if .Signup}}Confirm email{{else}}Sign in{{end}}</a></p>
<p>The link expires soon and works once. If you did not request it, ignore this email.</p>
</body></html>`))

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<html><body style="font-family: Arial, sans-serif;">
<h2>Welcome, {{.Name}}!</h2>
<p>Your alumni profile for batch {{.Batch}} has been approved. You now have full access to the directory.</p>
<p><a href="{{.URL}}">Open the directory</a></p>
</body></html>`))

func (m *smtpMailer) SendMagicLink(to, link string, signup bool) error {
	if !m.configured() {
		m.logger.Warn().Str("to", to).Str("link", link).Msg("SMTP credentials not configured - magic link not sent")
		return nil
	}

	subject := "Your sign-in link"
	if signup {
		subject = "Confirm your alumni directory signup"
	}

	body, err := render(magicLinkTemplate, map[string]interface{}{"Link": link, "Signup": signup})
	if err != nil {
		return err
	}
	return m.send(to, m.buildMessage(to, subject, body))
}

func (m *smtpMailer) SendWelcome(to, name, batch, directoryURL string) error {
	if !m.configured() {
		m.logger.Warn().Str("to", to).Str("name", name).Msg("SMTP credentials not configured - welcome email not sent")
		return nil
	}

	body, err := render(welcomeTemplate, map[string]string{"Name": name, "Batch": batch, "URL": directoryURL})
	if err != nil {
		return err
	}
	return m.send(to, m.buildMessage(to, "Your alumni profile is approved", body))
}

func (m *smtpMailer) configured() bool {
	return m.config.Username != "" && m.config.Password != ""
}

func render(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func (m *smtpMailer) buildMessage(to, subject, htmlBody string) []byte {
	from := m.config.From
	if from == "" {
		from = m.config.Username
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.config.FromName, from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		htmlBody,
	}, "\r\n")
	return []byte(msg)
}

func (m *smtpMailer) sendSMTP(to string, msg []byte) error {
	addr := net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))

	conn, err := net.DialTimeout("tcp", addr, 8*time.Second)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	c, err := smtp.NewClient(conn, m.config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.config.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	if err := c.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	from := m.config.From
	if from == "" {
		from = m.config.Username
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	m.logger.Info().Str("to", to).Msg("mail sent")
	return nil
}
