package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// SMTPProvider sends email over SMTP with STARTTLS when the server offers it.
type SMTPProvider struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPProvider(host string, port int, username, password, from string) *SMTPProvider {
	return &SMTPProvider{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (p *SMTPProvider) Name() string { return "smtp" }

func (p *SMTPProvider) IsConfigured() bool {
	return p.host != "" && p.username != "" && p.password != ""
}

func (p *SMTPProvider) Send(ctx context.Context, to, subject, html string) error {
	addr := net.JoinHostPort(p.host, strconv.Itoa(p.port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("error dialing smtp server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, p.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("error creating smtp client: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: p.host}); err != nil {
			return fmt.Errorf("error starting tls: %w", err)
		}
	}
	if err := c.Auth(smtp.PlainAuth("", p.username, p.password, p.host)); err != nil {
		return fmt.Errorf("error authenticating: %w", err)
	}
	if err := c.Mail(p.from); err != nil {
		return fmt.Errorf("error setting sender: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("error setting recipient: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("error opening data: %w", err)
	}
	if _, err := w.Write(buildMessage(p.from, to, subject, html, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("error writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("error closing data: %w", err)
	}
	return c.Quit()
}

func buildMessage(from, to, subject, html string, now time.Time) []byte {
	var b strings.Builder
	b.WriteString("From: " + sanitizeHeader(from) + "\r\n")
	b.WriteString("To: " + sanitizeHeader(to) + "\r\n")
	// RFC 2047 encoded word when the subject is not plain ASCII
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", sanitizeHeader(subject)) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}

// sanitizeHeader keeps user text from injecting extra headers.
func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
