// Package notify delivers account notifications such as the welcome mail
// sent after registration.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/logging"
)

// Notifier sends a plain-text message to an email address.
type Notifier interface {
	Notify(ctx context.Context, email, subject, body string) error
}

// sendMail is a seam for tests.
var sendMail = submit

// submit is smtp.SendMail bound to ctx: the dial honours ctx, the context
// deadline becomes the connection deadline, and cancellation closes the
// connection so a stalled server cannot hold the caller.
func submit(ctx context.Context, addr, host string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return fmt.Errorf("smtp server %s does not support AUTH", addr)
		}
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// SMTPNotifier submits mail through an authenticated SMTP relay
// (STARTTLS on the submission port).
type SMTPNotifier struct {
	addr     string
	host     string
	user     string
	password string
	from     string
}

// NewSMTPNotifier builds a notifier for server, given as host or host:port.
// Port 587 is assumed when none is given.
func NewSMTPNotifier(server, user, password, from string) *SMTPNotifier {
	host, port, err := net.SplitHostPort(server)
	if err != nil {
		host, port = server, "587"
	}
	return &SMTPNotifier{
		addr:     net.JoinHostPort(host, port),
		host:     host,
		user:     user,
		password: password,
		from:     from,
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, email, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(email, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header injection attempt")
	}

	var auth smtp.Auth
	if n.user != "" {
		auth = smtp.PlainAuth("", n.user, n.password, n.host)
	}

	if err := sendMail(ctx, n.addr, n.host, auth, n.from, []string{email}, buildMessage(n.from, email, subject, body)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", n.addr, err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// LogNotifier only logs the message. Used when no SMTP server is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: l.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, email, subject, body string) error {
	n.logger.Info(ctx, "notification not delivered, smtp disabled", "email", email, "subject", subject)
	return nil
}
