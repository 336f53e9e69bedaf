// Package smtp provides an SMTP implementation of shopauth.Mailer.
package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
	// UseTLS enables implicit TLS (e.g. port 465).
	UseTLS bool

	// AppName appears in subjects and message bodies.
	AppName string
}

// Mailer implements shopauth.Mailer using SMTP.
type Mailer struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
	fromName  string
	useTLS    bool
	appName   string
}

// New creates a new SMTP mailer.
func New(cfg Config) *Mailer {
	appName := cfg.AppName
	if appName == "" {
		appName = "Shop"
	}
	return &Mailer{
		host:      cfg.Host,
		port:      cfg.Port,
		username:  cfg.Username,
		password:  cfg.Password,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		useTLS:    cfg.UseTLS,
		appName:   appName,
	}
}

// SendOTP sends a login one-time code.
func (m *Mailer) SendOTP(ctx context.Context, to, otp, name string) error {
	subject := fmt.Sprintf("Your %s login code", m.appName)
	text := fmt.Sprintf("Hi %s,\n\nYour login code is: %s\n\nIt expires in 10 minutes. If you didn't request it, you can ignore this email.", name, otp)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your login code is: <strong>%s</strong></p><p>It expires in 10 minutes. If you didn't request it, you can ignore this email.</p>", name, otp)
	return m.send(ctx, to, subject, text, html)
}

// SendPasswordResetLink sends a link-based password reset email.
func (m *Mailer) SendPasswordResetLink(ctx context.Context, to, link, name string) error {
	subject := fmt.Sprintf("Reset your %s password", m.appName)
	text := fmt.Sprintf("Hi %s,\n\nReset your password: %s\n\nThe link expires in 1 hour.", name, link)
	html := fmt.Sprintf("<p>Hi %s,</p><p><a href=\"%s\">Reset your password</a></p><p>The link expires in 1 hour.</p>", name, link)
	return m.send(ctx, to, subject, text, html)
}

// SendPasswordResetOTP sends a one-time code for a password reset.
func (m *Mailer) SendPasswordResetOTP(ctx context.Context, to, otp, name string) error {
	subject := fmt.Sprintf("Your %s password reset code", m.appName)
	text := fmt.Sprintf("Hi %s,\n\nYour password reset code is: %s\n\nIt expires in 10 minutes. If you didn't request it, you can ignore this email.", name, otp)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your password reset code is: <strong>%s</strong></p><p>It expires in 10 minutes. If you didn't request it, you can ignore this email.</p>", name, otp)
	return m.send(ctx, to, subject, text, html)
}

// SendWelcome sends a post-registration welcome email.
func (m *Mailer) SendWelcome(ctx context.Context, to, name string) error {
	subject := fmt.Sprintf("Welcome to %s", m.appName)
	text := fmt.Sprintf("Hi %s,\n\nYour %s account is ready.", name, m.appName)
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your %s account is ready.</p>", name, m.appName)
	return m.send(ctx, to, subject, text, html)
}

func (m *Mailer) send(ctx context.Context, to, subject, text, html string) error {
	if m.host == "" || m.fromEmail == "" {
		return fmt.Errorf("smtp config incomplete")
	}

	from := m.fromEmail
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.fromEmail)
	}

	boundary := "shopauth-boundary"
	var msg bytes.Buffer
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=" + boundary + "\r\n\r\n")
	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	msg.WriteString(text + "\r\n\r\n")
	msg.WriteString("--" + boundary + "\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.WriteString(html + "\r\n\r\n")
	msg.WriteString("--" + boundary + "--\r\n")

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" || m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if !m.useTLS {
		return smtp.SendMail(addr, auth, m.fromEmail, []string{to}, msg.Bytes())
	}

	tlsConfig := &tls.Config{ServerName: m.host}
	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(m.fromEmail); err != nil {
		return err
	}
	if err := client.Rcpt(strings.TrimSpace(to)); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg.Bytes()); err != nil {
		return err
	}
	return w.Close()
}
