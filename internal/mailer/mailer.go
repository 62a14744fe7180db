// Package mailer sends transactional e-mail over SMTP
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/nsvirk/profileapi/internal/models"
	"github.com/nsvirk/profileapi/pkg/utils/zaplogger"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	welcomeTemplate       = "welcome.html"
	resetPasswordTemplate = "reset_password.html"
)

// Mailer sends the account e-mails
type Mailer interface {
	SendWelcome(ctx context.Context, user *models.UserModel, code string) error
	SendResetPassword(ctx context.Context, user *models.UserModel, code string) error
}

// Config holds the SMTP settings
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends e-mail through an SMTP relay with PLAIN auth
type SMTPMailer struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// New creates an SMTPMailer
func New(cfg Config) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

type templateData struct {
	Name    string
	Welcome string
	Code    string
}

// SendWelcome sends the registration e-mail with the confirmation code
func (m *SMTPMailer) SendWelcome(ctx context.Context, user *models.UserModel, code string) error {
	welcome := "bem vinda"
	if user.Gender == "M" {
		welcome = "bem vindo"
	}
	subject := "ConectPets 🐾 - Seja " + welcome + "!"
	return m.sendTemplate(ctx, user.Email, subject, welcomeTemplate, templateData{Name: user.Firstname, Welcome: welcome, Code: code})
}

// SendResetPassword sends the password reset code
func (m *SMTPMailer) SendResetPassword(ctx context.Context, user *models.UserModel, code string) error {
	return m.sendTemplate(ctx, user.Email, "ConectPets 🐾 - Redefinir Senha", resetPasswordTemplate, templateData{Name: user.Firstname, Code: code})
}

func (m *SMTPMailer) sendTemplate(ctx context.Context, to, subject, name string, data templateData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	msg := buildMessage(m.cfg.From, to, subject, body.Bytes(), time.Now())
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.Username, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send e-mail: %w", err)
	}
	zaplogger.Info("e-mail sent", zaplogger.Fields{"template": name, "to": to})
	return nil
}

func buildMessage(from, to, subject string, html []byte, date time.Time) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.Write(html)
	return []byte(sb.String())
}
