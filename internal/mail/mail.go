package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"path"
	"strings"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

// Message is a single outgoing HTML e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Templates renders the embedded e-mail templates by name (file name
// without extension).
type Templates struct {
	templates map[string]*template.Template
}

// LoadTemplates parses all embedded templates.
func LoadTemplates() (*Templates, error) {
	files, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read email templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(files))
	for _, f := range files {
		name := strings.TrimSuffix(f.Name(), path.Ext(f.Name()))
		tmpl, err := template.ParseFS(templateFS, "templates/"+f.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", f.Name(), err)
		}
		templates[name] = tmpl
	}
	return &Templates{templates: templates}, nil
}

// Render executes the named template with data.
func (t *Templates) Render(name string, data any) (string, error) {
	tmpl, exists := t.templates[name]
	if !exists {
		return "", fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.String(), nil
}

// SendGridSender delivers through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logrus.Logger
}

// NewSendGridSender creates a SendGrid-backed sender.
func NewSendGridSender(apiKey, fromEmail, fromName string, logger *logrus.Logger) *SendGridSender {
	return &SendGridSender{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := sgmail.NewEmail(s.fromName, s.fromEmail)
	recipient := sgmail.NewEmail("", msg.To)
	message := sgmail.NewSingleEmail(from, msg.Subject, recipient, "", msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"to":      msg.To,
			"subject": msg.Subject,
			"error":   err,
		}).Error("Failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 300 {
		s.logger.WithFields(logrus.Fields{
			"to":          msg.To,
			"status_code": response.StatusCode,
			"body":        response.Body,
		}).Error("SendGrid rejected email")
		return fmt.Errorf("sendgrid rejected email: status %d", response.StatusCode)
	}

	s.logger.WithFields(logrus.Fields{
		"to":          msg.To,
		"subject":     msg.Subject,
		"status_code": response.StatusCode,
	}).Info("Email sent successfully")
	return nil
}

// LogSender only logs messages. It is used when no SendGrid key is
// configured and in tests, where Sent exposes what would have been delivered.
type LogSender struct {
	logger *logrus.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogSender(logger *logrus.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("Email not sent: no SendGrid API key configured")
	return nil
}

// Sent returns a copy of the messages passed to Send.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
