// Package email provides email sending capabilities via SMTP.
package email

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendVerificationEmail sends the sign-up verification mail.
func (s *Service) SendVerificationEmail(to, username, token string) error {
	subject := "Verify your Quill account"
	body := fmt.Sprintf(
		"Hi %s,\n\nUse the token below to verify your email address:\n\n%s\n\nThe token expires in 24 hours.\n",
		username, token,
	)
	return s.SendEmail([]string{to}, subject, body)
}

// SendMentionEmail tells a user they were mentioned in a document.
func (s *Service) SendMentionEmail(to, username, documentTitle string) error {
	subject := fmt.Sprintf("You were mentioned in '%s'", documentTitle)
	body := fmt.Sprintf(
		"Hi %s,\n\nYou were mentioned in document '%s' and now have read access to it.\n",
		username, documentTitle,
	)
	return s.SendEmail([]string{to}, subject, body)
}
