// Package mailer delivers rendered email to admins. The auth core treats
// delivery as a black box behind the Dispatcher interface; the SMTP
// implementation is the only real one, tests substitute a recorder.
package mailer

import (
	"context"

	"gopkg.in/gomail.v2"
)

// Message is a rendered email ready for dispatch.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// Dispatcher sends a message to a recipient. Dispatch failure is surfaced to
// the caller and never retried here.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP is a gomail-backed Dispatcher.
type SMTP struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTP creates an SMTP dispatcher.
func NewSMTP(host string, port int, username, password string) *SMTP {
	return &SMTP{
		host:     host,
		port:     port,
		username: username,
		password: password,
	}
}

// Send delivers a single HTML message.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	return d.DialAndSend(m)
}
