package email

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("component", "email")

// Sender delivers a rendered HTML message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// DefaultTimeout bounds one SMTP session, dial included.
const DefaultTimeout = 10 * time.Second

// Service handles email sending via SMTP
type Service struct {
	host    string
	port    string
	from    string
	timeout time.Duration
}

func NewService(host, port, from string) *Service {
	return &Service{
		host:    host,
		port:    port,
		from:    from,
		timeout: DefaultTimeout,
	}
}

// WithTimeout replaces the session timeout; non-positive values are ignored.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *Service) Send(to, subject, htmlBody string) error {
	if to == "" {
		return errors.New("email: empty recipient")
	}
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, htmlBody)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	if err := s.deliver(addr, to, []byte(msg)); err != nil {
		return errors.Wrapf(err, "send mail to %s via %s", to, addr)
	}
	logger.WithFields(log.Fields{"to": to, "subject": subject}).Debug("mail sent")
	return nil
}

// deliver runs one SMTP session under a single deadline. smtp.SendMail has
// none, so a server that never greets would hold the caller forever.
func (s *Service) deliver(addr, to string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return err
		}
	}
	if err := c.Mail(s.from); err != nil {
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
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Deliver renders a template and sends it.
func Deliver(s Sender, to, key string, data any) error {
	subject, body, err := Render(key, data)
	if err != nil {
		return err
	}
	return s.Send(to, subject, body)
}
