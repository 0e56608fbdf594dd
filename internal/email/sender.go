package email

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

type Attachment struct {
	FileName string
	MimeType string
	Content  []byte
}

// Message is one outbound email. HTML is the already rendered body.
type Message struct {
	To          string
	CC          []string
	BCC         []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

type Sender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	dialer *gomail.Dialer
}

func NewSender(host string, port int, user, password, from string) *Sender {
	return &Sender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
		dialer:   gomail.NewDialer(host, port, user, password),
	}
}

// Send delivers msg over SMTP and returns the generated Message-ID. It does
// not retry; redelivery belongs to the job queue.
func (s *Sender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m, messageID := s.build(msg)

	d := s.dialer
	if d == nil {
		d = gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	}

	if err := d.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send error: %w", err)
	}

	return messageID, nil
}

func (s *Sender) build(msg Message) (*gomail.Message, string) {
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), senderDomain(s.From))

	m := gomail.NewMessage()
	m.SetHeader("Message-ID", messageID)
	m.SetHeader("From", s.From)
	m.SetHeader("To", msg.To)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", msg.CC...)
	}
	if len(msg.BCC) > 0 {
		m.SetHeader("Bcc", msg.BCC...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	for _, a := range msg.Attachments {
		content := a.Content
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(content)
				return err
			}),
		}
		if a.MimeType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{
				"Content-Type": {a.MimeType},
			}))
		}
		m.Attach(a.FileName, settings...)
	}

	return m, messageID
}

func senderDomain(from string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.TrimSuffix(from[i+1:], ">")
	}
	return "localhost"
}
