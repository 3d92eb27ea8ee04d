// Package mail sends account and invitation emails.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"sync"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var layout = template.Must(template.New("mail").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
<h2>{{.Title}}</h2>
<p>{{.Intro}}</p>
<p><a href="{{.Link}}" style="display: inline-block; padding: 10px 20px; background: #1976d2; color: #fff; text-decoration: none; border-radius: 4px;">{{.Action}}</a></p>
<p style="color: #666; font-size: 12px;">{{.Footer}}</p>
</body>
</html>`))

type content struct {
	Title  string
	Intro  string
	Action string
	Link   string
	Footer string
}

func render(to string, c content) (Message, error) {
	var buf bytes.Buffer
	if err := layout.Execute(&buf, c); err != nil {
		return Message{}, fmt.Errorf("rendering %q email: %w", c.Title, err)
	}
	return Message{To: to, Subject: c.Title, HTML: buf.String()}, nil
}

func link(baseURL, path, key, value string) string {
	return baseURL + path + "?" + url.Values{key: {value}}.Encode()
}

// Verification is the message confirming a new account's address.
func Verification(baseURL, to, token string) (Message, error) {
	return render(to, content{
		Title:  "Confirm your email address",
		Intro:  "Your account has been created. Confirm your address to finish signing up.",
		Action: "Confirm email",
		Link:   link(baseURL, "/verify-email", "token", token),
		Footer: "If you did not create an account you can ignore this message.",
	})
}

// PasswordReset carries a single-use reset link.
func PasswordReset(baseURL, to, token string) (Message, error) {
	return render(to, content{
		Title:  "Reset your password",
		Intro:  "Somebody asked to reset the password for this address.",
		Action: "Choose a new password",
		Link:   link(baseURL, "/reset-password", "token", token),
		Footer: "The link expires in one hour. If you did not ask for it, ignore this message.",
	})
}

// Invitation asks the recipient to register with the given role.
func Invitation(baseURL, to, invitationID, role string) (Message, error) {
	return render(to, content{
		Title:  "You have been invited",
		Intro:  fmt.Sprintf("You have been invited to join as %s.", role),
		Action: "Accept invitation",
		Link:   link(baseURL, "/register", "invitation", invitationID),
		Footer: "The invitation expires in seven days.",
	})
}

// outboxSize bounds the messages Log keeps.
const outboxSize = 50

// Log writes messages to the log instead of sending them. It keeps the most
// recent ones for inspection.
type Log struct {
	mu   sync.Mutex
	sent []Message
}

func (l *Log) Send(_ context.Context, msg Message) error {
	slog.Info("email", "to", msg.To, "subject", msg.Subject)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, msg)
	if len(l.sent) > outboxSize {
		l.sent = l.sent[len(l.sent)-outboxSize:]
	}
	return nil
}

// Messages returns the retained messages, oldest first.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.sent...)
}

// Last returns the most recent message sent to addr.
func (l *Log) Last(addr string) (Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.sent) - 1; i >= 0; i-- {
		if l.sent[i].To == addr {
			return l.sent[i], true
		}
	}
	return Message{}, false
}
