package directory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-maildir"

	"groupseal/internal/domain"
)

// Mailer delivers a message to a user.
type Mailer interface {
	Deliver(ctx context.Context, user domain.UserID, subject, body string) error
}

// MaildirMailer delivers into one Maildir per user below Base.
type MaildirMailer struct {
	Base string
}

// NewMaildirMailer returns a MaildirMailer rooted at base.
func NewMaildirMailer(base string) *MaildirMailer { return &MaildirMailer{Base: base} }

// Deliver writes a plain text message into the user's Maildir, creating it
// if needed.
func (m *MaildirMailer) Deliver(_ context.Context, user domain.UserID, subject, body string) error {
	dir, err := m.ensure(user)
	if err != nil {
		return err
	}
	delivery, err := maildir.NewDelivery(string(dir))
	if err != nil {
		return err
	}
	msg := formatMessage(user, subject, body, time.Now())
	if _, err := io.Copy(delivery, bytes.NewReader(msg)); err != nil {
		_ = delivery.Abort()
		return err
	}
	return delivery.Close()
}

func (m *MaildirMailer) ensure(user domain.UserID) (maildir.Dir, error) {
	name := string(user)
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("maildir: invalid user id %q", name)
	}
	path := filepath.Join(m.Base, name)
	dir := maildir.Dir(path)
	if _, err := os.Stat(filepath.Join(path, "cur")); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return "", err
		}
		if err := dir.Init(); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func formatMessage(user domain.UserID, subject, body string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: groupseal directory <noreply@groupseal.invalid>\r\n")
	fmt.Fprintf(&b, "To: %s\r\n", user)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return b.Bytes()
}
