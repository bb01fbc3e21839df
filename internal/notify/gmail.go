// Package notify delivers budget alert emails through the Gmail API.
package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailSender sends email as the authenticated Gmail user.
type GmailSender struct {
	svc *gmail.Service
}

// NewOAuthClient builds an authorized HTTP client from OAuth client
// credentials and a previously stored token (see cmd/oauth-init).
func NewOAuthClient(ctx context.Context, clientJSON, tokenJSON []byte) (*http.Client, error) {
	cfg, err := google.ConfigFromJSON(clientJSON, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}
	return cfg.Client(ctx, &tok), nil
}

func NewGmailSender(ctx context.Context, client *http.Client) (*GmailSender, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailSender{svc: svc}, nil
}

// Send delivers one plain-text email. Rate-limit and server-side Gmail
// errors are retried a few times; anything else fails immediately and is
// reported to the caller.
func (s *GmailSender) Send(ctx context.Context, to, subject, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(body)

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(b.String())),
	}

	err := retry.Do(
		func() error {
			_, err := s.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
			return err
		},
		retry.RetryIf(func(err error) bool {
			var gerr *googleapi.Error
			if errors.As(err, &gerr) {
				return gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
			}
			return false
		}),
		retry.Attempts(3),
		retry.Delay(2*time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
