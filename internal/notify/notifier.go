package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tradelane/contract-ledger/internal/core"
)

// Notifier delivers one notification. Best effort: the caller records the
// outcome, it never retries inline.
type Notifier interface {
	Notify(ctx context.Context, n core.Notification) error
}

// LogNotifier writes deliveries to the log. Default when no webhook is
// configured.
type LogNotifier struct {
	Log *slog.Logger
}

func (l *LogNotifier) Notify(_ context.Context, n core.Notification) error {
	l.Log.Info("notify",
		"to", n.Recipient, "kind", n.Kind,
		"contract", n.ContractAddress, "action", n.Action, "tx", n.TxHash)
	return nil
}

// WebhookNotifier posts the notification as JSON, HMAC-SHA256 signed over
// the raw body.
type WebhookNotifier struct {
	URL    string
	Secret string
	HTTP   *http.Client
}

func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    strings.TrimRight(strings.TrimSpace(url), "/"),
		Secret: secret,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, n core.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Secret != "" {
		req.Header.Set("X-Ledger-Signature", signBody(w.Secret, body))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
