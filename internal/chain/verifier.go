package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tradelane/contract-ledger/internal/core"
)

// Disabled stamps every transaction unverified. Used when no checker
// endpoint is configured.
type Disabled struct{}

func (Disabled) Verify(_ context.Context, _ string) (core.ChainConfirmation, error) {
	return core.ChainConfirmation{
		Verified:  false,
		Detail:    "verification disabled",
		CheckedAt: time.Now().UTC(),
	}, nil
}

// HTTPVerifier asks an external transaction checker whether a tx hash is
// confirmed. The ledger treats the answer as a fact to record, not a gate.
type HTTPVerifier struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPVerifier(baseURL string) *HTTPVerifier {
	return &HTTPVerifier{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, txHash string) (core.ChainConfirmation, error) {
	u := v.BaseURL + "/tx/" + url.PathEscape(txHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.ChainConfirmation{}, err
	}
	resp, err := v.HTTP.Do(req)
	if err != nil {
		return core.ChainConfirmation{}, err
	}
	defer resp.Body.Close()

	now := time.Now().UTC()
	switch {
	case resp.StatusCode == http.StatusOK:
		return core.ChainConfirmation{Verified: true, CheckedAt: now}, nil
	case resp.StatusCode == http.StatusNotFound:
		return core.ChainConfirmation{Verified: false, Detail: "tx not found", CheckedAt: now}, nil
	default:
		return core.ChainConfirmation{}, fmt.Errorf("checker returned %d", resp.StatusCode)
	}
}
