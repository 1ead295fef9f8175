// Package relay delivers the agent's outbound messages to the environment
// orchestrator.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"negotiator.ai/internal/protocol"
)

// Path is the orchestrator route that relays messages to other participants.
const Path = "/relayMessage"

// HTTP posts each message once; failures are returned, never retried.
type HTTP struct {
	url        string
	httpClient *http.Client
}

func NewHTTP(url string, timeout time.Duration) (*HTTP, error) {
	url = strings.TrimSpace(url)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid relay url: %q", url)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{url: url, httpClient: &http.Client{Timeout: timeout}}, nil
}

func (h *HTTP) URL() string { return h.url }

func (h *HTTP) Deliver(ctx context.Context, msg protocol.OutboundMessage) error {
	buf, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("relay failed status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Discard drops every message. It stands in when no orchestrator is configured.
type Discard struct{}

func (Discard) Deliver(context.Context, protocol.OutboundMessage) error { return nil }
