package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultVersion = "2021-06-14"
	maxBodyBytes   = 1 << 20
)

type WatsonConfig struct {
	URL         string
	APIKey      string
	AssistantID string
	Version     string
	Timeout     time.Duration

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Watson classifies text through an assistant's v2 message API. It keeps one
// session; a failed call recreates the session and retries once.
type Watson struct {
	cfg        WatsonConfig
	base       string
	httpClient *http.Client

	mu      sync.Mutex
	session string
}

func NewWatson(cfg WatsonConfig) (*Watson, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.AssistantID = strings.TrimSpace(cfg.AssistantID)
	if cfg.URL == "" || cfg.AssistantID == "" {
		return nil, fmt.Errorf("classifier url/assistant id are required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse classifier url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid classifier url: %s", cfg.URL)
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Watson{
		cfg:        cfg,
		base:       strings.TrimRight(u.String(), "/") + "/v2/assistants/" + url.PathEscape(cfg.AssistantID),
		httpClient: hc,
	}, nil
}

type watsonMessageReq struct {
	Input watsonInput `json:"input"`
}

type watsonInput struct {
	MessageType string         `json:"message_type"`
	Text        string         `json:"text"`
	Options     map[string]any `json:"options,omitempty"`
}

type watsonMessageResp struct {
	Output struct {
		Intents  []Intent `json:"intents"`
		Entities []Entity `json:"entities"`
	} `json:"output"`
}

func (w *Watson) Classify(ctx context.Context, in Input) (Classification, error) {
	in.Text = NormalizeText(in.Text)

	sid, err := w.currentSession(ctx)
	if err == nil {
		var out Classification
		out, err = w.message(ctx, sid, in)
		if err == nil {
			return out, nil
		}
	}
	w.logf("classify failed, recreating session: %v", err)

	sid, err = w.newSession(ctx)
	if err != nil {
		return Classification{}, fmt.Errorf("create session: %w", err)
	}
	return w.message(ctx, sid, in)
}

func (w *Watson) currentSession(ctx context.Context) (string, error) {
	w.mu.Lock()
	sid := w.session
	w.mu.Unlock()
	if sid != "" {
		return sid, nil
	}
	return w.newSession(ctx)
}

func (w *Watson) newSession(ctx context.Context) (string, error) {
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := w.post(ctx, w.base+"/sessions", nil, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("empty session id")
	}
	w.mu.Lock()
	w.session = resp.SessionID
	w.mu.Unlock()
	return resp.SessionID, nil
}

func (w *Watson) message(ctx context.Context, sid string, in Input) (Classification, error) {
	req := watsonMessageReq{Input: watsonInput{
		MessageType: "text",
		Text:        in.Text,
		Options:     map[string]any{"alternate_intents": true},
	}}
	var resp watsonMessageResp
	if err := w.post(ctx, w.base+"/sessions/"+url.PathEscape(sid)+"/message", req, &resp); err != nil {
		return Classification{}, err
	}
	return Classification{
		Intents:  resp.Output.Intents,
		Entities: resp.Output.Entities,
		Input:    in,
	}, nil
}

func (w *Watson) post(ctx context.Context, endpoint string, body any, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?version="+url.QueryEscape(w.cfg.Version), rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Watson-Learning-Opt-Out", "true")
	if w.cfg.APIKey != "" {
		req.SetBasicAuth("apikey", w.cfg.APIKey)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("classifier status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode classifier response: %w", err)
	}
	return nil
}

func (w *Watson) logf(format string, args ...any) {
	if w.cfg.Logger != nil {
		w.cfg.Logger.Printf(format, args...)
	}
}
