package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

type fakeAssistant struct {
	sessions   atomic.Int32
	messages   atomic.Int32
	failFirst  bool
	lastText   atomic.Value
	authFailed atomic.Bool
}

func (f *fakeAssistant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if user, pass, ok := r.BasicAuth(); !ok || user != "apikey" || pass != "secret" {
		f.authFailed.Store(true)
	}
	if r.URL.Query().Get("version") != DefaultVersion {
		http.Error(w, "missing version", http.StatusBadRequest)
		return
	}
	switch {
	case r.URL.Path == "/v2/assistants/a1/sessions":
		n := f.sessions.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": fmt.Sprintf("s%d", n)})
	case strings.HasPrefix(r.URL.Path, "/v2/assistants/a1/sessions/") && strings.HasSuffix(r.URL.Path, "/message"):
		n := f.messages.Add(1)
		if f.failFirst && n == 1 {
			http.Error(w, `{"error":"Invalid Session"}`, http.StatusNotFound)
			return
		}
		var req watsonMessageReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastText.Store(req.Input.Text)
		_, _ = w.Write([]byte(`{"output":{
			"intents":[{"intent":"Offer","confidence":0.93},{"intent":"Information","confidence":0.04}],
			"entities":[
				{"entity":"sys-number","value":"10","metadata":{"numeric_value":10}},
				{"entity":"good","value":"widget"},
				{"entity":"sys-currency","value":"30","metadata":{"numeric_value":30,"unit":"USD"}}
			]}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestWatson_ClassifyTranslatesOutput(t *testing.T) {
	fa := &fakeAssistant{}
	srv := httptest.NewServer(fa)
	defer srv.Close()

	w, err := NewWatson(WatsonConfig{URL: srv.URL, APIKey: "secret", AssistantID: "a1"})
	if err != nil {
		t.Fatalf("NewWatson: %v", err)
	}
	in := Input{Text: " I'll give you\t$30 for\n10 widgets ", Speaker: "Jeff", Role: "buyer"}
	c, err := w.Classify(context.Background(), in)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if fa.authFailed.Load() {
		t.Fatalf("basic auth not sent")
	}
	if got := fa.lastText.Load(); got != "I'll give you $30 for 10 widgets" {
		t.Fatalf("text=%q", got)
	}
	top, ok := c.TopIntent()
	if !ok || top.Intent != "Offer" {
		t.Fatalf("top=%+v", top)
	}
	if len(c.Entities) != 3 || c.Entities[2].Unit() != "USD" {
		t.Fatalf("entities=%+v", c.Entities)
	}
	if c.Input.Speaker != "Jeff" || c.Input.Role != "buyer" {
		t.Fatalf("input=%+v", c.Input)
	}

	// The session is reused.
	if _, err := w.Classify(context.Background(), in); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if n := fa.sessions.Load(); n != 1 {
		t.Fatalf("sessions=%d want 1", n)
	}
}

func TestWatson_RetriesOnceWithNewSession(t *testing.T) {
	fa := &fakeAssistant{failFirst: true}
	srv := httptest.NewServer(fa)
	defer srv.Close()

	w, err := NewWatson(WatsonConfig{URL: srv.URL, APIKey: "secret", AssistantID: "a1"})
	if err != nil {
		t.Fatalf("NewWatson: %v", err)
	}
	if _, err := w.Classify(context.Background(), Input{Text: "hello"}); err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if fa.sessions.Load() != 2 || fa.messages.Load() != 2 {
		t.Fatalf("sessions=%d messages=%d want 2/2", fa.sessions.Load(), fa.messages.Load())
	}
}

func TestWatson_FailsAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w, err := NewWatson(WatsonConfig{URL: srv.URL, AssistantID: "a1"})
	if err != nil {
		t.Fatalf("NewWatson: %v", err)
	}
	if _, err := w.Classify(context.Background(), Input{Text: "hello"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNewWatson_RequiresURLAndAssistant(t *testing.T) {
	if _, err := NewWatson(WatsonConfig{AssistantID: "a1"}); err == nil {
		t.Fatalf("expected error without url")
	}
	if _, err := NewWatson(WatsonConfig{URL: "http://localhost"}); err == nil {
		t.Fatalf("expected error without assistant id")
	}
	if _, err := NewWatson(WatsonConfig{URL: "localhost", AssistantID: "a1"}); err == nil {
		t.Fatalf("expected error for url without scheme")
	}
}

func TestEntity_Numeric(t *testing.T) {
	cases := []struct {
		e    Entity
		want float64
		ok   bool
	}{
		{Entity{Value: "12"}, 12, true},
		{Entity{Value: "twelve"}, 0, false},
		{Entity{Value: "12", Metadata: &EntityMetadata{NumericValue: 12.5}}, 12.5, true},
		{Entity{Value: "x", Interpretation: &EntityMetadata{NumericValue: 3, Unit: "EUR"}}, 3, true},
	}
	for _, c := range cases {
		got, ok := c.e.Numeric()
		if got != c.want || ok != c.ok {
			t.Fatalf("Numeric(%+v)=%v,%v want %v,%v", c.e, got, ok, c.want, c.ok)
		}
	}
	if NormalizeText("a\t\tb\r\n c ") != "a b c" {
		t.Fatalf("NormalizeText")
	}
}
