package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/moodrelay/internal/conversation"
	"github.com/kalambet/moodrelay/internal/metrics"
	"github.com/kalambet/moodrelay/internal/proxy"
	"github.com/kalambet/moodrelay/internal/relay"
	"github.com/kalambet/moodrelay/internal/storage"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(_ context.Context, _ []proxy.Message) (string, error) {
	return s.reply, s.err
}

func newTestRelay(t *testing.T, llm relay.Completer) (*relay.Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	if llm == nil {
		llm = &stubCompleter{reply: "Hello! Nice to meet you."}
	}
	return relay.NewService(store, llm, relay.Options{}), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	h.ServeHTTP(rr, req)
	return rr
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body
}

func TestHealth(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body map[string]string
	json.NewDecoder(rr.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v, want status=ok", body)
	}
}

func TestTalk(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	rr := do(t, h, http.MethodPost, "/talk", `{"message":"I am wonderful and happy today","user_id":"u1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Message      string  `json:"message"`
		EmotionScore float64 `json:"emotion_score"`
		Timestamp    string  `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Message != relay.TalkConfirmation {
		t.Errorf("message = %q", body.Message)
	}
	if body.EmotionScore < -1 || body.EmotionScore > 1 {
		t.Errorf("emotion_score = %v out of range", body.EmotionScore)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", body.Timestamp, err)
	}
}

func TestMissingFields(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	for _, path := range []string{"/chat", "/talk"} {
		for _, body := range []string{
			`{"message":"hello"}`,
			`{"user_id":"u1"}`,
			`{"user_id":"","message":""}`,
			`{}`,
		} {
			rr := do(t, h, http.MethodPost, path, body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("POST %s %s: status = %d, want 400", path, body, rr.Code)
				continue
			}
			if got := decodeError(t, rr).Error.Type; got != string(relay.KindValidation) {
				t.Errorf("POST %s %s: type = %q", path, body, got)
			}
		}
	}
}

func TestMalformedJSON(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	for _, path := range []string{"/chat", "/talk"} {
		rr := do(t, h, http.MethodPost, path, `{"message":`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("POST %s: status = %d, want 400", path, rr.Code)
		}
		if !strings.Contains(decodeError(t, rr).Error.Message, "invalid request body") {
			t.Errorf("POST %s: unexpected error message", path)
		}
	}
}

func TestMood_UnknownUser(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	for _, target := range []string{"/mood?user_id=nobody", "/mood"} {
		rr := do(t, h, http.MethodGet, target, "")
		if rr.Code != http.StatusNotFound {
			t.Fatalf("GET %s: status = %d, want 404", target, rr.Code)
		}
		body := decodeError(t, rr)
		if body.Error.Message != "User ID not found" || body.Error.Type != string(relay.KindNotFound) {
			t.Errorf("GET %s: error = %+v", target, body.Error)
		}
	}
}

func TestMood_AfterPositiveTalk(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	if rr := do(t, h, http.MethodPost, "/talk", `{"message":"I am wonderful and happy today","user_id":"u1"}`); rr.Code != http.StatusOK {
		t.Fatalf("talk status = %d", rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/mood?user_id=u1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Mood    string                   `json:"mood"`
		Average float64                  `json:"average_emotion_score"`
		Recent  []map[string]interface{} `json:"recent_interactions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Mood != "Happy" || body.Average <= 0.2 {
		t.Errorf("mood = %s avg = %v, want Happy above 0.2", body.Mood, body.Average)
	}
	if len(body.Recent) != 1 {
		t.Fatalf("recent = %d entries, want 1", len(body.Recent))
	}
	for _, key := range []string{"timestamp", "user_message", "emotion_score"} {
		if _, ok := body.Recent[0][key]; !ok {
			t.Errorf("recent interaction missing %q: %v", key, body.Recent[0])
		}
	}
}

func TestMood_NoRecentInteractions(t *testing.T) {
	svc, store := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	old := conversation.LoggedMessage("x", time.Now().Add(-11*time.Minute), "awful", -1)
	if err := store.Append(context.Background(), "u1", old); err != nil {
		t.Fatalf("Append: %v", err)
	}

	rr := do(t, h, http.MethodGet, "/mood?user_id=u1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if got := decodeError(t, rr).Error.Message; got != "No recent interactions found" {
		t.Errorf("message = %q", got)
	}
}

func TestChat(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"Hello, I feel great","user_id":"u1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var body struct {
		AIResponse   string  `json:"ai_response"`
		EmotionScore float64 `json:"emotion_score"`
		Timestamp    string  `json:"timestamp"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AIResponse != "Hello! Nice to meet you." {
		t.Errorf("ai_response = %q", body.AIResponse)
	}
	if body.EmotionScore <= 0 {
		t.Errorf("emotion_score = %v, want positive", body.EmotionScore)
	}

	rr = do(t, h, http.MethodGet, "/history?user_id=u1", "")
	var hist struct {
		UserID       string                     `json:"user_id"`
		Interactions []conversation.Interaction `json:"interactions"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if hist.UserID != "u1" || len(hist.Interactions) != 2 {
		t.Errorf("history = %+v, want two chat turns", hist)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	svc, _ := newTestRelay(t, &stubCompleter{err: errors.New("upstream status 401: invalid key")})
	h := NewHandler(svc, nil)

	do(t, h, http.MethodPost, "/talk", `{"message":"hello","user_id":"u1"}`)

	rr := do(t, h, http.MethodPost, "/chat", `{"message":"hi","user_id":"u1"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	body := decodeError(t, rr)
	if body.Error.Type != string(relay.KindUpstream) || !strings.Contains(body.Error.Message, "401") {
		t.Errorf("error = %+v", body.Error)
	}

	rr = do(t, h, http.MethodGet, "/history?user_id=u1", "")
	var hist struct {
		Interactions []json.RawMessage `json:"interactions"`
	}
	json.NewDecoder(rr.Body).Decode(&hist)
	if len(hist.Interactions) != 1 {
		t.Errorf("history has %d records after failed chat, want 1", len(hist.Interactions))
	}
}

func TestHistory_UnknownUser(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	rr := do(t, h, http.MethodGet, "/history?user_id=ghost", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRequestBodyLimit(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	h := NewHandler(svc, nil)

	big := `{"user_id":"u1","message":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	rr := do(t, h, http.MethodPost, "/talk", big)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestInternalErrorHidesCause(t *testing.T) {
	rr := httptest.NewRecorder()
	relayError(rr, errors.New("disk on fire"))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeError(t, rr)
	if body.Error.Type != string(relay.KindInternal) || strings.Contains(body.Error.Message, "disk") {
		t.Errorf("error = %+v", body.Error)
	}
}

func TestMetricsRoute(t *testing.T) {
	svc, _ := newTestRelay(t, nil)
	m := metrics.New()
	h := NewHandler(svc, m)

	do(t, h, http.MethodGet, "/mood?user_id=nobody", "")

	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `moodrelay_http_requests_total{code="404",route="/mood"} 1`) {
		t.Errorf("metrics output missing /mood 404 counter")
	}
}
