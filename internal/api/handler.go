package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/moodrelay/internal/conversation"
	"github.com/kalambet/moodrelay/internal/metrics"
	"github.com/kalambet/moodrelay/internal/mood"
	"github.com/kalambet/moodrelay/internal/relay"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Relay is the subset of relay.Service the HTTP and MCP layers call.
type Relay interface {
	Chat(ctx context.Context, userID, message string) (relay.ChatResult, error)
	Talk(ctx context.Context, userID, message string) (relay.TalkResult, error)
	Mood(ctx context.Context, userID string) (mood.Result, error)
	History(ctx context.Context, userID string) ([]conversation.Interaction, error)
}

// NewHandler returns the HTTP API. m may be nil, in which case /metrics
// responds 404 and nothing is recorded.
func NewHandler(svc Relay, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(m))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Post("/chat", handleChat(svc))
	r.Post("/talk", handleTalk(svc))
	r.Get("/mood", handleMood(svc))
	r.Get("/history", handleHistory(svc))

	return r
}

type messageRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	AIResponse   string  `json:"ai_response"`
	EmotionScore float64 `json:"emotion_score"`
	Timestamp    string  `json:"timestamp"`
}

type talkResponse struct {
	Message      string  `json:"message"`
	EmotionScore float64 `json:"emotion_score"`
	Timestamp    string  `json:"timestamp"`
}

type moodResponse struct {
	Mood               mood.Label                 `json:"mood"`
	AverageScore       float64                    `json:"average_emotion_score"`
	RecentInteractions []conversation.Interaction `json:"recent_interactions"`
}

type historyResponse struct {
	UserID       string                     `json:"user_id"`
	Interactions []conversation.Interaction `json:"interactions"`
}

func newChatResponse(res relay.ChatResult) chatResponse {
	return chatResponse{
		AIResponse:   res.AIResponse,
		EmotionScore: res.EmotionScore,
		Timestamp:    res.Timestamp.Format(conversation.TimestampLayout),
	}
}

func newTalkResponse(res relay.TalkResult) talkResponse {
	return talkResponse{
		Message:      res.Message,
		EmotionScore: res.EmotionScore,
		Timestamp:    res.Timestamp.Format(conversation.TimestampLayout),
	}
}

func newMoodResponse(res mood.Result) moodResponse {
	return moodResponse{
		Mood:               res.Mood,
		AverageScore:       res.Average,
		RecentInteractions: res.Recent,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleChat(svc Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMessageRequest(w, r)
		if !ok {
			return
		}
		res, err := svc.Chat(r.Context(), req.UserID, req.Message)
		if err != nil {
			relayError(w, err)
			return
		}
		writeJSON(w, newChatResponse(res))
	}
}

func handleTalk(svc Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeMessageRequest(w, r)
		if !ok {
			return
		}
		res, err := svc.Talk(r.Context(), req.UserID, req.Message)
		if err != nil {
			relayError(w, err)
			return
		}
		writeJSON(w, newTalkResponse(res))
	}
}

func handleMood(svc Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Mood(r.Context(), r.URL.Query().Get("user_id"))
		if err != nil {
			relayError(w, err)
			return
		}
		writeJSON(w, newMoodResponse(res))
	}
}

func handleHistory(svc Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user_id")
		history, err := svc.History(r.Context(), userID)
		if err != nil {
			relayError(w, err)
			return
		}
		writeJSON(w, historyResponse{UserID: userID, Interactions: history})
	}
}

func decodeMessageRequest(w http.ResponseWriter, r *http.Request) (messageRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, string(relay.KindValidation), "invalid request body: %v", err)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// relayError writes err with the status matching its relay.Kind. Internal
// causes are logged by the relay and never sent to the client.
func relayError(w http.ResponseWriter, err error) {
	kind := relay.KindOf(err)
	httpError(w, statusFor(kind), string(kind), "%s", clientMessage(err))
}

// clientMessage is the error text shown to API and MCP callers. Internal
// causes stay in the server log.
func clientMessage(err error) string {
	var re *relay.Error
	if !errors.As(err, &re) || re.Kind == relay.KindInternal {
		return "Unexpected error"
	}
	if re.Kind == relay.KindUpstream && re.Err != nil {
		return fmt.Sprintf("%s: %v", re.Message, re.Err)
	}
	return re.Message
}

func statusFor(kind relay.Kind) int {
	switch kind {
	case relay.KindValidation:
		return http.StatusBadRequest
	case relay.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
