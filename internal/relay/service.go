// Package relay implements the chat, passive logging and mood operations on
// top of a conversation store, a completion client and a sentiment scorer.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moby/locker"

	"github.com/kalambet/moodrelay/internal/conversation"
	"github.com/kalambet/moodrelay/internal/metrics"
	"github.com/kalambet/moodrelay/internal/mood"
	"github.com/kalambet/moodrelay/internal/proxy"
	"github.com/kalambet/moodrelay/internal/sentiment"
)

const (
	DefaultSystemPrompt = "You are a helpful and engaging AI chatbot."
	DefaultTimeout      = 30 * time.Second

	// TalkConfirmation is the message returned by Talk.
	TalkConfirmation = "Message recorded successfully"
)

// Completer produces an assistant reply for an ordered list of messages.
type Completer interface {
	Complete(ctx context.Context, messages []proxy.Message) (string, error)
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	SystemPrompt string
	Timeout      time.Duration
	Window       time.Duration

	Scorer  sentiment.Scorer
	Metrics *metrics.Metrics

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

type ChatResult struct {
	AIResponse   string
	EmotionScore float64
	Timestamp    time.Time
}

type TalkResult struct {
	Message      string
	EmotionScore float64
	Timestamp    time.Time
}

// Service is safe for concurrent use. Chat calls for the same user id are
// serialized so no turn is lost; reads and Talk never wait on the LLM.
type Service struct {
	store   conversation.Store
	llm     Completer
	scorer  sentiment.Scorer
	mood    *mood.Aggregator
	metrics *metrics.Metrics
	locks   *locker.Locker

	systemPrompt string
	timeout      time.Duration
	now          func() time.Time
	newID        func() string
}

func NewService(store conversation.Store, llm Completer, opts Options) *Service {
	s := &Service{
		store:        store,
		llm:          llm,
		scorer:       opts.Scorer,
		mood:         mood.NewAggregator(opts.Window),
		metrics:      opts.Metrics,
		locks:        locker.New(),
		systemPrompt: opts.SystemPrompt,
		timeout:      opts.Timeout,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if s.scorer == nil {
		s.scorer = sentiment.New()
	}
	if s.systemPrompt == "" {
		s.systemPrompt = DefaultSystemPrompt
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Chat sends the user's chat turns plus message upstream and records both
// sides of the exchange once a reply arrives. The stored history is left
// untouched when the call fails.
func (s *Service) Chat(ctx context.Context, userID, message string) (ChatResult, error) {
	if err := validate(userID, message); err != nil {
		return ChatResult{}, err
	}

	s.locks.Lock(userID)
	defer s.locks.Unlock(userID)

	history, _, err := s.store.History(ctx, userID)
	if err != nil {
		slog.Error("loading history failed", "user_id", userID, "error", err)
		return ChatResult{}, internalError(err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.llm.Complete(callCtx, s.prompt(history, message))
	s.metrics.ObserveUpstream(time.Since(start), err)
	if err != nil {
		slog.Warn("chat completion failed", "user_id", userID, "error", err)
		return ChatResult{}, upstreamError(err)
	}

	turns := []conversation.Interaction{
		conversation.ChatTurn(conversation.RoleUser, message),
		conversation.ChatTurn(conversation.RoleAssistant, reply),
	}
	if err := s.store.Append(ctx, userID, turns...); err != nil {
		slog.Error("recording chat turns failed", "user_id", userID, "error", err)
		return ChatResult{}, internalError(err)
	}
	s.metrics.RecordAppended(string(conversation.KindChatTurn), len(turns))

	return ChatResult{
		AIResponse:   reply,
		EmotionScore: s.scorer.Score(message),
		Timestamp:    s.now(),
	}, nil
}

// prompt builds the upstream message list: the system preamble, every prior
// chat turn and the new user message. Logged messages are not sent.
func (s *Service) prompt(history []conversation.Interaction, message string) []proxy.Message {
	msgs := make([]proxy.Message, 0, len(history)+2)
	msgs = append(msgs, proxy.Message{Role: conversation.RoleSystem, Content: s.systemPrompt})
	for _, i := range history {
		if i.Kind != conversation.KindChatTurn {
			continue
		}
		msgs = append(msgs, proxy.Message{Role: i.Role, Content: i.Content})
	}
	return append(msgs, proxy.Message{Role: conversation.RoleUser, Content: message})
}

// Talk scores and records message without contacting the LLM.
func (s *Service) Talk(ctx context.Context, userID, message string) (TalkResult, error) {
	if err := validate(userID, message); err != nil {
		return TalkResult{}, err
	}

	score := s.scorer.Score(message)
	ts := s.now()
	rec := conversation.LoggedMessage(s.newID(), ts, message, score)
	if err := s.store.Append(ctx, userID, rec); err != nil {
		slog.Error("recording message failed", "user_id", userID, "error", err)
		return TalkResult{}, internalError(err)
	}
	s.metrics.RecordAppended(string(conversation.KindLoggedMessage), 1)

	return TalkResult{Message: TalkConfirmation, EmotionScore: score, Timestamp: ts}, nil
}

// Mood classifies the user's logged messages inside the aggregation window.
func (s *Service) Mood(ctx context.Context, userID string) (mood.Result, error) {
	history, err := s.history(ctx, userID)
	if err != nil {
		return mood.Result{}, err
	}

	res, err := s.mood.Aggregate(history, s.now())
	if errors.Is(err, mood.ErrNoRecentInteractions) {
		return mood.Result{}, notFoundError(msgNoRecent)
	}
	if err != nil {
		return mood.Result{}, internalError(err)
	}
	s.metrics.ObserveMood(string(res.Mood))
	return res, nil
}

// History returns every stored interaction for userID in insertion order.
func (s *Service) History(ctx context.Context, userID string) ([]conversation.Interaction, error) {
	return s.history(ctx, userID)
}

func (s *Service) history(ctx context.Context, userID string) ([]conversation.Interaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, notFoundError(msgUnknownUser)
	}

	history, ok, err := s.store.History(ctx, userID)
	if err != nil {
		slog.Error("loading history failed", "user_id", userID, "error", err)
		return nil, internalError(err)
	}
	if !ok {
		return nil, notFoundError(msgUnknownUser)
	}
	return history, nil
}

// Users reports how many users have a history.
func (s *Service) Users(ctx context.Context) (int, error) {
	return s.store.Users(ctx)
}

func validate(userID, message string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(message) == "" {
		return validationError(msgMissingFields)
	}
	return nil
}
