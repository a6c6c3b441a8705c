// Package conversation defines the per-user interaction history model shared
// by the relay, the mood aggregator and the stores.
package conversation

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is the ISO-8601 form used for recorded interactions.
const TimestampLayout = time.RFC3339Nano

// Kind discriminates the two Interaction variants.
type Kind string

const (
	KindChatTurn      Kind = "chat_turn"
	KindLoggedMessage Kind = "logged_message"
)

// Chat turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Interaction is one entry in a user's history. Exactly one variant is
// populated, selected by Kind:
//
//   - KindChatTurn: Role and Content.
//   - KindLoggedMessage: ID, Timestamp, UserMessage and EmotionScore.
type Interaction struct {
	Kind Kind

	Role    string
	Content string

	ID           string
	Timestamp    time.Time
	UserMessage  string
	EmotionScore float64
}

// ChatTurn returns a chat-turn Interaction.
func ChatTurn(role, content string) Interaction {
	return Interaction{Kind: KindChatTurn, Role: role, Content: content}
}

// LoggedMessage returns a logged-message Interaction.
func LoggedMessage(id string, ts time.Time, message string, score float64) Interaction {
	return Interaction{
		Kind:         KindLoggedMessage,
		ID:           id,
		Timestamp:    ts,
		UserMessage:  message,
		EmotionScore: score,
	}
}

// Scored reports whether the interaction carries a timestamp and an emotion
// score. Only scored interactions take part in mood aggregation.
func (i Interaction) Scored() bool {
	return i.Kind == KindLoggedMessage && !i.Timestamp.IsZero()
}

type chatTurnJSON struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type loggedMessageJSON struct {
	ID           string  `json:"id,omitempty"`
	Timestamp    string  `json:"timestamp"`
	UserMessage  string  `json:"user_message"`
	EmotionScore float64 `json:"emotion_score"`
}

// MarshalJSON encodes the interaction in its variant's wire shape. Chat turns
// encode as {role, content}; logged messages as
// {id, timestamp, user_message, emotion_score}.
func (i Interaction) MarshalJSON() ([]byte, error) {
	switch i.Kind {
	case KindChatTurn:
		return json.Marshal(chatTurnJSON{Role: i.Role, Content: i.Content})
	case KindLoggedMessage:
		return json.Marshal(loggedMessageJSON{
			ID:           i.ID,
			Timestamp:    i.Timestamp.Format(TimestampLayout),
			UserMessage:  i.UserMessage,
			EmotionScore: i.EmotionScore,
		})
	default:
		return nil, fmt.Errorf("unknown interaction kind %q", i.Kind)
	}
}

// UnmarshalJSON infers the variant from the fields present.
func (i *Interaction) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if _, ok := raw["role"]; ok {
		var c chatTurnJSON
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*i = ChatTurn(c.Role, c.Content)
		return nil
	}

	if _, ok := raw["timestamp"]; ok {
		var l loggedMessageJSON
		if err := json.Unmarshal(data, &l); err != nil {
			return err
		}
		ts, err := time.Parse(TimestampLayout, l.Timestamp)
		if err != nil {
			return fmt.Errorf("parsing timestamp: %w", err)
		}
		*i = LoggedMessage(l.ID, ts, l.UserMessage, l.EmotionScore)
		return nil
	}

	return fmt.Errorf("interaction has neither role nor timestamp")
}
