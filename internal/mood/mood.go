// Package mood turns a user's recent emotion scores into a mood label.
package mood

import (
	"errors"
	"time"

	"github.com/kalambet/moodrelay/internal/conversation"
)

// DefaultWindow is the trailing period considered when aggregating.
const DefaultWindow = 10 * time.Minute

// Classification thresholds. Both boundaries are exclusive.
const (
	HappyThreshold = 0.2
	SadThreshold   = -0.2
)

// Label is a mood classification.
type Label string

const (
	Happy   Label = "Happy"
	Sad     Label = "Sad"
	Neutral Label = "Neutral"
)

// ErrNoRecentInteractions is returned when no scored interaction falls
// inside the window.
var ErrNoRecentInteractions = errors.New("no recent interactions")

// Result is the outcome of an aggregation.
type Result struct {
	Mood    Label
	Average float64
	Recent  []conversation.Interaction
}

// Aggregator averages scored interactions inside a trailing window.
type Aggregator struct {
	window time.Duration
}

// NewAggregator returns an Aggregator over the given window. A non-positive
// window selects DefaultWindow.
func NewAggregator(window time.Duration) *Aggregator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Aggregator{window: window}
}

// Window returns the aggregation window.
func (a *Aggregator) Window() time.Duration {
	return a.window
}

// Aggregate filters history to scored interactions recorded at or after
// now minus the window and classifies their mean score. Chat turns carry no
// timestamp or score and are skipped.
func (a *Aggregator) Aggregate(history []conversation.Interaction, now time.Time) (Result, error) {
	cutoff := now.Add(-a.window)

	var (
		recent []conversation.Interaction
		total  float64
	)
	for _, i := range history {
		if !i.Scored() || i.Timestamp.Before(cutoff) {
			continue
		}
		recent = append(recent, i)
		total += i.EmotionScore
	}

	if len(recent) == 0 {
		return Result{}, ErrNoRecentInteractions
	}

	avg := total / float64(len(recent))
	return Result{Mood: Classify(avg), Average: avg, Recent: recent}, nil
}

// Classify maps an average score to a Label.
func Classify(avg float64) Label {
	switch {
	case avg > HappyThreshold:
		return Happy
	case avg < SadThreshold:
		return Sad
	default:
		return Neutral
	}
}
