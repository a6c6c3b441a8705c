// Package sentiment scores free text on a [-1, 1] polarity scale with the
// VADER lexicon and rule set.
package sentiment

import (
	"strings"

	"github.com/jonreiter/govader"
)

// Scorer maps text to a polarity score.
type Scorer interface {
	Score(text string) float64
}

// Vader is a Scorer backed by govader. It only reads its lexicon after
// construction, so one instance can be shared between goroutines.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// New loads the VADER lexicon and returns a ready Scorer.
func New() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the VADER compound score of text. Text with no
// sentiment-bearing words scores 0.
func (v *Vader) Score(text string) float64 {
	text = normalize(text)
	if text == "" {
		return 0
	}
	return clamp(v.analyzer.PolarityScores(text).Compound)
}

// typographic maps curly quotes to their ASCII forms so contractions such as
// "don’t" hit the negation list and quoted words lose their quote marks.
var typographic = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"‛", "'",
	"′", "'",
	"“", `"`,
	"”", `"`,
)

// normalize rewrites curly quotes and collapses whitespace runs to a single
// space. The analyzer splits tokens on ' ' only.
func normalize(text string) string {
	return strings.Join(strings.Fields(typographic.Replace(text)), " ")
}

func clamp(v float64) float64 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
