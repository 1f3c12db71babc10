// Package classifier assigns rhetorical moves to sentences.
package classifier

import (
	"context"
	"strings"
	"unicode"
)

// Classification is the move and sub-move of one sentence.
type Classification struct {
	Move    int `json:"move"`
	SubMove int `json:"subMove"`
}

// Classifier classifies a single sentence.
type Classifier interface {
	Classify(ctx context.Context, sentence string) (Classification, error)
}

// Stub classifies every sentence as move 0, sub-move 0.
type Stub struct{}

// Classify implements Classifier.
func (Stub) Classify(ctx context.Context, sentence string) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}
	return Classification{Move: 0, SubMove: 0}, nil
}

// SplitSentences splits text after '.', '!' or '?' when followed by
// whitespace or the end of the text. Empty sentences are dropped.
func SplitSentences(text string) []string {
	var (
		sentences []string
		current   strings.Builder
	)
	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
