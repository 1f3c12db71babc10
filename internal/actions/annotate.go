package actions

import (
	"context"
	"fmt"
	"strings"

	"github.com/tjfontaine/movegate/internal/classifier"
	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/pipeline"
	"github.com/tjfontaine/movegate/internal/tokens"
)

// SentenceRow is one classified sentence.
type SentenceRow struct {
	SentenceNumber int    `json:"sentenceNumber"`
	Text           string `json:"text"`
	Move           int    `json:"move"`
	SubMove        int    `json:"subMove"`
	MoveLabel      string `json:"moveLabel,omitempty"`
	SubMoveLabel   string `json:"subMoveLabel,omitempty"`
}

// AnnotateTextInput is the input of the annotate-text action.
type AnnotateTextInput struct {
	Text string `json:"text"`
}

func (in AnnotateTextInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return &domain.ValidationError{Field: "text", Message: "must not be empty"}
	}
	return nil
}

// AnnotateTextOutput lists the rows in sentence order.
type AnnotateTextOutput struct {
	Sentences []SentenceRow `json:"sentences"`
}

// NewAnnotateTextAction creates the annotate-text action.
func NewAnnotateTextAction(client *pipeline.Client, c classifier.Classifier, limit *tokens.Limit) *pipeline.Action[AnnotateTextInput, *AnnotateTextOutput] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "annotate-text"},
		func(ctx context.Context, ec domain.ExecutionContext, in AnnotateTextInput) (*AnnotateTextOutput, error) {
			sentences := classifier.SplitSentences(in.Text)
			out := &AnnotateTextOutput{Sentences: make([]SentenceRow, 0, len(sentences))}
			for i, s := range sentences {
				row, err := classify(ctx, c, limit, i+1, s)
				if err != nil {
					return nil, err
				}
				out.Sentences = append(out.Sentences, row)
			}
			return out, nil
		})
}

// ClassifySentenceInput is the input of the classify-sentence action.
type ClassifySentenceInput struct {
	Sentence string `json:"sentence"`
}

func (in ClassifySentenceInput) Validate() error {
	if strings.TrimSpace(in.Sentence) == "" {
		return &domain.ValidationError{Field: "sentence", Message: "must not be empty"}
	}
	return nil
}

// NewClassifySentenceAction creates the classify-sentence action.
func NewClassifySentenceAction(client *pipeline.Client, c classifier.Classifier, limit *tokens.Limit) *pipeline.Action[ClassifySentenceInput, *SentenceRow] {
	return pipeline.NewAction(client, domain.Metadata{ActionName: "classify-sentence"},
		func(ctx context.Context, ec domain.ExecutionContext, in ClassifySentenceInput) (*SentenceRow, error) {
			row, err := classify(ctx, c, limit, 1, strings.TrimSpace(in.Sentence))
			if err != nil {
				return nil, err
			}
			return &row, nil
		})
}

func classify(ctx context.Context, c classifier.Classifier, limit *tokens.Limit, number int, sentence string) (SentenceRow, error) {
	n, ok, err := limit.Check(sentence)
	if err != nil {
		return SentenceRow{}, fmt.Errorf("count tokens of sentence %d: %w", number, err)
	}
	if !ok {
		return SentenceRow{}, &domain.ValidationError{
			Message: fmt.Sprintf("sentence %d has %d tokens, the limit is %d", number, n, limit.Max()),
		}
	}

	cls, err := c.Classify(ctx, sentence)
	if err != nil {
		return SentenceRow{}, fmt.Errorf("classify sentence %d: %w", number, err)
	}

	row := SentenceRow{
		SentenceNumber: number,
		Text:           sentence,
		Move:           cls.Move,
		SubMove:        cls.SubMove,
	}
	row.MoveLabel, _ = domain.MoveLabel(cls.Move)
	row.SubMoveLabel, _ = domain.SubMoveLabel(cls.Move, cls.SubMove)
	return row, nil
}
