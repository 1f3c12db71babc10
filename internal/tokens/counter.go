// Package tokens counts the tokens of sentences sent to the classifier.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts the tokens of a piece of text.
type Counter interface {
	CountText(text string) (int, error)
}

// TiktokenCounter counts tokens with a tiktoken encoding.
type TiktokenCounter struct {
	encoding tokenizer.Encoding

	// codec is loaded on first use
	codec   tokenizer.Codec
	cacheMu sync.Mutex
}

// NewTiktokenCounter creates a counter for encoding. An empty encoding
// selects cl100k_base.
func NewTiktokenCounter(encoding tokenizer.Encoding) *TiktokenCounter {
	if encoding == "" {
		encoding = tokenizer.Cl100kBase
	}
	return &TiktokenCounter{encoding: encoding}
}

func (c *TiktokenCounter) getCodec() (tokenizer.Codec, error) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if c.codec != nil {
		return c.codec, nil
	}
	codec, err := tokenizer.Get(c.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}
	c.codec = codec
	return codec, nil
}

// CountText counts tokens for a plain text string.
func (c *TiktokenCounter) CountText(text string) (int, error) {
	codec, err := c.getCodec()
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to encode text: %w", err)
	}
	return len(ids), nil
}

// Estimator provides token count estimation based on character count.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// CountText estimates the token count of text, rounding up.
func (e *Estimator) CountText(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	n := int(float64(len(text))/e.CharsPerToken + 0.999)
	if n < 1 {
		n = 1
	}
	return n, nil
}

// Limit rejects texts longer than a token budget.
type Limit struct {
	counter Counter
	max     int
}

// NewLimit creates a limit of max tokens measured by counter. A max of zero
// or less disables the limit.
func NewLimit(counter Counter, max int) *Limit {
	return &Limit{counter: counter, max: max}
}

// Check returns the token count of text and whether it fits the limit.
func (l *Limit) Check(text string) (int, bool, error) {
	if l == nil || l.counter == nil || l.max <= 0 {
		return 0, true, nil
	}
	n, err := l.counter.CountText(text)
	if err != nil {
		return 0, false, err
	}
	return n, n <= l.max, nil
}

// Max returns the configured token budget.
func (l *Limit) Max() int {
	if l == nil {
		return 0
	}
	return l.max
}
