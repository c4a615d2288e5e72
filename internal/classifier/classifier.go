// Package classifier turns feedback text into a sentiment judgment.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

// Result is a sentiment judgment.
type Result struct {
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	KeyPhrases []string `json:"key_phrases"`
}

// Classifier analyzes a piece of text.
type Classifier interface {
	Classify(ctx context.Context, content string) (Result, error)
}

// Func adapts a function to Classifier.
type Func func(ctx context.Context, content string) (Result, error)

// Classify calls f.
func (f Func) Classify(ctx context.Context, content string) (Result, error) {
	return f(ctx, content)
}

// ClassificationError is a retryable classification failure. Error returns
// Message unchanged.
type ClassificationError struct {
	Message string
}

func (e *ClassificationError) Error() string {
	return e.Message
}

// Errorf builds a ClassificationError.
func Errorf(format string, args ...interface{}) error {
	return &ClassificationError{Message: fmt.Sprintf(format, args...)}
}

// AsClassificationError returns err as a ClassificationError, wrapping any
// other error with its message kept verbatim.
func AsClassificationError(err error) *ClassificationError {
	if err == nil {
		return nil
	}
	var ce *ClassificationError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassificationError{Message: err.Error()}
}

// Validate checks the label and confidence range of r.
func Validate(r Result) error {
	switch r.Sentiment {
	case model.SentimentPositive, model.SentimentNeutral, model.SentimentNegative:
	default:
		return Errorf("unknown sentiment %q", r.Sentiment)
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return Errorf("confidence %v out of range [0,1]", r.Confidence)
	}
	return nil
}

// WithTimeout bounds every call to next by d. Expiry yields a
// ClassificationError even if next ignores its context.
func WithTimeout(next Classifier, d time.Duration) Classifier {
	if d <= 0 {
		return next
	}
	return &timeoutClassifier{next: next, timeout: d}
}

type timeoutClassifier struct {
	next    Classifier
	timeout time.Duration
}

type outcome struct {
	result Result
	err    error
}

func (t *timeoutClassifier) Classify(ctx context.Context, content string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := t.next.Classify(ctx, content)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() != nil {
			return Result{}, t.interrupted(ctx.Err())
		}
		return o.result, o.err
	case <-ctx.Done():
		return Result{}, t.interrupted(ctx.Err())
	}
}

func (t *timeoutClassifier) interrupted(cause error) error {
	if errors.Is(cause, context.DeadlineExceeded) {
		return Errorf("classification timed out after %s", t.timeout)
	}
	return Errorf("classification canceled: %v", cause)
}
