package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YOROBIZ/sentimentiq/internal/model"
)

func TestLexicon(t *testing.T) {
	l := NewLexicon()
	ctx := context.Background()

	cases := []struct {
		content    string
		sentiment  string
		confidence float64
		phrases    []string
	}{
		{"Service excellent", model.SentimentPositive, 0.75, []string{"Service Client"}},
		{"La chambre était sale et il y avait du bruit", model.SentimentNegative, 0.80, []string{"Hébergement"}},
		{"Hôtel correct, sans plus.", model.SentimentNeutral, 0.50, []string{"Général"}},
		{"Top super génial parfait excellent incroyable merci", model.SentimentPositive, 0.95, []string{"Général"}},
		{"Le prix du repas est bon mais le service lent", model.SentimentNeutral, 0.50, []string{"Restauration", "Service Client", "Tarification"}},
	}

	for _, tc := range cases {
		t.Run(tc.content, func(t *testing.T) {
			res, err := l.Classify(ctx, tc.content)
			require.NoError(t, err)
			assert.Equal(t, tc.sentiment, res.Sentiment)
			assert.InDelta(t, tc.confidence, res.Confidence, 0.0001)
			assert.Equal(t, tc.phrases, res.KeyPhrases)
			assert.NoError(t, Validate(res))
		})
	}
}

func TestLexiconEmptyContent(t *testing.T) {
	_, err := NewLexicon().Classify(context.Background(), "  ... ")
	var ce *ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "empty content", ce.Message)
}

func TestClassificationErrorMessageIsVerbatim(t *testing.T) {
	err := error(&ClassificationError{Message: "timeout"})
	assert.Equal(t, "timeout", err.Error())

	ce := AsClassificationError(errors.New("connection refused"))
	assert.Equal(t, "connection refused", ce.Message)
	assert.Same(t, err, error(AsClassificationError(err)))
	assert.Nil(t, AsClassificationError(nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Result{Sentiment: model.SentimentNeutral, Confidence: 0}))
	assert.NoError(t, Validate(Result{Sentiment: model.SentimentNegative, Confidence: 1}))
	assert.Error(t, Validate(Result{Sentiment: "MIXED", Confidence: 0.5}))
	assert.Error(t, Validate(Result{Sentiment: model.SentimentPositive, Confidence: 1.2}))
}

func TestWithTimeoutExpires(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	stuck := Func(func(ctx context.Context, content string) (Result, error) {
		<-release
		return Result{Sentiment: model.SentimentPositive, Confidence: 1}, nil
	})

	start := time.Now()
	_, err := WithTimeout(stuck, 20*time.Millisecond).Classify(context.Background(), "hello")
	var ce *ClassificationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "timed out")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	ok := Func(func(ctx context.Context, content string) (Result, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return Result{Sentiment: model.SentimentNegative, Confidence: 0.8}, nil
	})
	res, err := WithTimeout(ok, time.Second).Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNegative, res.Sentiment)

	failing := Func(func(ctx context.Context, content string) (Result, error) {
		return Result{}, &ClassificationError{Message: "boom"}
	})
	_, err = WithTimeout(failing, time.Second).Classify(context.Background(), "x")
	assert.EqualError(t, err, "boom")

	_, wrapped := WithTimeout(ok, 0).(*timeoutClassifier)
	assert.False(t, wrapped)
}

func TestHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req analyzeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.RequestID)

		switch req.Text {
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
		case "weird":
			_ = json.NewEncoder(w).Encode(map[string]any{"sentiment": "mixed", "confidence": 0.5})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"request_id":    req.RequestID,
				"sentiment":     "positive",
				"confidence":    0.92,
				"keywords":      []string{"service", "excellent"},
				"model_version": "v2",
				"latency_ms":    12.5,
			})
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "secret")
	ctx := context.Background()

	res, err := c.Classify(ctx, "Service excellent")
	require.NoError(t, err)
	assert.Equal(t, model.SentimentPositive, res.Sentiment)
	assert.Equal(t, 0.92, res.Confidence)
	assert.Equal(t, []string{"service", "excellent"}, res.KeyPhrases)

	var ce *ClassificationError
	_, err = c.Classify(ctx, "broken")
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "502")

	_, err = c.Classify(ctx, "weird")
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "unknown sentiment")
}
