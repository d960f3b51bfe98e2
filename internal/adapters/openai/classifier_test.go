package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/utils"
)

type fakeCompleter struct {
	replies []string
	err     error
	reqs    []openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if len(f.replies) == 0 {
		return openai.ChatCompletionResponse{}, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return openai.ChatCompletionResponse{
		ID: "chatcmpl-test",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply}},
		},
	}, nil
}

func newTestClassifier(client ChatCompleter) *Classifier {
	return NewClassifier(client, "gpt-4o-mini", 64, 0, 1, 16, zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
}

func TestClassifier_PredictProba(t *testing.T) {
	fake := &fakeCompleter{replies: []string{`{"phishing_probability": 0.9}`, `{"phishing_probability": 0.1}`}}
	c := newTestClassifier(fake)

	rows, err := c.PredictProba(context.Background(), []string{"verify your account at <url> now please", "lunch?"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.InDelta(t, 0.9, rows[0].Phishing(), 1e-12)
	assert.InDelta(t, 0.1, rows[1].Phishing(), 1e-12)

	require.Len(t, fake.reqs, 2)
	assert.Equal(t, "gpt-4o-mini", fake.reqs[0].Model)
	assert.Contains(t, fake.reqs[0].Messages[1].Content, "verify your acco"+utils.TruncationMarker)
}

func TestClassifier_Errors(t *testing.T) {
	_, err := newTestClassifier(&fakeCompleter{err: errors.New("rate limited")}).PredictProba(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "rate limited")

	_, err = newTestClassifier(&fakeCompleter{}).PredictProba(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "empty response")

	_, err = newTestClassifier(&fakeCompleter{replies: []string{"no idea"}}).PredictProba(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, utils.ErrNoJSON)
}

func TestClassifier_AgainstHTTPServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"phishing_probability": 0.65}`,
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := newTestClassifier(NewClient("test-key", srv.URL+"/v1"))
	rows, err := c.PredictProba(context.Background(), []string{"click <url>"})
	require.NoError(t, err)
	assert.InDelta(t, 0.65, rows[0].Phishing(), 1e-12)
}
