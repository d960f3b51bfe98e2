package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/utils"
)

type fakeModel struct {
	resp    *genai.GenerateContentResponse
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		if t, ok := p.(genai.Text); ok {
			f.prompts = append(f.prompts, string(t))
		}
	}
	return f.resp, f.err
}

func reply(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestClassifier_PredictProba(t *testing.T) {
	model := &fakeModel{resp: reply(genai.Text(`{"phishing_`), genai.Text(`probability": 0.4}`))}
	c := NewClassifierWithModel(model, "gemini-1.5-flash", 0, zap.NewNop(), utils.NewTextProcessor(nil))

	rows, err := c.PredictProba(context.Background(), []string{"reset your password at <url>"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 0.4, rows[0].Phishing(), 1e-12)
	assert.Contains(t, model.prompts[0], "reset your password at <url>")
	assert.NoError(t, c.Close())
}

func TestClassifier_Errors(t *testing.T) {
	tp := utils.NewTextProcessor(nil)

	c := NewClassifierWithModel(&fakeModel{err: errors.New("quota")}, "m", 0, zap.NewNop(), tp)
	_, err := c.PredictProba(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "quota")

	c = NewClassifierWithModel(&fakeModel{resp: &genai.GenerateContentResponse{}}, "m", 0, zap.NewNop(), tp)
	_, err = c.PredictProba(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "empty response")
}
