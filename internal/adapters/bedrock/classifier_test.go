package bedrock

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/utils"
)

type fakeRuntime struct {
	body   string
	inputs []*bedrockruntime.InvokeModelInput
}

func (f *fakeRuntime) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.inputs = append(f.inputs, params)
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func TestClassifier_ModelFamilies(t *testing.T) {
	tests := []struct {
		name       string
		modelID    string
		response   string
		requestKey string
		want       float64
	}{
		{
			name:       "claude messages",
			modelID:    "anthropic.claude-3-haiku-20240307-v1:0",
			response:   `{"content":[{"type":"text","text":"{\"phishing_probability\": 0.7}"}]}`,
			requestKey: "messages",
			want:       0.7,
		},
		{
			name:       "claude inference profile",
			modelID:    "us.anthropic.claude-3-5-sonnet-20240620-v1:0",
			response:   `{"content":[{"type":"text","text":"{\"phishing_probability\": 0.2}"}]}`,
			requestKey: "anthropic_version",
			want:       0.2,
		},
		{
			name:       "titan",
			modelID:    "amazon.titan-text-express-v1",
			response:   `{"results":[{"outputText":"{\"phishing_probability\": 0.55}"}]}`,
			requestKey: "inputText",
			want:       0.55,
		},
		{
			name:       "generic",
			modelID:    "meta.llama3-8b-instruct-v1:0",
			response:   `{"generation":"{\"phishing_probability\": 0.05}"}`,
			requestKey: "prompt",
			want:       0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{body: tt.response}
			c := NewClassifier(rt, tt.modelID, 64, 0, 1, 0, zap.NewNop(), utils.NewTextProcessor(nil))

			rows, err := c.PredictProba(context.Background(), []string{"confirm your <url>"})
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.InDelta(t, tt.want, rows[0].Phishing(), 1e-12)

			require.Len(t, rt.inputs, 1)
			assert.Equal(t, tt.modelID, *rt.inputs[0].ModelId)
			var payload map[string]interface{}
			require.NoError(t, json.Unmarshal(rt.inputs[0].Body, &payload))
			assert.Contains(t, payload, tt.requestKey)
		})
	}
}

func TestClassifier_EmptyClaudeResponse(t *testing.T) {
	rt := &fakeRuntime{body: `{"content":[]}`}
	c := NewClassifier(rt, "anthropic.claude-3-haiku", 64, 0, 1, 0, zap.NewNop(), utils.NewTextProcessor(nil))

	_, err := c.PredictProba(context.Background(), []string{"x"})
	assert.ErrorContains(t, err, "empty response")
}
