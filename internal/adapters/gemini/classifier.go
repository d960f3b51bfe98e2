package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/utils"
)

// ContentGenerator is the part of a Gemini model the classifier uses
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Classifier is a core.BodyClassifier backed by a Gemini model
type Classifier struct {
	client        *genai.Client
	model         ContentGenerator
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifier connects to Gemini and configures the generative model
func NewClassifier(
	ctx context.Context,
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*Classifier, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(utils.SystemPrompt))

	c := NewClassifierWithModel(model, modelName, maxBodySize, logger, textProcessor)
	c.client = client
	return c, nil
}

// NewClassifierWithModel wraps an already configured model
func NewClassifierWithModel(model ContentGenerator, modelName string, maxBodySize int, logger *zap.Logger, textProcessor *utils.TextProcessor) *Classifier {
	return &Classifier{
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// Close closes the Gemini client
func (c *Classifier) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// PredictProba implements core.BodyClassifier with one request per text
func (c *Classifier) PredictProba(ctx context.Context, texts []string) ([]core.ClassProbabilities, error) {
	out := make([]core.ClassProbabilities, 0, len(texts))
	for _, text := range texts {
		p, err := c.score(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, core.FromPhishing(p))
	}
	return out, nil
}

func (c *Classifier) score(ctx context.Context, text string) (float64, error) {
	body := c.textProcessor.ProcessText(text, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(utils.BuildPhishingPrompt(body)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return 0, fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	p, err := utils.ParsePhishingProbability(sb.String())
	if err != nil {
		return 0, err
	}

	c.logger.Debug("Gemini scored body",
		zap.String("model", c.modelName),
		zap.Float64("phishing_probability", p))
	return p, nil
}
