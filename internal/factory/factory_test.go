package factory

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/adapters/linear"
	"github.com/mikey/phish-scorer/internal/adapters/resilience"
	"github.com/mikey/phish-scorer/internal/adapters/store"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
	"github.com/mikey/phish-scorer/internal/utils"
)

const bodyModelYAML = `bias: -1
weights:
  verify: 1.5
  account: 1.0
`

const urlModelYAML = `bias: -2
coefficients:
  numDigits: 0.1
  num_@: 2
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewFromViper(config.NewEmptyViper())
	cfg.Set("classifier.body.model_path", writeFile(t, "body.yaml", bodyModelYAML))
	cfg.Set("classifier.url.model_path", writeFile(t, "url.yaml", urlModelYAML))
	return cfg
}

func newTestClassifierFactory(cfg *config.Config) *ClassifierFactory {
	return NewClassifierFactory(cfg, zap.NewNop(), utils.NewTextProcessor(zap.NewNop()))
}

func TestClassifierFactory_LinearWithBreaker(t *testing.T) {
	f := newTestClassifierFactory(newTestConfig(t))
	defer f.Close()

	body, err := f.CreateBodyClassifier(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &resilience.BreakerBodyClassifier{}, body)

	rows, err := body.PredictProba(context.Background(), []string{"verify your account"})
	require.NoError(t, err)
	assert.InDelta(t, 0.8176, rows[0].Phishing(), 1e-4)

	urls, err := f.CreateURLClassifier()
	require.NoError(t, err)
	assert.IsType(t, &resilience.BreakerURLClassifier{}, urls)

	rows, err = urls.PredictProba(context.Background(), []urlfeatures.Vector{{}})
	require.NoError(t, err)
	assert.InDelta(t, 0.1192, rows[0].Phishing(), 1e-4)
}

func TestClassifierFactory_BreakerDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Set("breaker.enabled", false)
	f := newTestClassifierFactory(cfg)

	body, err := f.CreateBodyClassifier(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &linear.BodyModel{}, body)
}

func TestClassifierFactory_URLChannelDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Set("classifier.url.enabled", false)
	f := newTestClassifierFactory(cfg)

	urls, err := f.CreateURLClassifier()
	require.NoError(t, err)
	assert.Nil(t, urls)
}

func TestClassifierFactory_LoadFailuresAreUnavailable(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]interface{}
		body bool
	}{
		{"missing body model", map[string]interface{}{"classifier.body.model_path": "/nonexistent/body.yaml"}, true},
		{"openai without key", map[string]interface{}{"classifier.body.provider": "openai"}, true},
		{"gemini without key", map[string]interface{}{"classifier.body.provider": "gemini"}, true},
		{"missing URL model", map[string]interface{}{"classifier.url.model_path": "/nonexistent/url.yaml"}, false},
		{"missing onnx model", map[string]interface{}{"classifier.url.provider": "onnx", "classifier.url.model_path": "/nonexistent/url.onnx"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			for k, v := range tt.set {
				cfg.Set(k, v)
			}
			f := newTestClassifierFactory(cfg)

			var err error
			if tt.body {
				_, err = f.CreateBodyClassifier(context.Background())
			} else {
				_, err = f.CreateURLClassifier()
			}
			assert.ErrorIs(t, err, core.ErrCollaboratorUnavailable)
		})
	}
}

func TestClassifierFactory_UnsupportedProvider(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Set("classifier.body.provider", "bayes")
	f := newTestClassifierFactory(cfg)

	_, err := f.CreateBodyClassifier(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrCollaboratorUnavailable)
}

func TestBreakerSettings_FallsBackToDefaults(t *testing.T) {
	s := breakerSettings(config.BreakerConfig{FailureRatio: 0.9})
	want := resilience.DefaultBreakerSettings()
	want.FailureRatio = 0.9
	assert.Equal(t, want, s)
}

func TestStoreFactory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Set("store.enabled", false)
		repo, stop, err := NewStoreFactory(cfg, zap.NewNop()).CreateVerdictStore(context.Background())
		require.NoError(t, err)
		assert.Nil(t, repo)
		stop()
	})

	t.Run("memory", func(t *testing.T) {
		cfg := newTestConfig(t)
		repo, stop, err := NewStoreFactory(cfg, zap.NewNop()).CreateVerdictStore(context.Background())
		require.NoError(t, err)
		defer stop()
		assert.IsType(t, &store.MemoryStore{}, repo)
	})

	t.Run("sqlite creates directory", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Set("store.type", "sqlite")
		cfg.Set("store.sqlite_path", filepath.Join(t.TempDir(), "nested", "verdicts.db"))
		repo, stop, err := NewStoreFactory(cfg, zap.NewNop()).CreateVerdictStore(context.Background())
		require.NoError(t, err)
		defer stop()
		assert.IsType(t, &store.SQLiteStore{}, repo)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Set("store.type", "etcd")
		_, _, err := NewStoreFactory(cfg, zap.NewNop()).CreateVerdictStore(context.Background())
		assert.Error(t, err)
	})
}

func TestFilterFactory(t *testing.T) {
	cfg := newTestConfig(t)
	ff := NewFilterFactory(cfg, zap.NewNop(), &filter.Scorer{}, nil)

	cfg.Set("server.filter_type", "http")
	f, err := ff.CreateEmailFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.HTTPFilter{}, f)

	cfg.Set("server.filter_type", "postfix")
	f, err = ff.CreateEmailFilter()
	require.NoError(t, err)
	assert.IsType(t, &filter.PostfixFilter{}, f)

	cfg.Set("server.filter_type", "milter")
	_, err = ff.CreateEmailFilter()
	assert.Error(t, err)

	assert.NotNil(t, ff.CreateCliFilter(&bytes.Buffer{}, false, true))
}
