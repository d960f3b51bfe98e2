package filter

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/core"
)

func newTestHTTPFilter(t *testing.T, opts testScorerOptions) *HTTPFilter {
	t.Helper()
	scorer, m, _ := newTestScorer(t, opts)
	return NewHTTPFilter(scorer, zap.NewNop(), "127.0.0.1:0", config.HTTPConfig{
		CORSOrigins:    []string{"http://localhost:3000"},
		MetricsEnabled: true,
	}, m.Registry, 10)
}

func doRequest(t *testing.T, f *HTTPFilter, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHTTPFilter_Root(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	resp, data := doRequest(t, f, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"Hello World"}`, string(data))
}

func TestHTTPFilter_Predict(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	resp, data := doRequest(t, f, http.MethodPost, "/", `{"subject":"Urgent","body":"Verify your account now"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var result core.FusedResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.True(t, result.IsPhishing)
	assert.Equal(t, core.ClassPhishing, result.BodyPredictedClass)
	assert.InDelta(t, 0.8176, result.BodyConfidence, 1e-4)
	assert.InDelta(t, 1.0, result.Importance["verify"], 1e-9)
	assert.Less(t, result.Importance["account"], result.Importance["verify"])
	assert.Nil(t, result.URLAverageProbability)
	assert.NotEmpty(t, result.RequestID)

	resp, data = doRequest(t, f, http.MethodGet, "/verdicts/"+result.RequestID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var verdict core.Verdict
	require.NoError(t, json.Unmarshal(data, &verdict))
	assert.Equal(t, result.RequestID, verdict.ID)
}

func TestHTTPFilter_PredictNumFeatures(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	resp, data := doRequest(t, f, http.MethodPost, "/", `{"body":"Verify your account now","num_features":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var result core.FusedResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, map[string]float64{"verify": 1.0}, result.Importance)
}

func TestHTTPFilter_PredictNonPositiveNumFeaturesUsesDefault(t *testing.T) {
	for _, n := range []string{"0", "-1"} {
		t.Run(n, func(t *testing.T) {
			f := newTestHTTPFilter(t, testScorerOptions{})

			resp, data := doRequest(t, f, http.MethodPost, "/", `{"body":"Verify your account now","num_features":`+n+`}`)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

			var result core.FusedResult
			require.NoError(t, json.Unmarshal(data, &result))
			assert.Contains(t, result.Importance, "verify")
			assert.Contains(t, result.Importance, "account")
		})
	}
}

func TestHTTPFilter_PredictErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   testScorerOptions
		body   string
		status int
		stage  string
	}{
		{"missing body", testScorerOptions{}, `{"subject":"hi"}`, http.StatusBadRequest, ""},
		{"malformed json", testScorerOptions{}, `{"body":`, http.StatusBadRequest, ""},
		{"nothing to explain", testScorerOptions{}, `{"body":""}`, http.StatusUnprocessableEntity, string(core.StageExplained)},
		{"classifier down", testScorerOptions{body: failingClassifier{}}, `{"body":"hello"}`, http.StatusServiceUnavailable, string(core.StageScored)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestHTTPFilter(t, tt.opts)
			resp, data := doRequest(t, f, http.MethodPost, "/", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))

			var er errorResponse
			require.NoError(t, json.Unmarshal(data, &er))
			assert.NotEmpty(t, er.Error)
			assert.Equal(t, tt.stage, er.Stage)
		})
	}
}

func TestHTTPFilter_VerdictNotFound(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	resp, _ := doRequest(t, f, http.MethodGet, "/verdicts/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTPFilter_VerdictStoreDisabled(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{noStore: true})

	resp, _ := doRequest(t, f, http.MethodGet, "/verdicts/missing", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHTTPFilter_Metrics(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	resp, _ := doRequest(t, f, http.MethodPost, "/", `{"body":"Verify your account now"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, data := doRequest(t, f, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), `phish_scorer_classifications_total{outcome="phishing"} 1`)
}

func TestHTTPFilter_CORS(t *testing.T) {
	f := newTestHTTPFilter(t, testScorerOptions{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := f.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
