package config

import "time"

// ServerConfig configures the active host filter
type ServerConfig struct {
	FilterType      string
	ListenAddress   string
	BlockPhishing   bool
	ModifySubject   bool
	SubjectPrefix   string
	StatusHeader    string
	ScoreHeader     string
	TokensHeader    string
	MaxMessageBytes int
}

// PostfixConfig is where accepted mail is reinjected
type PostfixConfig struct {
	Enabled bool
	Address string
	Port    int
}

// HTTPConfig configures the HTTP filter
type HTTPConfig struct {
	CORSOrigins    []string
	BodyLimit      int
	ReadTimeout    time.Duration
	MetricsEnabled bool
}

// PhishingConfig holds the decision settings
type PhishingConfig struct {
	Threshold          float64
	WhitelistedDomains []string
}

// BodyClassifierConfig selects the body classifier
type BodyClassifierConfig struct {
	Provider  string
	ModelPath string
}

// URLClassifierConfig selects the URL classifier
type URLClassifierConfig struct {
	Enabled   bool
	Provider  string
	ModelPath string
}

// ONNXConfig configures the onnxruntime URL classifier
type ONNXConfig struct {
	SharedLibraryPath string
	InputName         string
	OutputName        string
	IntraOpThreads    int
}

// BreakerConfig configures circuit breakers around classifiers
type BreakerConfig struct {
	Enabled             bool
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// ExplainerConfig configures the occlusion explainer
type ExplainerConfig struct {
	NumFeatures   int
	MaxCandidates int
}

// StoreConfig configures the verdict store
type StoreConfig struct {
	Enabled          bool
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
	RedisURL         string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:      c.GetString("server.filter_type"),
		ListenAddress:   c.GetString("server.listen_address"),
		BlockPhishing:   c.GetBool("server.block_phishing"),
		ModifySubject:   c.GetBool("server.modify_subject"),
		SubjectPrefix:   c.GetString("server.subject_prefix"),
		StatusHeader:    c.GetString("server.headers.status"),
		ScoreHeader:     c.GetString("server.headers.score"),
		TokensHeader:    c.GetString("server.headers.tokens"),
		MaxMessageBytes: c.GetInt("server.max_message_bytes"),
	}
}

// GetPostfix returns the Postfix reinjection configuration
func (c *Config) GetPostfix() PostfixConfig {
	return PostfixConfig{
		Enabled: c.GetBool("postfix.enabled"),
		Address: c.GetString("postfix.address"),
		Port:    c.GetInt("postfix.port"),
	}
}

// GetHTTP returns the HTTP filter configuration
func (c *Config) GetHTTP() HTTPConfig {
	return HTTPConfig{
		CORSOrigins:    c.GetStringSlice("http.cors_origins"),
		BodyLimit:      c.GetInt("http.body_limit"),
		ReadTimeout:    c.mustDuration("http.read_timeout"),
		MetricsEnabled: c.GetBool("http.metrics_enabled"),
	}
}

// GetPhishing returns the decision configuration
func (c *Config) GetPhishing() PhishingConfig {
	return PhishingConfig{
		Threshold:          c.GetFloat64("phishing.threshold"),
		WhitelistedDomains: c.GetStringSlice("phishing.whitelisted_domains"),
	}
}

// GetBodyClassifier returns the body classifier configuration
func (c *Config) GetBodyClassifier() BodyClassifierConfig {
	return BodyClassifierConfig{
		Provider:  c.GetString("classifier.body.provider"),
		ModelPath: c.GetString("classifier.body.model_path"),
	}
}

// GetURLClassifier returns the URL classifier configuration
func (c *Config) GetURLClassifier() URLClassifierConfig {
	return URLClassifierConfig{
		Enabled:   c.GetBool("classifier.url.enabled"),
		Provider:  c.GetString("classifier.url.provider"),
		ModelPath: c.GetString("classifier.url.model_path"),
	}
}

// GetONNX returns the onnxruntime configuration
func (c *Config) GetONNX() ONNXConfig {
	return ONNXConfig{
		SharedLibraryPath: c.GetString("onnx.shared_library_path"),
		InputName:         c.GetString("onnx.input_name"),
		OutputName:        c.GetString("onnx.output_name"),
		IntraOpThreads:    c.GetInt("onnx.intra_op_threads"),
	}
}

// GetBreaker returns the circuit breaker configuration
func (c *Config) GetBreaker() BreakerConfig {
	return BreakerConfig{
		Enabled:             c.GetBool("breaker.enabled"),
		MaxRequests:         uint32(c.GetInt("breaker.max_requests")),
		Interval:            c.mustDuration("breaker.interval"),
		Timeout:             c.mustDuration("breaker.timeout"),
		ConsecutiveFailures: uint32(c.GetInt("breaker.consecutive_failures")),
		MinRequests:         uint32(c.GetInt("breaker.min_requests")),
		FailureRatio:        c.GetFloat64("breaker.failure_ratio"),
	}
}

// GetExplainer returns the explainer configuration
func (c *Config) GetExplainer() ExplainerConfig {
	return ExplainerConfig{
		NumFeatures:   c.GetInt("explainer.num_features"),
		MaxCandidates: c.GetInt("explainer.max_candidates"),
	}
}

// GetStore returns the verdict store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Enabled:          c.GetBool("store.enabled"),
		Type:             c.GetString("store.type"),
		Retention:        c.mustDuration("store.retention"),
		CleanupFrequency: c.mustDuration("store.cleanup_frequency"),
		SQLitePath:       c.GetString("store.sqlite_path"),
		MySQLDSN:         c.GetString("store.mysql_dsn"),
		PostgresDSN:      c.GetString("store.postgres_dsn"),
		RedisURL:         c.GetString("store.redis_url"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}
