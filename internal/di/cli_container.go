package di

import (
	"flag"
	"io"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/adapters/filter"
	"github.com/mikey/phish-scorer/internal/config"
	"github.com/mikey/phish-scorer/internal/factory"
	"github.com/mikey/phish-scorer/internal/logging"
	"github.com/mikey/phish-scorer/internal/metrics"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Classifier flags
	BodyProvider  string
	BodyModelPath string
	URLProvider   string
	URLModelPath  string
	NoURLChannel  bool

	// Decision flags
	Threshold   float64
	Whitelist   string
	NumFeatures int

	// Input and output flags
	InputFile  string
	Verbose    bool
	JSONLog    bool
	JSONOutput bool
	ConfigFile string
}

// ParseFlags parses args into a CLIFlags struct
func ParseFlags(args []string, output io.Writer) (*CLIFlags, error) {
	flags := &CLIFlags{}
	fs := flag.NewFlagSet("phish-detector", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&flags.BodyProvider, "provider", "linear", "Body classifier provider (linear, openai, gemini, bedrock)")
	fs.StringVar(&flags.BodyModelPath, "body-model", "./models/body_model.yaml", "Path to the linear body model")
	fs.StringVar(&flags.URLProvider, "url-provider", "linear", "URL classifier provider (linear, onnx)")
	fs.StringVar(&flags.URLModelPath, "url-model", "./models/url_model.yaml", "Path to the URL model")
	fs.BoolVar(&flags.NoURLChannel, "no-urls", false, "Score the body only")

	fs.Float64Var(&flags.Threshold, "threshold", 0.5, "Phishing threshold for the overall probability")
	fs.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")
	fs.IntVar(&flags.NumFeatures, "num-features", 10, "Number of tokens in the explanation")

	fs.StringVar(&flags.InputFile, "file", "", "Input email file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the result as JSON")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides command line flags)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}

// BuildCLIContainer creates the container for one-shot scoring
func BuildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewWithFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			// One-shot runs keep no audit trail
			cfg.Set("store.enabled", false)
			return cfg, nil
		}
		cfg := createConfigFromFlags(flags)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Register metrics without process collectors
	if err := container.Provide(func() *metrics.Metrics {
		return metrics.New(false)
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register CLI filter
	if err := container.Provide(func(f *factory.FilterFactory, flags *CLIFlags) *filter.CliFilter {
		return f.CreateCliFilter(out, flags.Verbose, flags.JSONOutput)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	v.Set("server.filter_type", "cli")
	v.Set("store.enabled", false)

	v.Set("classifier.body.provider", flags.BodyProvider)
	v.Set("classifier.body.model_path", flags.BodyModelPath)
	v.Set("classifier.url.enabled", !flags.NoURLChannel)
	v.Set("classifier.url.provider", flags.URLProvider)
	v.Set("classifier.url.model_path", flags.URLModelPath)

	v.Set("phishing.threshold", flags.Threshold)
	v.Set("explainer.num_features", flags.NumFeatures)

	domains := []string{}
	if flags.Whitelist != "" {
		for _, d := range strings.Split(flags.Whitelist, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, d)
			}
		}
	}
	v.Set("phishing.whitelisted_domains", domains)

	return config.NewFromViper(v)
}
