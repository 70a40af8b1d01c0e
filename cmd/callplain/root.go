package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/txplain/callplain/internal/agent"
	"github.com/txplain/callplain/internal/config"
	"github.com/txplain/callplain/internal/knowledge"
	"github.com/txplain/callplain/internal/models"
	"github.com/txplain/callplain/internal/tools"
)

var (
	cfgFile string
	cfg     config.Config
	logger  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "callplain",
	Short: "callplain explains Polkadot SDK calls in plain language",
	Long: `callplain decodes Substrate extrinsic calls into display-ready data and,
when an OpenAI key is configured, turns them into a one or two sentence
explanation for the person about to sign.

It runs as an HTTP API (optionally with an MCP endpoint) or as a one-shot CLI.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.callplain.yaml)")

	if err := registerFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(serveCmd, explainCmd, lookupCmd, rulesCmd, callsCmd, versionCmd)
}

// initConfig wires .env, the config file and the environment into viper
func initConfig() {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".callplain")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("llm.api-key", config.EnvPrefix+"_LLM_API_KEY", "OPENAI_API_KEY")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig unmarshals and validates the configuration, then sets up logging
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger = newLogger(cfg.Log)
	models.InitializeChains()
	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return nil
}

func newLogger(c config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var base zerolog.Logger
	if strings.EqualFold(c.Format, config.LogFormatJSON) {
		base = zerolog.New(os.Stderr)
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return base.Level(level).With().Timestamp().Str("service", "callplain").Logger()
}

// newAgent builds the agent from the loaded configuration. withLLM=false
// skips the model even when a key is configured.
func newAgent(ctx context.Context, withLLM bool) (*agent.CallplainAgent, error) {
	kb, err := knowledge.New(cfg.Knowledge.Path)
	if err != nil {
		return nil, err
	}

	opts := agent.Options{
		Knowledge: kb,
		CacheTTL:  cfg.Cache.TTL,
		Logger:    logger,
		Verbose:   strings.EqualFold(cfg.Log.Level, config.LogLevelDebug),
		Retry: tools.LLMRetryConfig{
			MaxRetries:      cfg.LLM.MaxRetries,
			InitialDelay:    cfg.LLM.InitialDelay,
			MaxDelay:        cfg.LLM.MaxDelay,
			BackoffFactor:   2.0,
			TimeoutPerRetry: cfg.LLM.Timeout,
		},
	}

	if withLLM && cfg.LLM.Enabled() {
		llm, err := agent.NewOpenAILLM(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		opts.LLM = llm

		cache, locker, err := tools.OpenCache(ctx, tools.CacheOptions{
			Backend:   cfg.Cache.Backend,
			RedisAddr: cfg.Cache.RedisAddr,
			KeyPrefix: cfg.Cache.Prefix,
			TTL:       cfg.Cache.TTL,
			MaxItems:  cfg.Cache.MaxItems,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		opts.Cache = cache
		opts.Locker = locker
	} else if withLLM {
		logger.Warn().Msg("no LLM API key configured, explanations will be enrichment only")
	}

	return agent.NewCallplainAgent(opts)
}
