package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/txplain/callplain/internal/config"
)

// Flag describes a persistent flag bound to a viper key
type Flag struct {
	Name         string
	DefaultValue interface{}
	Description  string
	BindTo       string
}

var flags = []Flag{
	// HTTP API
	{Name: "http-host", DefaultValue: config.DefaultHTTPHost, Description: "HTTP server host", BindTo: "http.host"},
	{Name: "http-port", DefaultValue: config.DefaultHTTPPort, Description: "HTTP server port", BindTo: "http.port"},

	// MCP
	{Name: "mcp", DefaultValue: false, Description: "Enable the MCP server", BindTo: "mcp.enabled"},
	{Name: "mcp-host", DefaultValue: config.DefaultMCPHost, Description: "MCP server host", BindTo: "mcp.host"},
	{Name: "mcp-port", DefaultValue: config.DefaultMCPPort, Description: "MCP server port", BindTo: "mcp.port"},

	// LLM
	{Name: "llm-api-key", DefaultValue: "", Description: "OpenAI API key (also read from OPENAI_API_KEY); explanations are disabled without it", BindTo: "llm.api-key"},
	{Name: "llm-model", DefaultValue: config.DefaultLLMModel, Description: "OpenAI model", BindTo: "llm.model"},
	{Name: "llm-max-retries", DefaultValue: config.DefaultLLMMaxRetries, Description: "Retries for failed LLM calls", BindTo: "llm.max-retries"},
	{Name: "llm-initial-delay", DefaultValue: config.DefaultLLMInitialDelay, Description: "Delay before the first LLM retry", BindTo: "llm.initial-delay"},
	{Name: "llm-max-delay", DefaultValue: config.DefaultLLMMaxDelay, Description: "Upper bound for the LLM retry delay", BindTo: "llm.max-delay"},
	{Name: "llm-timeout", DefaultValue: config.DefaultLLMTimeout, Description: "Timeout per LLM attempt (0 disables)", BindTo: "llm.timeout"},

	// Cache
	{Name: "cache-backend", DefaultValue: config.DefaultCacheBackend, Description: "Explanation cache (none, memory, redis)", BindTo: "cache.backend"},
	{Name: "cache-redis-addr", DefaultValue: "", Description: "Redis address for the redis cache backend", BindTo: "cache.redis-addr"},
	{Name: "cache-prefix", DefaultValue: config.DefaultCachePrefix, Description: "Key prefix for the redis cache backend", BindTo: "cache.prefix"},
	{Name: "cache-ttl", DefaultValue: config.DefaultCacheTTL, Description: "Lifetime of cached explanations", BindTo: "cache.ttl"},
	{Name: "cache-max-items", DefaultValue: int64(config.DefaultCacheMaxItems), Description: "Capacity of the memory cache", BindTo: "cache.max-items"},

	// Knowledge base
	{Name: "knowledge-path", DefaultValue: "", Description: "Knowledge base JSON file replacing the embedded catalog", BindTo: "knowledge.path"},

	// Logging
	{Name: "log-level", DefaultValue: config.DefaultLogLevel, Description: "Log level (debug, info, warn, error, fatal)", BindTo: "log.level"},
	{Name: "log-format", DefaultValue: config.DefaultLogFormat, Description: "Log format (text, json)", BindTo: "log.format"},
}

// registerFlags adds every flag to cmd's persistent set so subcommands share them
func registerFlags(cmd *cobra.Command) error {
	fs := cmd.PersistentFlags()
	for _, flag := range flags {
		switch v := flag.DefaultValue.(type) {
		case string:
			fs.String(flag.Name, v, flag.Description)
		case int:
			fs.Int(flag.Name, v, flag.Description)
		case int64:
			fs.Int64(flag.Name, v, flag.Description)
		case bool:
			fs.Bool(flag.Name, v, flag.Description)
		case time.Duration:
			fs.Duration(flag.Name, v, flag.Description)
		default:
			return fmt.Errorf("unsupported flag type: %T for flag %s", v, flag.Name)
		}

		if err := viper.BindPFlag(flag.BindTo, fs.Lookup(flag.Name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	return nil
}
