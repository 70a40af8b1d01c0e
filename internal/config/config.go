package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Config is the complete application configuration
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	Log       LogConfig       `mapstructure:"log"`
}

// HTTPConfig configures the REST API server
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Validate checks the HTTP section
func (c *HTTPConfig) Validate() error {
	return validateAddress("http", c.Host, c.Port)
}

// Address returns host:port
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// MCPConfig configures the optional MCP server
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Validate checks the MCP section; a disabled server is always valid
func (c *MCPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return validateAddress("mcp", c.Host, c.Port)
}

// Address returns host:port
func (c *MCPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func validateAddress(section, host string, port int) error {
	if host == "" {
		return fmt.Errorf("%s-host is required", section)
	}
	if port <= 0 || port > MaxPort {
		return fmt.Errorf("%s-port must be between 1 and %d", section, MaxPort)
	}
	return nil
}

// LLMConfig configures the explanation model. An empty API key disables explanations.
type LLMConfig struct {
	APIKey       string        `mapstructure:"api-key"`
	Model        string        `mapstructure:"model"`
	MaxRetries   int           `mapstructure:"max-retries"`
	InitialDelay time.Duration `mapstructure:"initial-delay"`
	MaxDelay     time.Duration `mapstructure:"max-delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether an API key is configured
func (c *LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// Validate checks the LLM section
func (c *LLMConfig) Validate() error {
	if c.Model == "" {
		c.Model = DefaultLLMModel
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("llm-max-retries must not be negative")
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("llm-initial-delay must be positive")
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("llm-max-delay must be at least llm-initial-delay")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("llm-timeout must not be negative")
	}
	return nil
}

// CacheConfig configures the explanation cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"`
	RedisAddr string        `mapstructure:"redis-addr"`
	Prefix    string        `mapstructure:"prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
	MaxItems  int64         `mapstructure:"max-items"`
}

// Validate checks the cache section
func (c *CacheConfig) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = DefaultCacheBackend
	}
	if !validCacheBackends[c.Backend] {
		return fmt.Errorf("cache-backend must be one of: none, memory, redis, got: %s", c.Backend)
	}
	if c.Backend == CacheBackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("cache-redis-addr is required for the redis backend")
	}
	if c.Backend == CacheBackendMemory && c.MaxItems <= 0 {
		return fmt.Errorf("cache-max-items must be positive")
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache-ttl must not be negative")
	}
	return nil
}

// KnowledgeConfig points at an optional knowledge base file replacing the embedded one
type KnowledgeConfig struct {
	Path string `mapstructure:"path"`
}

// Validate checks the knowledge section
func (c *KnowledgeConfig) Validate() error {
	c.Path = strings.TrimSpace(c.Path)
	return nil
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks the log section
func (c *LogConfig) Validate() error {
	if !validLogLevels[strings.ToLower(c.Level)] {
		return fmt.Errorf("log-level must be one of: debug, info, warn, error, fatal, got: %s", c.Level)
	}
	if !validLogFormats[strings.ToLower(c.Format)] {
		return fmt.Errorf("log-format must be one of: json, text, got: %s", c.Format)
	}
	return nil
}

// Validate fills defaults and checks every section
func (c *Config) Validate() error {
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	validators := []Validator{&c.HTTP, &c.MCP, &c.LLM, &c.Cache, &c.Knowledge, &c.Log}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// String returns a summary safe to log
func (c *Config) String() string {
	apiKey := "[NONE]"
	if c.LLM.Enabled() {
		apiKey = "[REDACTED]"
	}
	return fmt.Sprintf(
		"HTTP: {Host: %s, Port: %d}, "+
			"MCP: {Enabled: %t, Host: %s, Port: %d}, "+
			"LLM: {Model: %s, APIKey: %s, MaxRetries: %d}, "+
			"Cache: {Backend: %s, RedisAddr: %s, TTL: %s}, "+
			"Knowledge: {Path: %q}, "+
			"Log: {Level: %s, Format: %s}",
		c.HTTP.Host, c.HTTP.Port,
		c.MCP.Enabled, c.MCP.Host, c.MCP.Port,
		c.LLM.Model, apiKey, c.LLM.MaxRetries,
		c.Cache.Backend, c.Cache.RedisAddr, c.Cache.TTL,
		c.Knowledge.Path,
		c.Log.Level, c.Log.Format,
	)
}
