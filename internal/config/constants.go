package config

import "time"

const (
	// MaxPort is the highest valid TCP port
	MaxPort = 65535

	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
	LogLevelFatal = "fatal"

	LogFormatJSON = "json"
	LogFormatText = "text"

	CacheBackendNone   = "none"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	DefaultHTTPHost = "localhost"
	DefaultHTTPPort = 8080

	DefaultMCPHost = "localhost"
	DefaultMCPPort = 8081

	DefaultLLMModel        = "gpt-4.1-mini"
	DefaultLLMMaxRetries   = 3
	DefaultLLMInitialDelay = time.Second
	DefaultLLMMaxDelay     = 30 * time.Second
	DefaultLLMTimeout      = 60 * time.Second

	DefaultCacheBackend  = CacheBackendMemory
	DefaultCacheTTL      = 24 * time.Hour
	DefaultCacheMaxItems = 10000
	DefaultCachePrefix   = "callplain"

	DefaultLogLevel  = LogLevelInfo
	DefaultLogFormat = LogFormatText

	// EnvPrefix prefixes every environment variable viper reads
	EnvPrefix = "CALLPLAIN"
)

// Validator is implemented by every config section
type Validator interface {
	Validate() error
}

var validLogLevels = map[string]bool{
	LogLevelDebug: true,
	LogLevelInfo:  true,
	LogLevelWarn:  true,
	LogLevelError: true,
	LogLevelFatal: true,
}

var validLogFormats = map[string]bool{
	LogFormatJSON: true,
	LogFormatText: true,
}

var validCacheBackends = map[string]bool{
	CacheBackendNone:   true,
	CacheBackendMemory: true,
	CacheBackendRedis:  true,
}
