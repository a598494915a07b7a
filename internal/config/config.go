// Package config loads coopchat settings from coopchat.yaml, COOPCHAT_*
// environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. COOPCHAT_LLM_MODEL.
const EnvPrefix = "COOPCHAT"

// Config is the full process configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
	PDF       PDFConfig       `mapstructure:"pdf"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Chat      ChatConfig      `mapstructure:"chat"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
}

// LLMConfig selects the generative model.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// EmbeddingConfig selects the embedding model.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
}

// KnowledgeConfig configures the knowledge base of both chatbots.
type KnowledgeConfig struct {
	Backend      string        `mapstructure:"backend"`
	DataPath     string        `mapstructure:"data_path"`
	TopK         int           `mapstructure:"top_k"`
	ChunkSize    int           `mapstructure:"chunk_size"`
	ChunkOverlap int           `mapstructure:"chunk_overlap"`
	BillingDir   string        `mapstructure:"billing_dir"`
	EmergencyDir string        `mapstructure:"emergency_dir"`
	Watch        bool          `mapstructure:"watch"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Chroma       ChromaConfig  `mapstructure:"chroma"`
}

// ChromaConfig locates a Chroma server.
type ChromaConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Scheme     string `mapstructure:"scheme"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
}

// URL returns the server base URL.
func (c ChromaConfig) URL() string {
	return c.Scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PDFConfig locates the PDF extraction service.
type PDFConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	ScriptDir  string `mapstructure:"script_dir"`
	Autostart  bool   `mapstructure:"autostart"`
}

// StorageConfig selects where conversations and records live.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ChatConfig tunes session handling.
type ChatConfig struct {
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	HistoryTurns int           `mapstructure:"history_turns"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DomainDir returns the knowledge directory of a chatbot domain.
func (k KnowledgeConfig) DomainDir(domain string) string {
	switch domain {
	case "billing":
		return k.BillingDir
	case "emergency":
		return k.EmergencyDir
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.base_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama3.2")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.base_url", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.api_key", "")

	v.SetDefault("knowledge.backend", "sqlite")
	v.SetDefault("knowledge.data_path", "./data")
	v.SetDefault("knowledge.top_k", 5)
	v.SetDefault("knowledge.chunk_size", 1000)
	v.SetDefault("knowledge.chunk_overlap", 200)
	v.SetDefault("knowledge.billing_dir", "./knowledge/billing")
	v.SetDefault("knowledge.emergency_dir", "./knowledge/emergency")
	v.SetDefault("knowledge.watch", false)
	v.SetDefault("knowledge.timeout", 10*time.Second)
	v.SetDefault("knowledge.chroma.host", "localhost")
	v.SetDefault("knowledge.chroma.port", 8000)
	v.SetDefault("knowledge.chroma.scheme", "http")
	v.SetDefault("knowledge.chroma.collection", "coopchat")
	v.SetDefault("knowledge.chroma.api_key", "")

	v.SetDefault("pdf.service_url", "http://localhost:5001")
	v.SetDefault("pdf.script_dir", "./scripts")
	v.SetDefault("pdf.autostart", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/coopchat.db")

	v.SetDefault("chat.session_ttl", 2*time.Hour)
	v.SetDefault("chat.history_turns", 10)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads the configuration. An explicit path must exist; otherwise
// coopchat.yaml is searched in the working directory and $HOME/.coopchat,
// and a missing file leaves the defaults in place. Environment variables
// override the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("coopchat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".coopchat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown providers and backends and non-positive sizes.
func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", ")))
	}
	positive := func(field string, value int) {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", field, value))
		}
	}

	oneOf("llm.provider", c.LLM.Provider, "ollama", "openai")
	oneOf("embedding.provider", c.Embedding.Provider, "ollama", "openai")
	oneOf("knowledge.backend", c.Knowledge.Backend, "memory", "sqlite", "chroma")
	oneOf("storage.driver", c.Storage.Driver, "memory", "sqlite")
	oneOf("log.format", c.Log.Format, "console", "json")

	positive("knowledge.top_k", c.Knowledge.TopK)
	positive("knowledge.chunk_size", c.Knowledge.ChunkSize)
	positive("chat.history_turns", c.Chat.HistoryTurns)
	if c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		errs = append(errs, fmt.Errorf("knowledge.chunk_overlap: must be in [0, chunk_size), got %d", c.Knowledge.ChunkOverlap))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout: must be positive"))
	}
	if c.Knowledge.Backend == "chroma" {
		positive("knowledge.chroma.port", c.Knowledge.Chroma.Port)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, fmt.Errorf("storage.path: required for sqlite"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
