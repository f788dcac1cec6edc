// Package config loads the application configuration from YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment variables that override file settings.
// Sections are separated by a double underscore:
//
//	DRIVERAG_VECTOR_INDEX__COLLECTION -> vector_index.collection
const EnvPrefix = "DRIVERAG_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// DriveConfig points at the service-account credentials for Google Drive.
type DriveConfig struct {
	CredentialsFile string `koanf:"credentials_file" yaml:"credentials_file"`
}

// LocalConfig roots a local directory source.
type LocalConfig struct {
	Root string `koanf:"root" yaml:"root"`
}

// SourceConfig selects the folder source: "drive" or "local".
type SourceConfig struct {
	Type  string      `koanf:"type" yaml:"type"`
	Drive DriveConfig `koanf:"drive" yaml:"drive"`
	Local LocalConfig `koanf:"local" yaml:"local"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	TokenLimit int    `koanf:"token_limit" yaml:"token_limit"`
	Encoding   string `koanf:"encoding" yaml:"encoding"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv         string  `koanf:"api_key_env" yaml:"api_key_env"`
	Model             string  `koanf:"model" yaml:"model"`
	Dimension         int     `koanf:"dimension" yaml:"dimension,omitempty"`
	RequestsPerSecond float64 `koanf:"requests_per_second" yaml:"requests_per_second"`
	Burst             int     `koanf:"burst" yaml:"burst"`
}

type HashingEmbedderConfig struct {
	Dimension int `koanf:"dimension" yaml:"dimension"`
}

// EmbedderConfig selects the embedder: "openai" or "hashing".
type EmbedderConfig struct {
	Type    string                `koanf:"type" yaml:"type"`
	OpenAI  OpenAIEmbedderConfig  `koanf:"openai" yaml:"openai"`
	Hashing HashingEmbedderConfig `koanf:"hashing" yaml:"hashing"`
}

// QdrantConfig contains connection details for a Qdrant server.
type QdrantConfig struct {
	Host   string `koanf:"host" yaml:"host"`
	Port   int    `koanf:"port" yaml:"port"`
	APIKey string `koanf:"api_key" yaml:"api_key"`
	UseTLS bool   `koanf:"use_tls" yaml:"use_tls"`
}

type ChromemConfig struct {
	Path     string `koanf:"path" yaml:"path"`
	Compress bool   `koanf:"compress" yaml:"compress"`
}

// VectorIndexConfig selects the backend, "qdrant" or "chromem", and the
// collection all commands operate on.
type VectorIndexConfig struct {
	Type                string        `koanf:"type" yaml:"type"`
	Collection          string        `koanf:"collection" yaml:"collection"`
	Distance            string        `koanf:"distance" yaml:"distance"`
	ContentAddressedIDs bool          `koanf:"content_addressed_ids" yaml:"content_addressed_ids"`
	BatchSize           int           `koanf:"batch_size" yaml:"batch_size"`
	Qdrant              QdrantConfig  `koanf:"qdrant" yaml:"qdrant"`
	Chromem             ChromemConfig `koanf:"chromem" yaml:"chromem"`
}

type SearchConfig struct {
	Limit int `koanf:"limit" yaml:"limit"`
}

type OpenAIAnswerConfig struct {
	BaseURL   string `koanf:"base_url" yaml:"base_url"`
	APIKeyEnv string `koanf:"api_key_env" yaml:"api_key_env"`
	Model     string `koanf:"model" yaml:"model"`
}

type ExtractiveAnswerConfig struct {
	MaxSentences int `koanf:"max_sentences" yaml:"max_sentences"`
}

// AnswerConfig selects the answerer: "openai" or "extractive".
type AnswerConfig struct {
	Type       string                 `koanf:"type" yaml:"type"`
	OpenAI     OpenAIAnswerConfig     `koanf:"openai" yaml:"openai"`
	Extractive ExtractiveAnswerConfig `koanf:"extractive" yaml:"extractive"`
}

type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `koanf:"addr" yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Source      SourceConfig      `koanf:"source" yaml:"source"`
	Chunker     ChunkerConfig     `koanf:"chunker" yaml:"chunker"`
	Embedder    EmbedderConfig    `koanf:"embedder" yaml:"embedder"`
	VectorIndex VectorIndexConfig `koanf:"vector_index" yaml:"vector_index"`
	Search      SearchConfig      `koanf:"search" yaml:"search"`
	Answer      AnswerConfig      `koanf:"answer" yaml:"answer"`
	Log         LogConfig         `koanf:"log" yaml:"log"`
	Metrics     MetricsConfig     `koanf:"metrics" yaml:"metrics"`
}

// Load reads a config from path over the defaults and applies environment
// overrides. A missing file yields the defaults, still subject to overrides.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/driverag/config.yaml.
// If neither exists, it writes defaults to ~/.config/driverag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// envKey maps DRIVERAG_VECTOR_INDEX__QDRANT__HOST to vector_index.qdrant.host.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "driverag", "config.yaml"), nil
}

// Default returns the configuration used when no file exists.
func Default() *AppConfig {
	cfg := &AppConfig{
		Source:      SourceConfig{Type: "drive", Drive: DriveConfig{CredentialsFile: "credentials.json"}},
		Embedder:    EmbedderConfig{Type: "openai"},
		VectorIndex: VectorIndexConfig{Type: "qdrant"},
		Answer:      AnswerConfig{Type: "openai"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Source.Local.Root == "" {
		cfg.Source.Local.Root = "."
	}
	if cfg.Chunker.TokenLimit == 0 {
		cfg.Chunker.TokenLimit = 200
	}
	if cfg.Chunker.Encoding == "" {
		cfg.Chunker.Encoding = "cl100k_base"
	}

	oe := &cfg.Embedder.OpenAI
	if oe.BaseURL == "" {
		oe.BaseURL = "https://api.openai.com/v1"
	}
	if oe.APIKeyEnv == "" {
		oe.APIKeyEnv = "OPENAI_API_KEY"
	}
	if oe.Model == "" {
		oe.Model = "text-embedding-ada-002"
	}
	if cfg.Embedder.Hashing.Dimension == 0 {
		cfg.Embedder.Hashing.Dimension = 512
	}

	vi := &cfg.VectorIndex
	if vi.Collection == "" {
		vi.Collection = "documents"
	}
	if vi.Distance == "" {
		vi.Distance = "cosine"
	}
	if vi.BatchSize == 0 {
		vi.BatchSize = 64
	}
	if vi.Qdrant.Host == "" {
		vi.Qdrant.Host = "localhost"
	}
	if vi.Qdrant.Port == 0 {
		vi.Qdrant.Port = 6334
	}

	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = 3
	}

	oa := &cfg.Answer.OpenAI
	if oa.BaseURL == "" {
		oa.BaseURL = "https://api.openai.com/v1"
	}
	if oa.APIKeyEnv == "" {
		oa.APIKeyEnv = "OPENAI_API_KEY"
	}
	if oa.Model == "" {
		oa.Model = "gpt-3.5-turbo"
	}
	if cfg.Answer.Extractive.MaxSentences == 0 {
		cfg.Answer.Extractive.MaxSentences = 2
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate reports the first setting that cannot be used.
func (c *AppConfig) Validate() error {
	check := func(field, value string, allowed ...string) error {
		for _, a := range allowed {
			if value == a {
				return nil
			}
		}
		return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalidConfig, field, strings.Join(allowed, "|"), value)
	}
	if err := check("source.type", c.Source.Type, "drive", "local"); err != nil {
		return err
	}
	if c.Source.Type == "drive" && c.Source.Drive.CredentialsFile == "" {
		return fmt.Errorf("%w: source.drive.credentials_file is required", ErrInvalidConfig)
	}
	if err := check("embedder.type", c.Embedder.Type, "openai", "hashing"); err != nil {
		return err
	}
	if err := check("vector_index.type", c.VectorIndex.Type, "qdrant", "chromem"); err != nil {
		return err
	}
	if err := check("vector_index.distance", strings.ToLower(c.VectorIndex.Distance), "cosine", "dot", "euclid", "euclidean"); err != nil {
		return err
	}
	if err := check("answer.type", c.Answer.Type, "openai", "extractive"); err != nil {
		return err
	}
	if err := check("log.format", c.Log.Format, "console", "json"); err != nil {
		return err
	}
	switch {
	case c.Chunker.TokenLimit < 1:
		return fmt.Errorf("%w: chunker.token_limit must be at least 1", ErrInvalidConfig)
	case c.VectorIndex.BatchSize < 1:
		return fmt.Errorf("%w: vector_index.batch_size must be at least 1", ErrInvalidConfig)
	case c.Search.Limit < 1:
		return fmt.Errorf("%w: search.limit must be at least 1", ErrInvalidConfig)
	case c.Embedder.Hashing.Dimension < 1:
		return fmt.Errorf("%w: embedder.hashing.dimension must be at least 1", ErrInvalidConfig)
	}
	return nil
}
