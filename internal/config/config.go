/*
Package config loads the runtime configuration.

Values start from built-in defaults, are replaced by the YAML file named in
RIPPLE_CONFIG when set, and finally by environment variables. The result
is validated before use.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/OFFIS-RIT/ripple/internal/util"
	"github.com/OFFIS-RIT/ripple/pkg/common"
	"github.com/OFFIS-RIT/ripple/pkg/discovery"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"
)

const FileEnv = "RIPPLE_CONFIG"

type Config struct {
	Debug   bool   `yaml:"debug"`
	LogJSON bool   `yaml:"log_json"`
	Port    string `yaml:"port" validate:"required,numeric"`

	Corpus    CorpusConfig    `yaml:"corpus"`
	AI        AIConfig        `yaml:"ai"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	S3        S3Config        `yaml:"s3"`
	Queue     QueueConfig     `yaml:"queue"`
	Auth      AuthConfig      `yaml:"auth"`
}

// CorpusConfig selects where articles are loaded from.
type CorpusConfig struct {
	Source string `yaml:"source" validate:"oneof=file s3 postgres"`
	Path   string `yaml:"path"`
	Prefix string `yaml:"prefix"`
}

type AIConfig struct {
	// Adapter is the model backend. "none" runs without a classifier and
	// every discovery yields no relationships.
	Adapter        string        `yaml:"adapter" validate:"oneof=openai ollama gemini none"`
	ChatModel      string        `yaml:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	ChatURL        string        `yaml:"chat_url"`
	ChatKey        string        `yaml:"chat_key"`
	EmbeddingURL   string        `yaml:"embedding_url"`
	EmbeddingKey   string        `yaml:"embedding_key"`
	Temperature    float64       `yaml:"temperature" validate:"gte=0,lte=2"`
	Timeout        time.Duration `yaml:"timeout" validate:"gt=0"`
	Retries        int           `yaml:"retries" validate:"gte=0"`
	Parallel       int64         `yaml:"parallel_requests" validate:"gte=1"`
}

type DiscoveryConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	TemporalWindowDays  int     `yaml:"temporal_window_days" validate:"gte=1"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`
	FullScan            bool    `yaml:"full_scan"`
	BatchSize           int     `yaml:"batch_size" validate:"gte=1"`
	MaxRelationships    int     `yaml:"max_relationships" validate:"gte=1"`
	ParallelBatches     int     `yaml:"parallel_batches" validate:"gte=1"`
	ParallelArticles    int     `yaml:"parallel_articles" validate:"gte=1"`
	// RateLimit is classifier calls per second; zero disables limiting.
	RateLimit     float64 `yaml:"rate_limit" validate:"gte=0"`
	MaxChainDepth int     `yaml:"max_chain_depth" validate:"gte=1"`
}

type CacheConfig struct {
	Backend string        `yaml:"backend" validate:"oneof=memory badger none"`
	Dir     string        `yaml:"dir"`
	TTL     time.Duration `yaml:"ttl" validate:"gt=0"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
}

type QueueConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// URL returns the AMQP connection string, or "" when no host is set.
func (q QueueConfig) URL() string {
	if q.Host == "" {
		return ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.Host, q.Port)
}

type AuthConfig struct {
	// URL is the auth service base; JWKS are fetched from URL + "/jwks".
	// Empty disables authentication.
	URL          string `yaml:"url"`
	MasterAPIKey string `yaml:"master_api_key"`
}

func Default() Config {
	d := discovery.DefaultConfig()
	return Config{
		Port:   "8080",
		Corpus: CorpusConfig{Source: "file", Path: "articles.json"},
		AI: AIConfig{
			Adapter:        "openai",
			ChatModel:      "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
			Temperature:    0.3,
			Timeout:        d.BatchTimeout,
			Retries:        3,
			Parallel:       8,
		},
		Discovery: DiscoveryConfig{
			ConfidenceThreshold: d.ConfidenceThreshold,
			TemporalWindowDays:  int(d.Selector.TemporalWindow / (24 * time.Hour)),
			SimilarityThreshold: d.Selector.SimilarityThreshold,
			FullScan:            d.Selector.FullScan,
			BatchSize:           d.BatchSize,
			MaxRelationships:    d.MaxRelationships,
			ParallelBatches:     d.ParallelBatches,
			ParallelArticles:    4,
			RateLimit:           d.RateLimit,
			MaxChainDepth:       5,
		},
		Cache:    CacheConfig{Backend: "memory", Dir: "data/cache", TTL: 3600 * time.Second},
		Database: DatabaseConfig{MigrationsDir: "migrations"},
		Queue:    QueueConfig{Port: "5672"},
	}
}

// Load builds the configuration from defaults, the optional YAML file and
// the environment.
func Load() (Config, error) {
	cfg := Default()
	if path := util.GetEnv(FileEnv); path != "" {
		if err := cfg.readFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: failed to read config file: %v", common.ErrConfiguration, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: failed to parse config file %s: %v", common.ErrConfiguration, path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Debug = util.GetEnvBool("DEBUG", c.Debug)
	c.LogJSON = util.GetEnvBool("LOG_JSON", c.LogJSON)
	c.Port = util.GetEnvString("PORT", c.Port)

	c.Corpus.Source = util.GetEnvString("CORPUS_SOURCE", c.Corpus.Source)
	c.Corpus.Path = util.GetEnvString("CORPUS_PATH", c.Corpus.Path)
	c.Corpus.Prefix = util.GetEnvString("CORPUS_PREFIX", c.Corpus.Prefix)

	c.AI.Adapter = util.GetEnvString("AI_ADAPTER", c.AI.Adapter)
	c.AI.ChatModel = util.GetEnvString("AI_CHAT_MODEL", c.AI.ChatModel)
	c.AI.EmbeddingModel = util.GetEnvString("AI_EMBED_MODEL", c.AI.EmbeddingModel)
	c.AI.ChatURL = util.GetEnvString("AI_CHAT_URL", c.AI.ChatURL)
	c.AI.ChatKey = util.GetEnvString("AI_CHAT_KEY", c.AI.ChatKey)
	c.AI.EmbeddingURL = util.GetEnvString("AI_EMBED_URL", c.AI.EmbeddingURL)
	c.AI.EmbeddingKey = util.GetEnvString("AI_EMBED_KEY", c.AI.EmbeddingKey)
	c.AI.Temperature = util.GetEnvNumeric("AI_TEMPERATURE", c.AI.Temperature)
	c.AI.Timeout = util.GetEnvDuration("AI_TIMEOUT", c.AI.Timeout)
	c.AI.Retries = util.GetEnvInt("AI_RETRIES", c.AI.Retries)
	c.AI.Parallel = int64(util.GetEnvInt("AI_PARALLEL_REQUESTS", int(c.AI.Parallel)))

	d := &c.Discovery
	d.ConfidenceThreshold = util.GetEnvNumeric("CONFIDENCE_THRESHOLD", d.ConfidenceThreshold)
	d.TemporalWindowDays = util.GetEnvInt("TEMPORAL_WINDOW_DAYS", d.TemporalWindowDays)
	d.SimilarityThreshold = util.GetEnvNumeric("SIMILARITY_THRESHOLD", d.SimilarityThreshold)
	d.FullScan = util.GetEnvBool("FULL_SCAN", d.FullScan)
	d.BatchSize = util.GetEnvInt("BATCH_SIZE", d.BatchSize)
	d.MaxRelationships = util.GetEnvInt("MAX_RELATIONSHIPS", d.MaxRelationships)
	d.ParallelBatches = util.GetEnvInt("PARALLEL_BATCHES", d.ParallelBatches)
	d.ParallelArticles = util.GetEnvInt("PARALLEL_ARTICLES", d.ParallelArticles)
	d.RateLimit = util.GetEnvNumeric("CLASSIFIER_RATE", d.RateLimit)
	d.MaxChainDepth = util.GetEnvInt("MAX_CHAIN_DEPTH", d.MaxChainDepth)

	c.Cache.Backend = util.GetEnvString("CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Dir = util.GetEnvString("CACHE_DIR", c.Cache.Dir)
	c.Cache.TTL = util.GetEnvDuration("CACHE_TTL", c.Cache.TTL)

	c.Database.URL = util.GetEnvString("DATABASE_URL", c.Database.URL)
	c.Database.MigrationsDir = util.GetEnvString("MIGRATIONS_DIR", c.Database.MigrationsDir)

	c.S3.Region = util.GetEnvString("AWS_REGION", c.S3.Region)
	c.S3.Endpoint = util.GetEnvString("AWS_ENDPOINT", c.S3.Endpoint)
	c.S3.AccessKey = util.GetEnvString("AWS_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = util.GetEnvString("AWS_SECRET_KEY", c.S3.SecretKey)
	c.S3.Bucket = util.GetEnvString("AWS_BUCKET", c.S3.Bucket)

	c.Queue.Host = util.GetEnvString("RABBITMQ_HOST", c.Queue.Host)
	c.Queue.Port = util.GetEnvString("RABBITMQ_PORT", c.Queue.Port)
	c.Queue.User = util.GetEnvString("RABBITMQ_USER", c.Queue.User)
	c.Queue.Password = util.GetEnvString("RABBITMQ_PASSWORD", c.Queue.Password)

	c.Auth.URL = util.GetEnvString("AUTH_URL", c.Auth.URL)
	c.Auth.MasterAPIKey = util.GetEnvString("MASTER_API_KEY", c.Auth.MasterAPIKey)
}

var validate = validator.New()

// Validate checks field ranges and the settings each selected backend
// needs. All failures wrap common.ErrConfiguration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}

	var errs []error
	switch c.AI.Adapter {
	case "openai", "gemini":
		if c.AI.ChatKey == "" {
			errs = append(errs, fmt.Errorf("adapter %s needs AI_CHAT_KEY", c.AI.Adapter))
		}
	}
	switch c.Corpus.Source {
	case "file":
		if c.Corpus.Path == "" {
			errs = append(errs, errors.New("file corpus needs CORPUS_PATH"))
		}
	case "s3":
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("s3 corpus needs AWS_BUCKET"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("postgres corpus needs DATABASE_URL"))
		}
	}
	if c.Cache.Backend == "badger" && c.Cache.Dir == "" {
		errs = append(errs, errors.New("badger cache needs CACHE_DIR"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfiguration, err)
	}
	return nil
}

// DiscoveryConfig converts the discovery settings for the engine.
func (c Config) DiscoveryConfig() discovery.Config {
	d := c.Discovery
	return discovery.Config{
		ConfidenceThreshold: d.ConfidenceThreshold,
		BatchSize:           d.BatchSize,
		MaxRelationships:    d.MaxRelationships,
		ParallelBatches:     d.ParallelBatches,
		BatchTimeout:        c.AI.Timeout,
		RateLimit:           d.RateLimit,
		Selector: discovery.SelectorConfig{
			TemporalWindow:      time.Duration(d.TemporalWindowDays) * 24 * time.Hour,
			SimilarityThreshold: d.SimilarityThreshold,
			FullScan:            d.FullScan,
		},
	}
}
