package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"newslettersync_go/htmltext"
	"newslettersync_go/linkfinder"
	"newslettersync_go/pipeline"
)

const (
	// ConfigFileEnv points at an optional YAML file.
	ConfigFileEnv = "NEWSLETTERSYNC_CONFIG"

	DefaultDatabaseURL = "newslettersync.db"
	DefaultUserID      = "default"
	DefaultModel       = "gpt-4o-mini"
	DefaultMaxResults  = 20
	DefaultBatchSize   = 5
	DefaultLLMTimeout  = 30 * time.Second
)

// DefaultSenders seed the Gmail query until publishers are stored.
var DefaultSenders = []string{
	"nl@email.vestedfinance.com",
	"bytebytego@substack.com",
}

type Config struct {
	UserID      string            `mapstructure:"user_id"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Gmail       GmailConfig       `mapstructure:"gmail"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Log         LogConfig         `mapstructure:"log"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	Links       LinksConfig       `mapstructure:"links"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	// BaseURL selects any OpenAI-compatible endpoint.
	BaseURL    string        `mapstructure:"base_url"`
	ModelSmall string        `mapstructure:"model_small"`
	ModelLink  string        `mapstructure:"model_link"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type GmailConfig struct {
	Query      string        `mapstructure:"query"`
	Senders    []string      `mapstructure:"senders"`
	MaxResults int64         `mapstructure:"max_results"`
	BatchSize  int           `mapstructure:"batch_size"`
	Lookback   time.Duration `mapstructure:"lookback"` // 0 means no after: bound
}

type CredentialsConfig struct {
	Dir        string `mapstructure:"dir"`
	Passphrase string `mapstructure:"passphrase"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type PipelineConfig struct {
	Vocabulary    []string `mapstructure:"vocabulary"`
	FooterMarkers []string `mapstructure:"footer_markers"`
}

// LinksConfig overrides linkfinder.DefaultRules. Text markers are
// space-separated word groups.
type LinksConfig struct {
	ViewInBrowserPatterns []string `mapstructure:"view_in_browser_patterns"`
	ArticleLinkSubstrings []string `mapstructure:"article_link_substrings"`
	ArticleTextMarkers    []string `mapstructure:"article_text_markers"`
	BoilerplatePrefixes   []string `mapstructure:"boilerplate_prefixes"`
	MinHeadlineLength     int      `mapstructure:"min_headline_length"`
	HeadingAnchors        bool     `mapstructure:"heading_anchors"`
}

// Load reads .env, then defaults, the optional YAML file named by
// NEWSLETTERSYNC_CONFIG and the environment, later sources winning. Nested
// keys map to upper-case env names with "_" for ".", e.g. OPENAI_API_KEY.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Gmail.Senders = splitList(cfg.Gmail.Senders)
	cfg.Pipeline.Vocabulary = lower(splitList(cfg.Pipeline.Vocabulary))
	cfg.Pipeline.FooterMarkers = splitList(cfg.Pipeline.FooterMarkers)
	cfg.Links.ArticleLinkSubstrings = splitList(cfg.Links.ArticleLinkSubstrings)
	cfg.Links.ArticleTextMarkers = splitList(cfg.Links.ArticleTextMarkers)
	cfg.Links.BoilerplatePrefixes = lower(splitList(cfg.Links.BoilerplatePrefixes))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	rules := linkfinder.DefaultRules()
	markers := make([]string, 0, len(rules.ArticleTextMarkers))
	for _, words := range rules.ArticleTextMarkers {
		markers = append(markers, strings.Join(words, " "))
	}

	v.SetDefault("user_id", DefaultUserID)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model_small", DefaultModel)
	v.SetDefault("openai.model_link", "")
	v.SetDefault("openai.timeout", DefaultLLMTimeout)

	v.SetDefault("gmail.query", "")
	v.SetDefault("gmail.senders", DefaultSenders)
	v.SetDefault("gmail.max_results", DefaultMaxResults)
	v.SetDefault("gmail.batch_size", DefaultBatchSize)
	v.SetDefault("gmail.lookback", time.Duration(0))

	v.SetDefault("credentials.dir", "")
	v.SetDefault("credentials.passphrase", "")

	v.SetDefault("database.url", DefaultDatabaseURL)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("pipeline.vocabulary", pipeline.DefaultVocabulary)
	v.SetDefault("pipeline.footer_markers", htmltext.DefaultFooterMarkers)

	v.SetDefault("links.view_in_browser_patterns", rules.ViewInBrowserPatterns)
	v.SetDefault("links.article_link_substrings", rules.ArticleLinkSubstrings)
	v.SetDefault("links.article_text_markers", markers)
	v.SetDefault("links.boilerplate_prefixes", rules.BoilerplatePrefixes)
	v.SetDefault("links.min_headline_length", rules.MinHeadlineLength)
	v.SetDefault("links.heading_anchors", rules.HeadingAnchors)
}

// LinkRules converts the links section for linkfinder.New.
func (c *Config) LinkRules() linkfinder.Rules {
	groups := make([][]string, 0, len(c.Links.ArticleTextMarkers))
	for _, m := range c.Links.ArticleTextMarkers {
		if words := strings.Fields(strings.ToLower(m)); len(words) > 0 {
			groups = append(groups, words)
		}
	}
	return linkfinder.Rules{
		ViewInBrowserPatterns: c.Links.ViewInBrowserPatterns,
		ArticleLinkSubstrings: c.Links.ArticleLinkSubstrings,
		ArticleTextMarkers:    groups,
		BoilerplatePrefixes:   c.Links.BoilerplatePrefixes,
		MinHeadlineLength:     c.Links.MinHeadlineLength,
		HeadingAnchors:        c.Links.HeadingAnchors,
	}
}

// RequireLLM reports a missing model API key.
func (c *Config) RequireLLM() error {
	if c.OpenAI.APIKey == "" {
		return errors.New("required environment variable OPENAI_API_KEY not set")
	}
	return nil
}

// RequireCredentials reports a missing credentials passphrase.
func (c *Config) RequireCredentials() error {
	if c.Credentials.Passphrase == "" {
		return errors.New("required environment variable CREDENTIALS_PASSPHRASE not set")
	}
	return nil
}

// splitList flattens comma-separated entries and drops blanks. Env values
// arrive as one comma-separated string.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func lower(in []string) []string {
	for i := range in {
		in[i] = strings.ToLower(in[i])
	}
	return in
}
