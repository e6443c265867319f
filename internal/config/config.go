package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/blacktop/blogrelay/internal/dedupe"
	"github.com/blacktop/blogrelay/internal/relay"
	"github.com/blacktop/blogrelay/internal/relay/dispatch"
	"github.com/blacktop/blogrelay/internal/relay/facebook"
	"github.com/blacktop/blogrelay/internal/relay/graph"
	"github.com/blacktop/blogrelay/internal/relay/pipeline"
	"github.com/blacktop/blogrelay/internal/relay/sanity"
	"github.com/blacktop/blogrelay/internal/server"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvFiles are loaded, when present, before the process environment is read.
// Variables already set in the environment win.
var EnvFiles = []string{".env", ".env.local"}

// Config is the complete relay configuration.
type Config struct {
	Graph     Graph           `yaml:"graph"`
	Facebook  Facebook        `yaml:"facebook"`
	Instagram Instagram       `yaml:"instagram"`
	Sanity    Sanity          `yaml:"sanity"`
	Site      Site            `yaml:"site"`
	Server    Server          `yaml:"server"`
	Policy    pipeline.Policy `yaml:"policy"`
	Log       Log             `yaml:"log"`
}

// Graph configures the Graph API transport. Secrets only come from the environment.
type Graph struct {
	BaseURL       string        `yaml:"base_url"`
	Version       string        `yaml:"version"`
	Timeout       time.Duration `yaml:"timeout"`
	LookupRetries int           `yaml:"lookup_retries"`
	Token         string        `yaml:"-"`
	AppSecret     string        `yaml:"-"`
}

type Facebook struct {
	PageID   string   `yaml:"page_id"`
	Denylist []string `yaml:"denylist"`
}

type Instagram struct {
	AccountID string `yaml:"account_id"`
	PageID    string `yaml:"page_id"`
}

type Sanity struct {
	ProjectID     string `yaml:"project_id"`
	Dataset       string `yaml:"dataset"`
	CDNBaseURL    string `yaml:"cdn_base_url"`
	WebhookSecret string `yaml:"-"`
}

type Site struct {
	BaseURL      string `yaml:"base_url"`
	CallToAction string `yaml:"call_to_action"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	DedupeTTL       time.Duration `yaml:"dedupe_ttl"`
	RedisURL        string        `yaml:"redis_url"`
	Sequential      bool          `yaml:"sequential"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Variables required by each entry point.
var (
	ServeVars = []string{"META_ACCESS_TOKEN", "FACEBOOK_PAGE_ID", "INSTAGRAM_BUSINESS_ACCOUNT_ID", "SITE_BASE_URL", "SANITY_PROJECT_ID", "SANITY_DATASET"}
	FeedVars  = []string{"META_ACCESS_TOKEN", "FACEBOOK_PAGE_ID"}
	MediaVars = []string{"META_ACCESS_TOKEN", "INSTAGRAM_BUSINESS_ACCOUNT_ID"}
	PagesVars = []string{"META_ACCESS_TOKEN"}
)

// Require reports every variable in vars that has no value, in a single MissingEnvError.
func (c Config) Require(vars ...string) error {
	values := map[string]string{
		"META_ACCESS_TOKEN":             c.Graph.Token,
		"FACEBOOK_PAGE_ID":              c.Facebook.PageID,
		"INSTAGRAM_BUSINESS_ACCOUNT_ID": c.Instagram.AccountID,
		"SITE_BASE_URL":                 c.Site.BaseURL,
		"SANITY_PROJECT_ID":             c.Sanity.ProjectID,
		"SANITY_DATASET":                c.Sanity.Dataset,
	}
	var missing []string
	for _, v := range vars {
		if strings.TrimSpace(values[v]) == "" {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		return relay.MissingEnvError{Provider: "config", Variables: missing}
	}
	return nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Graph: Graph{
			BaseURL:       graph.DefaultBaseURL,
			Version:       graph.DefaultVersion,
			Timeout:       30 * time.Second,
			LookupRetries: 2,
		},
		Facebook: Facebook{Denylist: append([]string(nil), facebook.DefaultDenylist...)},
		Sanity:   Sanity{CDNBaseURL: sanity.DefaultCDNBaseURL},
		Site:     Site{CallToAction: dispatch.DefaultCallToAction},
		Server: Server{
			Addr:            server.DefaultAddr,
			DispatchTimeout: server.DefaultDispatchTimeout,
			DedupeTTL:       dedupe.DefaultTTL,
		},
		Policy: pipeline.DefaultPolicy(),
		Log:    Log{Level: "info"},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path,
// local .env files and the environment, in increasing order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	loadEnvFiles()

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles() {
	for _, file := range EnvFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		// Load never overrides variables that are already set.
		_ = godotenv.Load(file)
	}
}

func (c *Config) applyEnv() error {
	e := &envReader{}

	e.str("META_ACCESS_TOKEN", &c.Graph.Token)
	e.str("META_APP_SECRET", &c.Graph.AppSecret)
	e.str("GRAPH_BASE_URL", &c.Graph.BaseURL)
	e.str("FACEBOOK_DEFAULT_GRAPH_VERSION", &c.Graph.Version)
	e.duration("RELAY_HTTP_TIMEOUT", &c.Graph.Timeout)

	e.str("FACEBOOK_PAGE_ID", &c.Facebook.PageID)
	e.list("RELAY_FEED_DENYLIST", &c.Facebook.Denylist)

	e.str("INSTAGRAM_BUSINESS_ACCOUNT_ID", &c.Instagram.AccountID)
	e.str("INSTAGRAM_PAGE_ID", &c.Instagram.PageID)

	e.str("SANITY_PROJECT_ID", &c.Sanity.ProjectID)
	e.str("SANITY_DATASET", &c.Sanity.Dataset)
	e.str("SANITY_WEBHOOK_SECRET", &c.Sanity.WebhookSecret)

	e.str("SITE_BASE_URL", &c.Site.BaseURL)
	e.str("INSTAGRAM_CALL_TO_ACTION", &c.Site.CallToAction)

	e.str("RELAY_LISTEN_ADDR", &c.Server.Addr)
	e.duration("RELAY_DISPATCH_TIMEOUT", &c.Server.DispatchTimeout)
	e.duration("RELAY_DEDUPE_TTL", &c.Server.DedupeTTL)
	e.str("REDIS_URL", &c.Server.RedisURL)

	e.boolean("RELAY_IMAGE_FAST_PATH", &c.Policy.ImageFastPath)
	e.duration("RELAY_IMAGE_DELAY", &c.Policy.ImageDelay)
	var attempts int
	if e.integer("RELAY_POLL_MAX_ATTEMPTS", &attempts) {
		for _, w := range []*pipeline.WaitPolicy{&c.Policy.Image, &c.Policy.Video, &c.Policy.Story, &c.Policy.Reel, &c.Policy.Carousel} {
			w.MaxAttempts = attempts
		}
	}

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(e.errs...)
}

type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	value = strings.TrimSpace(value)
	return value, ok && value != ""
}

func (e *envReader) str(key string, dst *string) {
	if value, ok := e.lookup(key); ok {
		*dst = value
	}
}

func (e *envReader) list(key string, dst *[]string) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (e *envReader) duration(key string, dst *time.Duration) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (e *envReader) boolean(key string, dst *bool) {
	value, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (e *envReader) integer(key string, dst *int) bool {
	value, ok := e.lookup(key)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return false
	}
	*dst = n
	return true
}
