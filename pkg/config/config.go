package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
)

const (
	EnvToken      = "CLOUDFLARE_API_KEY"
	EnvDomainList = "CLOUDFLARE_URL_LIST"
	EnvConfigPath = "DDNS_CONFIG"

	CloudProviderCloudflare = "cloudflare"
	CloudProviderRoute53    = "route53"

	domainSeparator = ":"
)

// Config is everything a run needs. Zero values are filled by Default.
type Config struct {
	Token         string        `yaml:"token"`
	Domains       []string      `yaml:"domains"`
	CloudProvider string        `yaml:"cloudProvider"`
	IPProvider    string        `yaml:"ipProvider"`
	IPURL         string        `yaml:"ipURL"`
	BaseURL       string        `yaml:"baseURL"`
	AWSRegion     string        `yaml:"awsRegion"`
	Timeout       time.Duration `yaml:"timeout"`
	Ticker        time.Duration `yaml:"ticker"`
	MetricsAddr   string        `yaml:"metricsAddr"`
	FailFast      bool          `yaml:"failFast"`
	VerifyToken   bool          `yaml:"verifyToken"`
}

// ConfigError reports a missing or invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func Default() Config {
	return Config{
		CloudProvider: CloudProviderCloudflare,
		IPProvider:    "ipify",
		Timeout:       30 * time.Second,
		MetricsAddr:   ":8080",
	}
}

// LoadFile reads a YAML config on top of the defaults. ${VAR} references in
// the token and base url are expanded from the environment.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Field: path, Reason: fmt.Sprintf("parsing yaml: %v", err)}
	}

	cfg.Token = os.ExpandEnv(cfg.Token)
	cfg.BaseURL = os.ExpandEnv(cfg.BaseURL)
	cfg.Domains = cleanDomains(cfg.Domains)
	return cfg, nil
}

// ApplyEnv overrides the token and domain list with any set environment value.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.Token = v
	}
	if v, ok := lookup(EnvDomainList); ok && v != "" {
		c.Domains = ParseDomainList(v)
	}
}

func (c Config) Validate() error {
	switch c.CloudProvider {
	case CloudProviderCloudflare:
		if c.Token == "" {
			return &ConfigError{Field: EnvToken, Reason: "api token is required"}
		}
	case CloudProviderRoute53:
	default:
		return &ConfigError{Field: "cloud-provider", Reason: fmt.Sprintf("unsupported provider %q", c.CloudProvider)}
	}

	if len(c.Domains) == 0 {
		return &ConfigError{Field: EnvDomainList, Reason: "at least one domain is required"}
	}
	if c.Timeout <= 0 {
		return &ConfigError{Field: "timeout", Reason: "must be positive"}
	}
	if c.Ticker < 0 {
		return &ConfigError{Field: "ticker", Reason: "must not be negative"}
	}
	return nil
}

// ParseDomainList splits a colon separated list, dropping blank entries.
func ParseDomainList(s string) []string {
	return cleanDomains(strings.Split(s, domainSeparator))
}

func cleanDomains(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
