package wiki

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Default connection settings, matching a stock MediaWiki install.
const (
	DefaultAPIPath    = "/w/"
	DefaultScheme     = "https"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultUserAgent  = "WikiTemplatesUploader/1.0 (https://github.com/olgasafonova/wiki-templates-uploader)"
)

// Config holds MediaWiki connection settings
type Config struct {
	// Host is the wiki host without a scheme (e.g., wiki.example.com)
	Host string

	// APIPath is the script path that contains api.php (e.g., /w/)
	APIPath string

	// Scheme is "https" unless overridden (tests use "http")
	Scheme string

	// Username for bot password authentication
	Username string

	// Password for bot password authentication
	Password string

	// Timeout for API requests
	Timeout time.Duration

	// UserAgent identifies the client to the wiki
	UserAgent string

	// MaxRetries for failed requests
	MaxRetries int

	// BreakerThreshold is how many requests in a row may fail before the
	// client stops calling the wiki for BreakerCooldown. Zero selects the
	// breaker package defaults.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// NewConfig returns a config for host with default settings and no
// credentials.
func NewConfig(host string) *Config {
	return &Config{
		Host:       host,
		APIPath:    DefaultAPIPath,
		Scheme:     DefaultScheme,
		Timeout:    DefaultTimeout,
		UserAgent:  DefaultUserAgent,
		MaxRetries: DefaultMaxRetries,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigForHost("")
}

// LoadConfigForHost is LoadConfig with host taking precedence over
// MEDIAWIKI_HOST. Every other setting still comes from the environment.
func LoadConfigForHost(host string) (*Config, error) {
	if host == "" {
		host = os.Getenv("MEDIAWIKI_HOST")
	}
	if host == "" {
		return nil, errors.New("MEDIAWIKI_HOST environment variable is required")
	}

	config := NewConfig(host)
	config.APIPath = getEnvOrDefault("MEDIAWIKI_API_PATH", DefaultAPIPath)
	config.Scheme = getEnvOrDefault("MEDIAWIKI_SCHEME", DefaultScheme)
	config.Username = os.Getenv("MEDIAWIKI_USERNAME")
	config.Password = os.Getenv("MEDIAWIKI_PASSWORD")
	config.UserAgent = getEnvOrDefault("MEDIAWIKI_USER_AGENT", DefaultUserAgent)

	if t := os.Getenv("MEDIAWIKI_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			config.Timeout = d
		}
	}
	if r := os.Getenv("MEDIAWIKI_MAX_RETRIES"); r != "" {
		if n, err := strconv.Atoi(r); err == nil && n >= 0 {
			config.MaxRetries = n
		}
	}
	if v := os.Getenv("MEDIAWIKI_BREAKER_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.BreakerThreshold = n
		}
	}
	if v := os.Getenv("MEDIAWIKI_BREAKER_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.BreakerCooldown = d
		}
	}

	return config, nil
}

// HasCredentials returns true if authentication credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// APIURL returns the full api.php endpoint for the configured site.
func (c *Config) APIURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}

	host := strings.TrimSuffix(c.Host, "/")
	// Tolerate a pasted URL even though Host is documented without scheme
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}

	path := c.APIPath
	if path == "" {
		path = DefaultAPIPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return scheme + "://" + host + path + "api.php"
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
