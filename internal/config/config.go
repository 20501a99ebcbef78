package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Jira configuration
	JiraURL           string        // Required: base URL of the Jira instance
	JiraUsername      string        // Cloud: account email used with JiraAPIToken
	JiraAPIToken      string        // Cloud: API token (basic auth)
	JiraPersonalToken string        // Server/DC: personal access token (bearer auth)
	JiraIsCloud       bool          // From JIRA_IS_CLOUD, otherwise detected from JiraURL
	ProjectsFilter    string        // Default comma-separated project keys applied to searches
	SSLVerify         bool          // Verify the Jira TLS certificate
	Timeout           time.Duration // Per request timeout
	RetryMaxElapsed   time.Duration // Upper bound for retrying transient Jira failures

	// HTTP server
	HTTPAddr string

	// Slack configuration
	SlackSigningSecret string // Required for the /slack routes to accept requests

	// S3 configuration for personal token storage
	TokenBucketName string
	TokenEncryptKey string // 32 bytes for AES-256

	// Log level
	LogLevel string
}

var (
	// instance holds the singleton config instance
	instance *Config
)

// Get returns the singleton config instance
func Get() *Config {
	if instance == nil {
		panic("config not initialized")
	}
	return instance
}

// Load creates a new Config from environment variables, optionally layered
// over the file named by CONFIG_FILE.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("JIRA_SSL_VERIFY", true)
	v.SetDefault("JIRA_TIMEOUT", 30*time.Second)
	v.SetDefault("JIRA_RETRY_MAX_ELAPSED", 30*time.Second)

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	// Store the instance
	instance = cfg

	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		JiraURL:            strings.TrimSuffix(v.GetString("JIRA_URL"), "/"),
		JiraUsername:       v.GetString("JIRA_USERNAME"),
		JiraAPIToken:       v.GetString("JIRA_API_TOKEN"),
		JiraPersonalToken:  v.GetString("JIRA_PERSONAL_TOKEN"),
		ProjectsFilter:     v.GetString("JIRA_PROJECTS_FILTER"),
		SSLVerify:          v.GetBool("JIRA_SSL_VERIFY"),
		Timeout:            v.GetDuration("JIRA_TIMEOUT"),
		RetryMaxElapsed:    v.GetDuration("JIRA_RETRY_MAX_ELAPSED"),
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		SlackSigningSecret: v.GetString("SLACK_SIGNING_SECRET"),
		TokenBucketName:    v.GetString("TOKEN_BUCKET_NAME"),
		TokenEncryptKey:    v.GetString("TOKEN_ENCRYPT_KEY"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	var missingVars []string
	if cfg.JiraURL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if cfg.JiraAPIToken == "" && cfg.JiraPersonalToken == "" {
		missingVars = append(missingVars, "JIRA_API_TOKEN or JIRA_PERSONAL_TOKEN")
	}
	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	if cfg.TokenBucketName != "" && len(cfg.TokenEncryptKey) != 32 {
		return nil, fmt.Errorf("TOKEN_ENCRYPT_KEY must be 32 bytes when TOKEN_BUCKET_NAME is set")
	}

	if v.IsSet("JIRA_IS_CLOUD") {
		cfg.JiraIsCloud = v.GetBool("JIRA_IS_CLOUD")
	} else {
		cfg.JiraIsCloud = IsCloudURL(cfg.JiraURL)
	}

	return cfg, nil
}

// IsCloudURL reports whether a Jira base URL points at Atlassian Cloud
func IsCloudURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" || strings.HasPrefix(host, "127.") {
		return false
	}
	for _, suffix := range []string{".atlassian.net", ".jira.com", ".jira-dev.com"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return host == "api.atlassian.com"
}
