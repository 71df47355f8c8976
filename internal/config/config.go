// Package config provides environment-variable-first configuration loading
// with optional YAML file and .env fallbacks for the contact relay.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted by PROVIDER.
const (
	ProviderSMTP   = "smtp"
	ProviderSES    = "ses"
	ProviderGraph  = "graph"
	ProviderStdout = "stdout"
)

const (
	defaultMailHost       = "smtp.gmail.com"
	defaultMailPort       = 465
	defaultMailFrom       = "portfolio@example.com"
	defaultSubjectPrefix  = "Portfolio Contact: "
	defaultHTTPListen     = ":8080"
	defaultSinkListen     = ":2465"
	defaultMaxMessageSize = 10 * 1024 * 1024
)

// Config holds the complete application configuration. It is loaded once
// at startup and not modified afterwards.
type Config struct {
	Provider string        `yaml:"provider"`
	Mail     MailConfig    `yaml:"mail"`
	Contact  ContactConfig `yaml:"contact"`
	HTTP     HTTPConfig    `yaml:"http"`
	SES      SESConfig     `yaml:"ses"`
	Graph    GraphConfig   `yaml:"graph"`
	Sink     SinkConfig    `yaml:"sink"`
	TLS      TLSConfig     `yaml:"tls"`
	Logging  LoggingConfig `yaml:"logging"`
}

// MailConfig describes the outbound mail host and the fixed envelope
// addresses. The connection always uses implicit TLS.
type MailConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	From          string `yaml:"from"`
	To            string `yaml:"to"`
	SubjectPrefix string `yaml:"subject_prefix"`

	// CAFile, when set, replaces the system roots for verifying the mail
	// host. Used to trust a local sink's certificate.
	CAFile string `yaml:"ca_file"`
}

// ContactConfig holds submission validation settings.
type ContactConfig struct {
	StrictEmail bool `yaml:"strict_email"`
}

// HTTPConfig holds the form endpoint settings.
type HTTPConfig struct {
	Listen         string   `yaml:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// SESConfig holds AWS SES settings. Static keys are optional; the default
// AWS credential chain is used without them.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Sender       string `yaml:"sender"`
}

// SinkConfig holds the local SMTP sink settings.
type SinkConfig struct {
	Listen         string `yaml:"listen"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ImplicitTLS    bool   `yaml:"implicit_tls"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// TLSConfig holds TLS certificate file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadEnvFile loads variables from a dotenv file into the process
// environment. Variables that are already set are left alone. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Load loads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads a YAML file as the base layer, then overrides it with
// environment variables. The file must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks everything the relay needs before it starts. There are
// no credential fallbacks: a missing secret is an error.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.Mail.From != "":
		if _, err := mail.ParseAddress(c.Mail.From); err != nil {
			errs = append(errs, fmt.Errorf("EMAIL_FROM %q is not a valid address: %w", c.Mail.From, err))
		}
	case c.Provider != ProviderGraph:
		// Graph always sends as GRAPH_SENDER.
		errs = append(errs, errors.New("EMAIL_FROM is required"))
	}
	if c.Mail.To == "" {
		errs = append(errs, errors.New("EMAIL_TO is required"))
	} else if _, err := mail.ParseAddressList(c.Mail.To); err != nil {
		errs = append(errs, fmt.Errorf("EMAIL_TO %q is not a valid address list: %w", c.Mail.To, err))
	}
	if c.HTTP.Listen == "" {
		errs = append(errs, errors.New("HTTP_LISTEN is required"))
	}

	switch c.Provider {
	case ProviderSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("EMAIL_SERVER is required"))
		}
		if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
			errs = append(errs, fmt.Errorf("EMAIL_PORT %d is out of range", c.Mail.Port))
		}
		if c.Mail.Username == "" || c.Mail.Password == "" {
			errs = append(errs, errors.New("EMAIL_USER and EMAIL_PASSWORD are required"))
		}
	case ProviderSES:
		if c.SES.Region == "" {
			errs = append(errs, errors.New("SES_REGION is required for the ses provider"))
		}
		if (c.SES.AccessKeyID == "") != (c.SES.SecretAccessKey == "") {
			errs = append(errs, errors.New("SES_ACCESS_KEY_ID and SES_SECRET_ACCESS_KEY must be set together"))
		}
	case ProviderGraph:
		if !c.GraphConfigured() {
			errs = append(errs, errors.New("GRAPH_TENANT_ID, GRAPH_CLIENT_ID, GRAPH_CLIENT_SECRET and GRAPH_SENDER are required for the graph provider"))
		}
	case ProviderStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	return errors.Join(errs...)
}

// ValidateSink checks the settings used by the local SMTP sink.
func (c *Config) ValidateSink() error {
	var errs []error
	if c.Sink.Listen == "" {
		errs = append(errs, errors.New("SINK_LISTEN is required"))
	}
	if (c.Sink.Username == "") != (c.Sink.Password == "") {
		errs = append(errs, errors.New("SINK_USERNAME and SINK_PASSWORD must be set together"))
	}
	if c.Sink.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("SINK_MAX_MESSAGE_SIZE must be positive, got %d", c.Sink.MaxMessageSize))
	}
	return errors.Join(errs...)
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

func (c *Config) applyDefaults() {
	c.Provider = ProviderSMTP
	c.Mail.Host = defaultMailHost
	c.Mail.Port = defaultMailPort
	c.Mail.From = defaultMailFrom
	c.Mail.SubjectPrefix = defaultSubjectPrefix
	c.HTTP.Listen = defaultHTTPListen
	c.Sink.Listen = defaultSinkListen
	c.Sink.ImplicitTLS = true
	c.Sink.MaxMessageSize = defaultMaxMessageSize
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with non-empty environment
// variables. Malformed numbers and booleans are reported, not ignored.
func (c *Config) applyEnvVars() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, v))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean %q", key, v))
				return
			}
			*dst = b
		}
	}

	if v := os.Getenv("PROVIDER"); v != "" {
		c.Provider = strings.ToLower(v)
	}

	setString("EMAIL_SERVER", &c.Mail.Host)
	setInt("EMAIL_PORT", &c.Mail.Port)
	setString("EMAIL_USER", &c.Mail.Username)
	setString("EMAIL_PASSWORD", &c.Mail.Password)
	setString("EMAIL_FROM", &c.Mail.From)
	setString("EMAIL_TO", &c.Mail.To)
	setString("EMAIL_SUBJECT_PREFIX", &c.Mail.SubjectPrefix)
	setString("EMAIL_CA_FILE", &c.Mail.CAFile)

	setBool("CONTACT_STRICT_EMAIL", &c.Contact.StrictEmail)

	setString("HTTP_LISTEN", &c.HTTP.Listen)
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.HTTP.AllowedOrigins = splitList(v)
	}

	setString("SES_REGION", &c.SES.Region)
	setString("SES_ACCESS_KEY_ID", &c.SES.AccessKeyID)
	setString("SES_SECRET_ACCESS_KEY", &c.SES.SecretAccessKey)

	setString("GRAPH_TENANT_ID", &c.Graph.TenantID)
	setString("GRAPH_CLIENT_ID", &c.Graph.ClientID)
	setString("GRAPH_CLIENT_SECRET", &c.Graph.ClientSecret)
	setString("GRAPH_SENDER", &c.Graph.Sender)

	setString("SINK_LISTEN", &c.Sink.Listen)
	setString("SINK_USERNAME", &c.Sink.Username)
	setString("SINK_PASSWORD", &c.Sink.Password)
	setBool("SINK_IMPLICIT_TLS", &c.Sink.ImplicitTLS)
	setInt("SINK_MAX_MESSAGE_SIZE", &c.Sink.MaxMessageSize)

	setString("TLS_CERT_FILE", &c.TLS.CertFile)
	setString("TLS_KEY_FILE", &c.TLS.KeyFile)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
