package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devrev/elastirouter/internal/model"
	"gopkg.in/yaml.v3"
)

// endpointPattern accepts either host:port or [IPv4]:port
var endpointPattern = regexp.MustCompile(
	`^(?:(?:[\w\d-]{0,61}[\w\d]\.)+[\w]{1,6}|\[(?:[\d]{1,3}\.){3}[\d]{1,3}\]):\d{1,5}$`,
)

// EndpointConfig holds configuration endpoint settings
type EndpointConfig struct {
	Address         string        `yaml:"address"`
	UseVPCIPAddress *bool         `yaml:"use_vpc_ip_address"`
	UsePooling      bool          `yaml:"use_pooling"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	IOTimeout       time.Duration `yaml:"io_timeout"`
}

// UseVPCIP reports whether discovery should prefer VPC-internal IPs over
// hostnames (the default).
func (c *EndpointConfig) UseVPCIP() bool {
	return c.UseVPCIPAddress == nil || *c.UseVPCIPAddress
}

// BreakerConfig holds discovery circuit breaker settings
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// DiscoveryConfig holds topology discovery settings
type DiscoveryConfig struct {
	Interval      time.Duration `yaml:"interval"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	DeadTimeout   time.Duration `yaml:"dead_timeout"`
	Breaker       BreakerConfig `yaml:"breaker"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete configuration for the routing client
type Config struct {
	Endpoint  EndpointConfig  `yaml:"endpoint"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoadConfig loads configuration from a file
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default values for unspecified configuration
func setDefaults(cfg *Config) {
	if cfg.Endpoint.ConnectTimeout == 0 {
		cfg.Endpoint.ConnectTimeout = 2 * time.Second
	}
	if cfg.Endpoint.IOTimeout == 0 {
		cfg.Endpoint.IOTimeout = 2 * time.Second
	}

	if cfg.Discovery.RetryAttempts == 0 {
		cfg.Discovery.RetryAttempts = 2
	}
	if cfg.Discovery.DeadTimeout == 0 {
		cfg.Discovery.DeadTimeout = 60 * time.Second
	}
	if cfg.Discovery.Breaker.MaxFailures == 0 {
		cfg.Discovery.Breaker.MaxFailures = 5
	}
	if cfg.Discovery.Breaker.OpenTimeout == 0 {
		cfg.Discovery.Breaker.OpenTimeout = 30 * time.Second
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9150
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := ValidateEndpoint(c.Endpoint.Address); err != nil {
		return err
	}
	if c.Discovery.Interval < 0 {
		return fmt.Errorf("discovery.interval must not be negative")
	}
	if c.Discovery.RetryAttempts < 0 {
		return fmt.Errorf("discovery.retry_attempts must not be negative")
	}
	if c.Discovery.RetryDelay < 0 {
		return fmt.Errorf("discovery.retry_delay must not be negative")
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}
	return nil
}

// ValidateEndpoint checks a configuration endpoint address string. The
// accepted forms are 'host:port' and '[ipv4]:port'.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint.address is required")
	}
	if !endpointPattern.MatchString(endpoint) {
		return fmt.Errorf("invalid configuration endpoint %q (expected 'host:port' or '[ip]:port')", endpoint)
	}
	return nil
}

// ParseEndpoint splits a validated endpoint address into a NodeAddress,
// stripping the brackets of the '[ipv4]:port' form.
func ParseEndpoint(endpoint string) (model.NodeAddress, error) {
	if err := ValidateEndpoint(endpoint); err != nil {
		return model.NodeAddress{}, err
	}

	idx := strings.LastIndex(endpoint, ":")
	host := endpoint[:idx]
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")

	port, err := strconv.Atoi(endpoint[idx+1:])
	if err != nil {
		return model.NodeAddress{}, fmt.Errorf("invalid port in endpoint %q: %w", endpoint, err)
	}

	return model.NodeAddress{Host: host, Port: port}, nil
}
