// Package parser parses host configuration files listing kick sources and
// policy.
package parser

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
)

// SourceSpec declares one kick source.
type SourceSpec struct {
	// URL is the source location (https bundle, oci artifact, lua script).
	URL string `yaml:"url" json:"url"`

	// Verify requires signature verification for this source.
	Verify bool `yaml:"verify,omitempty" json:"verify,omitempty"`

	// Trust pre-approves the source, bypassing the gatekeeper prompt.
	Trust bool `yaml:"trust,omitempty" json:"trust,omitempty"`
}

// Config is the host configuration.
type Config struct {
	// Sources lists the kick sources to load.
	Sources []SourceSpec `yaml:"sources" json:"sources"`

	// AllowedSourceHosts are doublestar patterns for the source policy.
	AllowedSourceHosts []string `yaml:"allowed_source_hosts,omitempty" json:"allowed_source_hosts,omitempty"`

	// SecurityLevel is the gatekeeper level: strict, standard, permissive.
	SecurityLevel string `yaml:"security_level,omitempty" json:"security_level,omitempty"`

	// HostVersion is the semver the host reports for descriptor
	// hostVersion constraints.
	HostVersion string `yaml:"host_version,omitempty" json:"host_version,omitempty"`
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	for i, s := range c.Sources {
		if s.URL == "" {
			return fmt.Errorf("source %d: url is required", i)
		}
	}
	switch c.SecurityLevel {
	case "", "strict", "standard", "permissive":
	default:
		return fmt.Errorf("unknown security_level %q", c.SecurityLevel)
	}
	return nil
}

// ConfigParser parses raw configuration bytes into a Config.
type ConfigParser interface {
	// Parse unmarshals configuration bytes into a Config.
	Parse(data []byte) (*Config, error)
}

// YAMLConfigParser implements ConfigParser for YAML.
type YAMLConfigParser struct{}

// NewYAMLConfigParser creates a new YAMLConfigParser.
func NewYAMLConfigParser() ConfigParser {
	return &YAMLConfigParser{}
}

// Parse unmarshals YAML bytes into a Config.
func (p *YAMLConfigParser) Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// JSONConfigParser implements ConfigParser for JSON.
type JSONConfigParser struct{}

// NewJSONConfigParser creates a new JSONConfigParser.
func NewJSONConfigParser() ConfigParser {
	return &JSONConfigParser{}
}

// Parse unmarshals JSON bytes into a Config.
func (p *JSONConfigParser) Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
