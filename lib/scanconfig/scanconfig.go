// Package scanconfig carries the unified ScanConfig / HTTPConfig /
// ReportingConfig structure referenced by spec.md §9's call to unify the
// original implementation's overlapping config variants. Full validation,
// file loading, and the CLI boundary around it are external-collaborator
// concerns per spec.md §1; this package only does enough to let the core
// construct a scanner.Config without a panic on the zero value.
package scanconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level, unified configuration surface.
type Config struct {
	Scan      ScanConfig      `yaml:"scan"`
	HTTP      HTTPConfig      `yaml:"http"`
	Reporting ReportingConfig `yaml:"reporting"`
}

// ScanConfig controls the scheduler and probe families.
type ScanConfig struct {
	Threads         int      `yaml:"threads"`
	TimeoutSeconds  uint64   `yaml:"timeout"`
	FollowRedirects bool     `yaml:"follow_redirects"`
	MaxRedirects    int      `yaml:"max_redirects"`
	VerifySSL       bool     `yaml:"verify_ssl"`
	RateLimit       float64  `yaml:"rate_limit"`
	Paths           []string `yaml:"paths"`
	ExcludePaths    []string `yaml:"exclude_paths"`
	// Wordlists is carried for the external config collaborator's use; this
	// core has no wordlist-driven crawl (out of scope per spec.md §1's
	// "does not crawl the site aggressively").
	Wordlists WordlistConfig `yaml:"wordlists"`
}

// WordlistConfig names optional external wordlists for paths, parameters,
// and headers, per original_source/src/config.rs's WordlistConfig. This
// core does not read them; they are a passthrough for the config
// collaborator.
type WordlistConfig struct {
	Paths      string `yaml:"paths,omitempty"`
	Parameters string `yaml:"parameters,omitempty"`
	Headers    string `yaml:"headers,omitempty"`
}

// HTTPConfig controls the HTTP capability.
type HTTPConfig struct {
	Headers   []HeaderPair `yaml:"headers"`
	Cookies   []HeaderPair `yaml:"cookies"`
	UserAgent string       `yaml:"user_agent,omitempty"`
	Proxy     string       `yaml:"proxy,omitempty"`
	Auth      *AuthConfig  `yaml:"auth,omitempty"`
}

// HeaderPair is a (name, value) pair, used for both headers and cookies.
type HeaderPair struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// AuthConfig holds basic-auth credentials.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReportingConfig controls the out-of-core report renderer.
type ReportingConfig struct {
	OutputFormat      string `yaml:"output_format"`
	OutputDir         string `yaml:"output_dir"`
	IncludeEvidence   bool   `yaml:"include_evidence"`
	IncludeReferences bool   `yaml:"include_references"`
}

// Default returns the scanner's default configuration.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Threads:         10,
			TimeoutSeconds:  30,
			FollowRedirects: true,
			MaxRedirects:    10,
			VerifySSL:       true,
			RateLimit:       50,
			Paths:           []string{},
			ExcludePaths:    []string{},
		},
		HTTP: HTTPConfig{
			Headers:   []HeaderPair{},
			Cookies:   []HeaderPair{},
			UserAgent: "Web-Cache-Scanner/1.0 (Nsisong Labs)",
		},
		Reporting: ReportingConfig{
			OutputFormat:      "html",
			OutputDir:         "reports",
			IncludeEvidence:   true,
			IncludeReferences: true,
		},
	}
}

// Validate checks the handful of structural invariants the core needs to
// avoid a zero-valued ScanConfig (threads == 0, a semaphore of size 0)
// producing a scanner that can never make progress. It is intentionally
// shallow: wordlist-file existence, proxy URL parsing, and output-format
// checking belong to the external config collaborator.
func Validate(c Config) error {
	if c.Scan.Threads <= 0 {
		return fmt.Errorf("scanconfig: threads must be greater than 0")
	}
	if c.Scan.TimeoutSeconds == 0 {
		return fmt.Errorf("scanconfig: timeout must be greater than 0")
	}
	return nil
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("scanconfig: reading %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("scanconfig: parsing %s: %w", path, err)
	}
	return c, nil
}

// GenerateDefault writes the default configuration to path as YAML.
func GenerateDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("scanconfig: marshaling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("scanconfig: writing %s: %w", path, err)
	}
	return nil
}
