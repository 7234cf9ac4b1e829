package config

import (
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration structure.
type Config struct {
	VSphere     VSphereConfig     `yaml:"vsphere"`
	Mail        MailConfig        `yaml:"mail"`
	Report      ReportConfig      `yaml:"report"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// VSphereConfig holds the management endpoint settings.
type VSphereConfig struct {
	Host    string `yaml:"host"`
	Timeout int    `yaml:"timeout"` // seconds
}

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	SMTPHost string   `yaml:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port"`
	UseSSL   bool     `yaml:"use_ssl"`
	Subject  string   `yaml:"subject"`
}

// ReportConfig holds rendering settings.
type ReportConfig struct {
	Title            string `yaml:"title"`
	WarnBelowPercent int    `yaml:"warn_below_percent"` // percentage (0-100)
}

// CredentialsConfig overrides where credentials are stored.
type CredentialsConfig struct {
	Dir string `yaml:"dir"`
}

const (
	DefaultSubject = "VM Disk Space Report"
	DefaultTitle   = "VM Disk Space Report"
	DefaultTimeout = 30
)

// Default returns a configuration with every optional field populated.
func Default() *Config {
	return &Config{
		VSphere: VSphereConfig{Timeout: DefaultTimeout},
		Mail:    MailConfig{SMTPPort: 25, Subject: DefaultSubject},
		Report:  ReportConfig{Title: DefaultTitle, WarnBelowPercent: 10},
	}
}

// Load reads and parses the config file, then applies environment overrides.
// A missing file is not an error when the environment supplies the values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

const (
	envHost          = "VMDISK_HOST"
	envFrom          = "VMDISK_FROM"
	envTo            = "VMDISK_TO"
	envSMTPHost      = "VMDISK_SMTP_HOST"
	envSMTPPort      = "VMDISK_SMTP_PORT"
	envUseSSL        = "VMDISK_USE_SSL"
	envCredentialDir = "VMDISK_CREDENTIAL_DIR"
)

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envHost); ok && v != "" {
		c.VSphere.Host = v
	}
	if v, ok := lookup(envFrom); ok && v != "" {
		c.Mail.From = v
	}
	if v, ok := lookup(envTo); ok && v != "" {
		c.Mail.To = splitList(v)
	}
	if v, ok := lookup(envSMTPHost); ok && v != "" {
		c.Mail.SMTPHost = v
	}
	if v, ok := lookup(envSMTPPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", envSMTPPort, v)
		}
		c.Mail.SMTPPort = port
	}
	if v, ok := lookup(envUseSSL); ok && v != "" {
		c.Mail.UseSSL = parseBool(v)
	}
	if v, ok := lookup(envCredentialDir); ok && v != "" {
		c.Credentials.Dir = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseBool accepts yes/no as well as the usual true/false spellings.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	switch s[:1] {
	case "t", "y", "1":
		return true
	}
	return false
}

// Validate checks the settings every run needs. Mail settings are checked
// separately because file mode does not use them.
func (c *Config) Validate() error {
	if err := c.VSphere.Validate(); err != nil {
		return err
	}
	return c.Report.Validate()
}

// Validate checks the VSphereConfig for correctness.
func (v *VSphereConfig) Validate() error {
	if strings.TrimSpace(v.Host) == "" {
		return fmt.Errorf("vsphere host cannot be empty")
	}
	if v.Timeout <= 0 {
		return fmt.Errorf("timeout must be greater than 0, got %d", v.Timeout)
	}
	return nil
}

// Validate checks the MailConfig for correctness.
func (m *MailConfig) Validate() error {
	if strings.TrimSpace(m.SMTPHost) == "" {
		return fmt.Errorf("smtp_host cannot be empty")
	}
	if m.SMTPPort <= 0 || m.SMTPPort > 65535 {
		return fmt.Errorf("smtp_port must be between 1 and 65535, got %d", m.SMTPPort)
	}
	if _, err := mail.ParseAddress(m.From); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", m.From, err)
	}
	if len(m.To) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("invalid recipient address %q: %w", to, err)
		}
	}
	return nil
}

// Validate checks the ReportConfig for correctness.
func (r *ReportConfig) Validate() error {
	if r.WarnBelowPercent < 0 || r.WarnBelowPercent > 100 {
		return fmt.Errorf("warn_below_percent must be between 0 and 100, got %d", r.WarnBelowPercent)
	}
	return nil
}
