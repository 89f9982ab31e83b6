package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/process"
	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/shell/workflow"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Commands   CommandsConfig   `mapstructure:"commands"`
	Validation ValidationConfig `mapstructure:"validation"`
	History    HistoryConfig    `mapstructure:"history"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DockerConfig holds container engine configuration.
type DockerConfig struct {
	// Host overrides DOCKER_HOST. Empty uses the environment.
	Host string `mapstructure:"host"`

	// Required makes an unreachable engine fatal at startup. Otherwise the
	// docker workflows report the engine as unavailable.
	Required bool `mapstructure:"required"`

	BuildTimeout time.Duration `mapstructure:"build_timeout"`
	VerifyBuild  bool          `mapstructure:"verify_build"`

	// PublicHost is used in the access URL of deploy-and-run.
	PublicHost string `mapstructure:"public_host"`
}

// StagingConfig holds the working directory layout.
type StagingConfig struct {
	Root    string `mapstructure:"root"`
	TempDir string `mapstructure:"temp_dir"`

	// JanitorInterval schedules the sweep of leftover validation builds.
	// Zero disables it.
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	JanitorMaxAge   time.Duration `mapstructure:"janitor_max_age"`
}

// CommandsConfig holds external CLI configuration.
type CommandsConfig struct {
	Shell        string        `mapstructure:"shell"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ExtraPath    []string      `mapstructure:"extra_path"`
	MaxLogBytes  int           `mapstructure:"max_log_bytes"`
	TerraformBin string        `mapstructure:"terraform_bin"`
	KubectlBin   string        `mapstructure:"kubectl_bin"`
	HelmBin      string        `mapstructure:"helm_bin"`
}

// ValidationConfig holds the validation policy.
type ValidationConfig struct {
	// Policy is "advisory" (validation failures only warn) or "strict".
	Policy string `mapstructure:"policy"`
}

// HistoryConfig holds run history configuration.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from defaults, an optional config file, an
// optional dotenv file and the environment, in increasing precedence.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if err := loadDotEnv(envFile); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30m") // Terraform apply can run for minutes
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("docker.host", "")
	v.SetDefault("docker.required", false)
	v.SetDefault("docker.build_timeout", "15m")
	v.SetDefault("docker.verify_build", false)
	v.SetDefault("docker.public_host", "localhost")
	v.SetDefault("staging.root", "./deployments")
	v.SetDefault("staging.temp_dir", "")
	v.SetDefault("staging.janitor_interval", "10m")
	v.SetDefault("staging.janitor_max_age", "1h")
	v.SetDefault("commands.shell", "sh")
	v.SetDefault("commands.timeout", "10m")
	v.SetDefault("commands.extra_path", process.DefaultConfig().ExtraPath)
	v.SetDefault("commands.max_log_bytes", 8<<20)
	v.SetDefault("commands.terraform_bin", "terraform")
	v.SetDefault("commands.kubectl_bin", "kubectl")
	v.SetDefault("commands.helm_bin", "helm")
	v.SetDefault("validation.policy", string(domain.PolicyAdvisory))
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.dsn", "./data/deployer.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing file falls back to defaults; anything else is fatal.
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDotEnv exports the variables of a dotenv file without overriding the
// real environment. A missing file is ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks values viper cannot check by type alone.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range 1-65535", c.Server.Port)
	}
	if _, err := domain.ParsePolicy(c.Validation.Policy); err != nil {
		return fmt.Errorf("validation.policy: %w", err)
	}
	if strings.TrimSpace(c.Staging.Root) == "" {
		return errors.New("staging.root is required")
	}
	if c.Staging.JanitorInterval > 0 && c.Staging.JanitorMaxAge <= c.Docker.BuildTimeout {
		return errors.New("staging.janitor_max_age must exceed docker.build_timeout")
	}
	if c.History.Enabled && strings.TrimSpace(c.History.DSN) == "" {
		return errors.New("history.dsn is required when history is enabled")
	}
	return nil
}

// EngineConfig maps the configuration onto the workflow engine.
func (c *Config) EngineConfig() workflow.Config {
	// Validate has already accepted the policy.
	policy, _ := domain.ParsePolicy(c.Validation.Policy)

	return workflow.Config{
		StagingRoot:    c.Staging.Root,
		Policy:         policy,
		CommandTimeout: c.Commands.Timeout,
		BuildTimeout:   c.Docker.BuildTimeout,
		MaxLogBytes:    c.Commands.MaxLogBytes,
		PublicHost:     c.Docker.PublicHost,
		TerraformBin:   c.Commands.TerraformBin,
		KubectlBin:     c.Commands.KubectlBin,
		HelmBin:        c.Commands.HelmBin,
		VerifyBuild:    c.Docker.VerifyBuild,
		TempDir:        c.Staging.TempDir,
	}
}

// RunnerConfig maps the configuration onto the process runner.
func (c *Config) RunnerConfig() process.Config {
	return process.Config{
		Shell:       c.Commands.Shell,
		Timeout:     c.Commands.Timeout,
		ExtraPath:   c.Commands.ExtraPath,
		MaxLogBytes: c.Commands.MaxLogBytes,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
