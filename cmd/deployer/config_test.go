package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaydevops2024/Devops-full-managed-dashboard-sub000/internal/core/domain"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Docker.Required)
	assert.Equal(t, 15*time.Minute, cfg.Docker.BuildTimeout)
	assert.Equal(t, "localhost", cfg.Docker.PublicHost)
	assert.Equal(t, "./deployments", cfg.Staging.Root)
	assert.Equal(t, 10*time.Minute, cfg.Staging.JanitorInterval)
	assert.Equal(t, time.Hour, cfg.Staging.JanitorMaxAge)
	assert.Equal(t, "sh", cfg.Commands.Shell)
	assert.Equal(t, 10*time.Minute, cfg.Commands.Timeout)
	assert.Equal(t, 8<<20, cfg.Commands.MaxLogBytes)
	assert.Contains(t, cfg.Commands.ExtraPath, "/usr/local/bin")
	assert.Equal(t, "advisory", cfg.Validation.Policy)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "./data/deployer.db", cfg.History.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  write_timeout: 5m

docker:
  required: true
  verify_build: true
  public_host: "deploy.example.com"

staging:
  root: "/srv/deployments"

commands:
  timeout: 2m
  extra_path: ["/opt/tools/bin"]
  terraform_bin: "tofu"

validation:
  policy: strict

history:
  enabled: false

log:
  level: "debug"
  format: "text"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile, "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.WriteTimeout)
	assert.True(t, cfg.Docker.Required)
	assert.True(t, cfg.Docker.VerifyBuild)
	assert.Equal(t, "deploy.example.com", cfg.Docker.PublicHost)
	assert.Equal(t, "/srv/deployments", cfg.Staging.Root)
	assert.Equal(t, 2*time.Minute, cfg.Commands.Timeout)
	assert.Equal(t, []string{"/opt/tools/bin"}, cfg.Commands.ExtraPath)
	assert.Equal(t, "tofu", cfg.Commands.TerraformBin)
	assert.Equal(t, "strict", cfg.Validation.Policy)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("DEPLOYER_SERVER_PORT", "3000")
	t.Setenv("DEPLOYER_STAGING_ROOT", "/tmp/stage")
	t.Setenv("DEPLOYER_COMMANDS_TIMEOUT", "90s")
	t.Setenv("DEPLOYER_VALIDATION_POLICY", "strict")
	t.Setenv("DEPLOYER_HISTORY_DSN", "/custom/path.db")
	t.Setenv("DEPLOYER_LOG_FORMAT", "text")

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/tmp/stage", cfg.Staging.Root)
	assert.Equal(t, 90*time.Second, cfg.Commands.Timeout)
	assert.Equal(t, "strict", cfg.Validation.Policy)
	assert.Equal(t, "/custom/path.db", cfg.History.DSN)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DEPLOYER_STAGING_ROOT=/from/dotenv\nDEPLOYER_LOG_LEVEL=debug\n"), 0644))
	t.Setenv("DEPLOYER_LOG_LEVEL", "error")
	// godotenv only fills unset variables. t.Setenv restores this one afterwards.
	t.Setenv("DEPLOYER_STAGING_ROOT", "")
	os.Unsetenv("DEPLOYER_STAGING_ROOT")

	cfg, err := LoadConfig("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "/from/dotenv", cfg.Staging.Root)
	assert.Equal(t, "error", cfg.Log.Level, "real environment wins over the dotenv file")
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml", "/nonexistent/.env")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile, "")
	assert.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown policy", map[string]string{"DEPLOYER_VALIDATION_POLICY": "lenient"}, "validation.policy"},
		{"port out of range", map[string]string{"DEPLOYER_SERVER_PORT": "70000"}, "server.port"},
		{"history without dsn", map[string]string{"DEPLOYER_HISTORY_DSN": " "}, "history.dsn"},
		{"blank staging root", map[string]string{"DEPLOYER_STAGING_ROOT": " "}, "staging.root"},
		{"janitor age below build timeout", map[string]string{"DEPLOYER_STAGING_JANITOR_MAX_AGE": "5m"}, "janitor_max_age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadConfig("", "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// =============================================================================
// Mapping Tests
// =============================================================================

func TestConfig_EngineConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("DEPLOYER_VALIDATION_POLICY", "STRICT")

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	ec := cfg.EngineConfig()
	assert.Equal(t, domain.PolicyStrict, ec.Policy)
	assert.Equal(t, "./deployments", ec.StagingRoot)
	assert.Equal(t, 10*time.Minute, ec.CommandTimeout)
	assert.Equal(t, 15*time.Minute, ec.BuildTimeout)
	assert.Equal(t, "terraform", ec.TerraformBin)
	assert.Equal(t, "kubectl", ec.KubectlBin)
	assert.Equal(t, "helm", ec.HelmBin)

	rc := cfg.RunnerConfig()
	assert.Equal(t, "sh", rc.Shell)
	assert.Equal(t, 8<<20, rc.MaxLogBytes)
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_Formats(t *testing.T) {
	var buf bytes.Buffer
	SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "json"}}, &buf).Info("hello", "run_id", "r1")
	assert.Contains(t, buf.String(), `"run_id":"r1"`)

	buf.Reset()
	SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "text"}}, &buf).Info("hello", "run_id", "r1")
	assert.Contains(t, buf.String(), "run_id=r1")
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, true},
		{"error", false, false},
		{"invalid", false, true}, // falls back to info
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level, Format: "text"}}, &buf)

			logger.Debug("debug-line")
			logger.Warn("warn-line")

			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug-line")))
			assert.Equal(t, tt.warnSeen, bytes.Contains(buf.Bytes(), []byte("warn-line")))
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

// clearEnv blanks every variable the tests set. Empty variables are ignored
// by viper.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"DEPLOYER_SERVER_HOST",
		"DEPLOYER_SERVER_PORT",
		"DEPLOYER_DOCKER_REQUIRED",
		"DEPLOYER_STAGING_ROOT",
		"DEPLOYER_STAGING_JANITOR_MAX_AGE",
		"DEPLOYER_COMMANDS_TIMEOUT",
		"DEPLOYER_VALIDATION_POLICY",
		"DEPLOYER_HISTORY_ENABLED",
		"DEPLOYER_HISTORY_DSN",
		"DEPLOYER_LOG_LEVEL",
		"DEPLOYER_LOG_FORMAT",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}
