package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ADDR", "")
	t.Setenv("PAYROLL_WORKERS", "")
	t.Setenv("RUN_MIGRATIONS", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 8, cfg.PayrollWorkers)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "storage/payslips", cfg.PayslipDir)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("PAYROLL_WORKERS", "3")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("PAYROLL_TAX_TABLE_PATH", "/etc/payroll/tax.yaml")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 3, cfg.PayrollWorkers)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "/etc/payroll/tax.yaml", cfg.TaxTablePath)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestValidate(t *testing.T) {
	valid := Config{
		DatabaseURL:        "postgres://localhost/payroll",
		MaxBodyBytes:       4096,
		RateLimitPerMinute: 60,
		PayrollWorkers:     4,
		PayslipDir:         "storage/payslips",
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(c *Config){
		"missing database":      func(c *Config) { c.DatabaseURL = " " },
		"production secret":     func(c *Config) { c.Environment = "production"; c.DataEncryptionKey = "k" },
		"production encryption": func(c *Config) { c.Environment = "production"; c.JWTSecret = "s" },
		"small body":            func(c *Config) { c.MaxBodyBytes = 10 },
		"rate limit":            func(c *Config) { c.RateLimitPerMinute = 0 },
		"workers":               func(c *Config) { c.PayrollWorkers = 0 },
		"payslip dir":           func(c *Config) { c.PayslipDir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
