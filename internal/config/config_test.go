// File: internal/config/config_test.go
package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "robot-order", cfg.Logger().ServiceName)
	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 50*time.Millisecond, cfg.Browser().SlowMotion)
	assert.Equal(t, 90*time.Second, cfg.Network().NavigationTimeout)
	assert.Equal(t, "https://robotsparebinindustries.com/#/robot-order", cfg.Site().OrderURL)
	assert.Equal(t, "#head", cfg.Site().Selectors.Head)
	assert.Equal(t, ".alert.alert-danger", cfg.Site().Selectors.ErrorBanner)
	assert.Equal(t, "https://robotsparebinindustries.com/orders.csv", cfg.Orders().CSVURL)
	assert.Equal(t, "orders.csv", cfg.Orders().LocalPath)
	assert.True(t, cfg.Orders().Overwrite)
	assert.Equal(t, "output", cfg.Output().Dir)
	assert.Equal(t, "receipt-order", cfg.Output().ReceiptsSubdir)
	assert.Equal(t, "receipts.zip", cfg.Output().ArchiveName)
	assert.Equal(t, ArchiveScopeAll, cfg.Output().ArchiveScope)
	assert.Equal(t, 5, cfg.Submit().MaxAttempts)
	assert.Equal(t, time.Second, cfg.Submit().RetryInterval)

	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.SetBrowserHeadless(false)
	cfg.SetOutputDir("/tmp/robots")
	cfg.SetOutputArchiveScope(ArchiveScopeComplete)
	cfg.SetSubmitMaxAttempts(9)

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, "/tmp/robots", cfg.Output().Dir)
	assert.Equal(t, ArchiveScopeComplete, cfg.Output().ArchiveScope)
	assert.Equal(t, 9, cfg.Submit().MaxAttempts)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		require.NoError(t, cfg.Validate())

		missingURL := *cfg
		missingURL.SiteCfg.OrderURL = ""
		err := missingURL.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "site.order_url is a required configuration field")

		missingCSV := *cfg
		missingCSV.OrdersCfg.CSVURL = ""
		err = missingCSV.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "orders.csv_url is a required configuration field")

		negativeSlowMo := *cfg
		negativeSlowMo.BrowserCfg.SlowMotion = -time.Millisecond
		err = negativeSlowMo.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "browser.slow_motion must not be negative")
	})

	t.Run("Output Validation", func(t *testing.T) {
		valid := OutputConfig{
			Dir:            "output",
			ReceiptsSubdir: "receipt-order",
			ArchiveName:    "receipts.zip",
			ArchiveScope:   ArchiveScopeComplete,
		}
		assert.NoError(t, valid.Validate())

		badName := valid
		badName.ArchiveName = "receipts.tar"
		err := badName.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive_name must end in .zip")

		badScope := valid
		badScope.ArchiveScope = "everything"
		err = badScope.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive_scope must be")

		noDir := valid
		noDir.Dir = ""
		assert.Error(t, noDir.Validate())
	})

	t.Run("Submit Validation", func(t *testing.T) {
		valid := SubmitConfig{MaxAttempts: 3, RetryInterval: time.Second}
		assert.NoError(t, valid.Validate())

		zeroAttempts := valid
		zeroAttempts.MaxAttempts = 0
		err := zeroAttempts.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_attempts must be greater than 0")

		negativeInterval := valid
		negativeInterval.RetryInterval = -time.Second
		err = negativeInterval.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry_interval must not be negative")
	})

	t.Run("Selector Validation", func(t *testing.T) {
		sel := NewDefaultConfig().Site().Selectors
		assert.NoError(t, sel.Validate())

		noPlaceholder := sel
		noPlaceholder.BodyRadio = "[name='body']"
		err := noPlaceholder.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "{value} placeholder")

		missingOrder := sel
		missingOrder.Order = "  "
		err = missingOrder.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "order is required")
	})
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
browser:
  headless: false
  slow_motion: 120ms
output:
  dir: /srv/robots
  archive_scope: complete
submit:
  max_attempts: 2
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.False(t, cfg.Browser().Headless)
		assert.Equal(t, 120*time.Millisecond, cfg.Browser().SlowMotion)
		assert.Equal(t, "/srv/robots", cfg.Output().Dir)
		assert.Equal(t, ArchiveScopeComplete, cfg.Output().ArchiveScope)
		assert.Equal(t, 2, cfg.Submit().MaxAttempts)
		// Untouched keys keep their defaults.
		assert.Equal(t, "#address", cfg.Site().Selectors.Address)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("submit.max_attempts", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_attempts must be greater than 0")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)

		t.Setenv("ROBOT_ORDER_SITE_URL", "http://staging.local/#/robot-order")
		t.Setenv("ROBOT_ORDER_CSV_URL", "http://staging.local/orders.csv")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "http://staging.local/#/robot-order", cfg.Site().OrderURL)
		assert.Equal(t, "http://staging.local/orders.csv", cfg.Orders().CSVURL)
	})

	t.Run("Home Directory Expansion", func(t *testing.T) {
		home, err := homedir.Dir()
		if err != nil {
			t.Skipf("no home directory available: %v", err)
		}
		v := viper.New()
		SetDefaults(v)
		v.Set("output.dir", "~/robots")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, "robots"), cfg.Output().Dir)
	})
}
