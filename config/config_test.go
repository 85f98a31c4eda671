package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	content := `environment = "production"
app_id = "app1"
db_path = "/tmp/kin.db"
max_local_accounts = 5
`

	path := filepath.Join(t.TempDir(), "engine.toml")
	require.Nil(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.Nil(t, err)
	require.Equal(t, "production", cfg.Environment)
	require.Equal(t, "app1", cfg.AppID)
	require.Equal(t, 5, cfg.MaxLocalAccounts)

	// Unset fields fall back to defaults.
	require.Equal(t, 15*time.Second, cfg.OnboardTimeout())
	require.Equal(t, 300*time.Second, cfg.PaymentTimeout())
}

func TestApplyDefaults(t *testing.T) {
	var cfg Engine
	cfg.ApplyDefaults()

	require.Equal(t, DefaultMaxLocalAccounts, cfg.MaxLocalAccounts)
	require.Equal(t, DefaultOnboardTimeout, cfg.OnboardTimeoutSecs)
	require.Equal(t, DefaultPaymentTimeout, cfg.PaymentTimeoutSecs)
}
