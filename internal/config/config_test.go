package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "raw-keypair", cfg.Wallet.Backend)
	assert.Equal(t, "confirmed", cfg.Wallet.Commitment)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Wallet.RPCURL, cfg.Wallet.RPCURL)
}

func TestLoadParsesAndOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wallet:
  rpc_url: https://api.mainnet-beta.solana.com
  backend: extension
  commitment: finalized
session:
  model: gemini-2.0-flash-live-001
  timeout: 30s
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.Wallet.RPCURL)
	assert.Equal(t, "extension", cfg.Wallet.Backend)
	assert.Equal(t, 30*time.Second, cfg.SessionTimeout())
	// Untouched sections keep their defaults.
	assert.Equal(t, ".kingraph/state.db", cfg.Storage.DatabasePath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("KINGRAPH_RPC_URL", "https://rpc.example.org")
	t.Setenv("KINGRAPH_WALLET_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Session.APIKey)
	assert.Equal(t, "https://rpc.example.org", cfg.Wallet.RPCURL)
	assert.Equal(t, "env-secret", cfg.Wallet.Secret)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wallet.Backend = "carrier-pigeon"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Wallet.RPCURL = "not a url"
	assert.Error(t, cfg.Validate())
}

func TestSaveNeverWritesSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Wallet.Secret = "super-secret"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
}

func TestTimeoutFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Timeout = "garbage"
	cfg.Wallet.Timeout = ""
	assert.Equal(t, 120*time.Second, cfg.SessionTimeout())
	assert.Equal(t, 60*time.Second, cfg.WalletTimeout())
}
