package internal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "github.com/starford/mdpub/pkg/config"
)

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Catalog.URL = "https://catalog.example.org/catalog"
	cfg.Catalog.CommunityID = "5a1b2c3d4e5f60718293a4b5"
	cfg.Translator.URL = "https://translator.example.org/api/v3/translator"
	return cfg
}

func TestAuthConfig_PassthroughMode(t *testing.T) {
	cfg := AuthConfig{Mode: "passthrough", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.AuthEnabled())
}

func TestAuthConfig_EmptyModeDefaultsPassthrough(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthModePassthrough, cfg.Mode)
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.AuthEnabled())
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is empty")
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	assert.Error(t, cfg.Validate())
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	assert.Error(t, cfg.Validate())
}

func TestFullConfig_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestCatalogConfig_RemoteNeedsURL(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.URL = ""
	assert.Error(t, cfg.Validate())

	cfg.Catalog.Backend = BackendLocal
	require.NoError(t, cfg.Validate(), "the local backend has no url")
}

func TestCatalogConfig_EmptyBackendDefaultsRemote(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Backend = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, BackendRemote, cfg.Catalog.Backend)
}

func TestCatalogConfig_RequiresCommunity(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.CommunityID = ""
	assert.Error(t, cfg.Validate())
}

func TestCatalogConfig_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}

func TestLocalBackendRequiresSQLitePath(t *testing.T) {
	cfg := validConfig()
	cfg.Catalog.Backend = BackendLocal
	cfg.SQLite.Path = ""
	assert.Error(t, cfg.Validate())

	cfg.Catalog.Backend = BackendRemote
	assert.NoError(t, cfg.Validate(), "sqlite is only used by the local backend")
}

func TestInboxEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.Inbox.Enabled())
	cfg.Inbox.Path = "/var/spool/mdpub"
	assert.True(t, cfg.Inbox.Enabled())
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("MDPUB_TEST_TOKEN", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
  http:
    port: 9090
catalog:
  backend: local
  community_id: community
  timeout: 15s
translator:
  url: http://localhost:3000/api/v3/translator
sqlite:
  path: /tmp/catalog.db
inbox:
  path: /tmp/inbox
auth:
  mode: token
  token: ${MDPUB_TEST_TOKEN}
`), 0o644))

	cfg := NewDefaultConfig()
	require.NoError(t, pkgconfig.Load(path, cfg))

	assert.Equal(t, ":9090", cfg.App.HTTP.Address())
	assert.Equal(t, BackendLocal, cfg.Catalog.Backend)
	assert.Equal(t, 15*time.Second, cfg.Catalog.Timeout)
	assert.Equal(t, "md_metadata.json", cfg.Catalog.MetadataFile, "defaults survive")
	assert.Equal(t, "from-env", cfg.Auth.Token)
	assert.True(t, cfg.Inbox.Enabled())
}
