package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name    string `yaml:"name"`
	Backend string `yaml:"backend"`
	Port    int    `yaml:"port"`
}

type validated struct {
	Name string `yaml:"name"`
}

func (v *validated) Validate() error {
	if v.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("MDPUB_SET", "value")
	t.Setenv("MDPUB_EMPTY", "")

	assert.Equal(t, "value", ExpandEnv("${MDPUB_SET}"))
	assert.Equal(t, "value", ExpandEnv("$MDPUB_SET"))
	assert.Equal(t, "value", ExpandEnv("${MDPUB_SET:-other}"))
	assert.Equal(t, "other", ExpandEnv("${MDPUB_EMPTY:-other}"))
	assert.Equal(t, "remote", ExpandEnv("${MDPUB_UNSET_VARIABLE:-remote}"))
	assert.Equal(t, "", ExpandEnv("${MDPUB_UNSET_VARIABLE}"))
}

func TestLoadKeepsDefaults(t *testing.T) {
	t.Setenv("MDPUB_NAME", "mdpub")
	path := writeFile(t, "name: ${MDPUB_NAME}\nbackend: ${MDPUB_BACKEND_UNSET:-local}\n")

	cfg := sample{Port: 8080}
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, sample{Name: "mdpub", Backend: "local", Port: 8080}, cfg)
}

func TestLoadValidates(t *testing.T) {
	path := writeFile(t, "name: \"\"\n")
	err := Load(path, &validated{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadErrors(t *testing.T) {
	var cfg sample
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
	assert.Error(t, Load(writeFile(t, "port: [nope"), &cfg))
}

func TestLoadWithDefaults(t *testing.T) {
	fallback := writeFile(t, "name: fallback\n")

	var cfg sample
	require.NoError(t, LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), fallback, &cfg))
	assert.Equal(t, "fallback", cfg.Name)

	assert.Error(t, LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), "", &cfg))
}
