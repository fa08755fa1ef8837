package configloader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string        `koanf:"name"`
	Workers int           `koanf:"workers"`
	Timeout time.Duration `koanf:"timeout"`
	Nested  struct {
		Url string `koanf:"url"`
	} `koanf:"nested"`
}

func (c *testConfig) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFrom_Priority(t *testing.T) {
	// given
	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "config.yaml", "name: from-yaml\nworkers: 2\ntimeout: 5s\nnested:\n  url: nats://yaml:4222\n")
	envFile := writeFile(t, dir, ".env", "LOADERTEST_WORKERS=3\nOTHER_WORKERS=99\n")
	t.Setenv("LOADERTEST_NESTED_URL", "nats://env:4222")

	// when
	cfg, err := LoadFrom[*testConfig](Sources{ConfigFile: yamlFile, EnvFile: envFile, EnvPrefix: "LOADERTEST_"})

	// then
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Name)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "nats://env:4222", cfg.Nested.Url)
}

func TestLoadFrom_MissingFiles(t *testing.T) {
	// given
	dir := t.TempDir()
	t.Setenv("LOADERTEST_NAME", "only-env")

	// when
	cfg, err := LoadFrom[*testConfig](Sources{
		ConfigFile: filepath.Join(dir, "absent.yaml"),
		EnvFile:    filepath.Join(dir, "absent.env"),
		EnvPrefix:  "LOADERTEST_",
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, "only-env", cfg.Name)
}

func TestLoadFrom_ValidationError(t *testing.T) {
	dir := t.TempDir()
	yamlFile := writeFile(t, dir, "config.yaml", "workers: 1\n")

	_, err := LoadFrom[*testConfig](Sources{ConfigFile: yamlFile, EnvPrefix: "LOADERTEST_"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation failed")
}
