package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type witnessSection struct {
	Quorum      int `mapstructure:"quorum"`
	DownAfterMs int `mapstructure:"down_after_ms"`
}

type testAppConfig struct {
	Pool    string         `mapstructure:"pool"`
	Witness witnessSection `mapstructure:"witness"`
}

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T, dir string, opts ...Option) Loader {
	t.Helper()
	l, err := New(&Config{Name: "kvrole", Paths: []string{dir}, EnvPrefix: "KVTEST"}, opts...)
	require.NoError(t, err)
	return l
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "kvrole.yaml", `
pool: redis
witness:
  quorum: 3
  down_after_ms: 5000
`)

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	var cfg testAppConfig
	require.NoError(t, l.Unmarshal(&cfg))
	assert.Equal(t, "redis", cfg.Pool)
	assert.Equal(t, 3, cfg.Witness.Quorum)
	assert.Equal(t, 5000, cfg.Witness.DownAfterMs)
	assert.Equal(t, filepath.Join(dir, "kvrole.yaml"), l.ConfigFileUsed())

	var w witnessSection
	require.NoError(t, l.UnmarshalKey("witness", &w))
	assert.Equal(t, 3, w.Quorum)
}

func TestLoaderEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "kvrole.yaml", "witness:\n  quorum: 3\n")
	t.Setenv("KVTEST_WITNESS_QUORUM", "7")

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	var cfg testAppConfig
	require.NoError(t, l.Unmarshal(&cfg))
	assert.Equal(t, 7, cfg.Witness.Quorum)
}

func TestLoaderDefaultsWithoutFile(t *testing.T) {
	t.Setenv("KVTEST_POOL", "cache")

	l := newTestLoader(t, t.TempDir(), WithDefaults(map[string]any{
		"pool":                  "",
		"witness.quorum":        2,
		"witness.down_after_ms": 10000,
	}))
	require.NoError(t, l.Load(context.Background()))

	var cfg testAppConfig
	require.NoError(t, l.Unmarshal(&cfg))
	assert.Equal(t, "cache", cfg.Pool)
	assert.Equal(t, 2, cfg.Witness.Quorum)
	assert.Equal(t, 10000, cfg.Witness.DownAfterMs)
	assert.Empty(t, l.ConfigFileUsed())
}

func TestLoaderEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "kvrole.yaml", "pool: redis\nwitness:\n  quorum: 2\n")
	writeConfigFile(t, dir, "kvrole.staging.yaml", "witness:\n  quorum: 4\n")
	t.Setenv("KVTEST_ENV", "staging")

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	var cfg testAppConfig
	require.NoError(t, l.Unmarshal(&cfg))
	assert.Equal(t, "redis", cfg.Pool)
	assert.Equal(t, 4, cfg.Witness.Quorum)
}

func TestLoaderFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("pool", "", "pool name")
	fs.Int("witness.quorum", 2, "quorum")
	require.NoError(t, fs.Parse([]string{"--pool=flagged"}))

	dir := t.TempDir()
	writeConfigFile(t, dir, "kvrole.yaml", "pool: redis\n")

	l := newTestLoader(t, dir, WithFlags(fs))
	require.NoError(t, l.Load(context.Background()))

	assert.Equal(t, "flagged", l.Get("pool"))

	var cfg testAppConfig
	require.NoError(t, l.Unmarshal(&cfg))
	assert.Equal(t, 2, cfg.Witness.Quorum)
}

func TestLoaderValidate(t *testing.T) {
	l := newTestLoader(t, t.TempDir())
	err := l.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLoaderMalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "kvrole.yaml", "witness: [unclosed\n")

	l := newTestLoader(t, dir)
	err := l.Load(context.Background())
	require.Error(t, err)
	assert.False(t, IsValidationError(err))
}

func TestLoaderWatchBeforeLoad(t *testing.T) {
	l := newTestLoader(t, t.TempDir())
	_, err := l.Watch(context.Background(), "log.level")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestLoaderWatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping file watch test in short mode")
	}

	dir := t.TempDir()
	path := writeConfigFile(t, dir, "kvrole.yaml", "log:\n  level: info\n")

	l := newTestLoader(t, dir)
	require.NoError(t, l.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := l.Watch(ctx, "log.level")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	select {
	case event := <-ch:
		assert.Equal(t, "log.level", event.Key)
		assert.Equal(t, "debug", event.Value)
		assert.Equal(t, "info", event.OldValue)
		assert.Equal(t, "file", event.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config change event")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, open := <-ch
		return !open
	}, time.Second, 10*time.Millisecond)
}
