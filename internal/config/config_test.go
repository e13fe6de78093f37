package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.WeekStart, again.WeekStart)
	assert.Equal(t, cfg.InitialWeeks, again.InitialWeeks)
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
week_start: Sunday
extend_days: 14
ics:
  - name: holidays
    path: holidays.ics
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultListen, cfg.Listen)
	assert.Equal(t, time.Sunday, cfg.WeekStartDay())
	assert.Equal(t, 10, cfg.InitialWeeks)
	assert.Equal(t, 14, cfg.ExtendDays)
	require.Len(t, cfg.ICS, 1)
	assert.Equal(t, "holidays", cfg.ICS[0].ID)
	assert.Equal(t, filepath.Join(dir, "holidays.ics"), cfg.ICS[0].Path)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"misaligned extend days", "extend_days: 10\n"},
		{"unknown week start", "week_start: caturday\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad cron", "refresh: every now and then\n"},
		{"bad log level", "log_level: loud\n"},
		{"ics without path", "ics:\n  - id: empty\n"},
		{"not yaml", "listen: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.WeekStart = "sunday"
	cfg.ExtendDays = 35
	cfg.Timezone = "Asia/Seoul"

	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sunday", got.WeekStart)
	assert.Equal(t, 35, got.ExtendDays)
	assert.Equal(t, "Asia/Seoul", got.Location().String())
}

func TestSaveNil(t *testing.T) {
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { reloaded <- c })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	updated := DefaultConfig()
	updated.WeekStart = "sunday"
	require.NoError(t, Save(path, updated))

	select {
	case c := <-reloaded:
		assert.Equal(t, "sunday", c.WeekStart)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
