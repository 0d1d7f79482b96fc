package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.Equal(t, "/data/local/tmp/", cfg.File1Target)
	assert.Equal(t, "reboot\n", cfg.Step3Cmd)
	for step := 1; step <= StepCount; step++ {
		assert.NotEmpty(t, cfg.Script(step), "step %d", step)
	}
	assert.Empty(t, cfg.Script(7))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	m := NewFileConfigManager(afero.NewMemMapFs(), "hudebug.toml")
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	data := []byte("serial_port = \"COM7\"\nstep2_cmd = \"ls /vendor\\n\"\n")
	require.NoError(t, afero.WriteFile(fs, "hudebug.toml", data, 0o644))

	m := NewFileConfigManager(fs, "hudebug.toml")
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "COM7", cfg.SerialPort)
	assert.Equal(t, "ls /vendor\n", cfg.Step2Cmd)
	assert.Equal(t, 115200, cfg.SerialBaud)
	assert.Equal(t, Defaults().Step5Cmd, cfg.Step5Cmd)
	assert.Equal(t, cfg, m.Current())
}

func TestLoad_CorruptFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "hudebug.toml", []byte("serial_baud = [oops"), 0o644))

	m := NewFileConfigManager(fs, "hudebug.toml")
	cfg, err := m.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, Defaults(), cfg)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	m := NewFileConfigManager(fs, "state/hudebug.toml")
	m.Update(func(c *WorkflowConfig) {
		c.SerialPort = "/dev/ttyACM0"
		c.SerialBaud = 921600
		c.SetFilePairs([]FilePair{{Local: "app.apk", Remote: "/data/local/tmp/"}})
	})
	require.NoError(t, m.Save())

	exists, err := afero.Exists(fs, "state/hudebug.toml.tmp")
	require.NoError(t, err)
	assert.False(t, exists)

	reloaded := NewFileConfigManager(fs, "state/hudebug.toml")
	cfg, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, m.Current(), cfg)
	assert.Equal(t, []FilePair{
		{Local: "app.apk", Remote: "/data/local/tmp/"},
		{Local: "", Remote: ""},
	}, cfg.FilePairs())
}

func TestSave_ReadOnlyFilesystem(t *testing.T) {
	t.Parallel()

	m := NewFileConfigManager(afero.NewReadOnlyFs(afero.NewMemMapFs()), "hudebug.toml")
	err := m.Save()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestSetScript(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	require.NoError(t, cfg.SetScript(4, "top -n 1\n"))
	assert.Equal(t, "top -n 1\n", cfg.Script(4))
	assert.Error(t, cfg.SetScript(0, "x"))
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	cfg.SerialBaud = 0
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.SerialPort = ""
	assert.Error(t, cfg.Validate())
}

func TestReload_ReportsChanges(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	m := NewFileConfigManager(fs, "hudebug.toml")
	require.NoError(t, m.Save())

	_, changed, err := m.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, afero.WriteFile(fs, "hudebug.toml", []byte("step4_cmd = \"uptime\"\n"), 0o644))
	cfg, changed, err := m.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "uptime", cfg.Step4Cmd)

	require.NoError(t, afero.WriteFile(fs, "hudebug.toml", []byte("step4_cmd = "), 0o644))
	cfg, changed, err = m.Reload()
	require.ErrorIs(t, err, ErrConfig)
	assert.False(t, changed)
	assert.Equal(t, "uptime", cfg.Step4Cmd)
}

func TestWatch_ReloadsOnExternalEdit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hudebug.toml")
	m := NewFileConfigManager(afero.NewOsFs(), path)
	require.NoError(t, m.Save())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan WorkflowConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- m.Watch(ctx, func(cfg WorkflowConfig) { changes <- cfg })
	}()

	// Give the watcher time to register before editing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("step5_cmd = \"free -m\"\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, "free -m", cfg.Step5Cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}

	cancel()
	require.NoError(t, <-done)
}
