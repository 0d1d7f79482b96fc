// Package config persists the workflow configuration: serial parameters,
// the two push pairs and the command script of each step.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"hudebug/pkg/serial"
	"hudebug/pkg/syncutil"
)

// DefaultFile is the configuration file name used when none is given.
const DefaultFile = "hudebug.toml"

// StepCount is the number of workflow steps with a command script.
const StepCount = 6

// ErrConfig matches every load or save failure. Such failures are never fatal.
var ErrConfig = errors.New("config error")

// ConfigError describes a failed load or save.
type ConfigError struct {
	Op    string
	Path  string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// FilePair is a local file and the remote path it is pushed to.
type FilePair struct {
	Local  string
	Remote string
}

// WorkflowConfig is the flat snapshot persisted between runs.
type WorkflowConfig struct {
	SerialPort  string `toml:"serial_port"`
	SerialBaud  int    `toml:"serial_baud"`
	File1Path   string `toml:"file1_path"`
	File1Target string `toml:"file1_target"`
	File2Path   string `toml:"file2_path"`
	File2Target string `toml:"file2_target"`
	LogDir      string `toml:"log_dir"`
	Step1Cmd    string `toml:"step1_cmd"`
	Step2Cmd    string `toml:"step2_cmd"`
	Step3Cmd    string `toml:"step3_cmd"`
	Step4Cmd    string `toml:"step4_cmd"`
	Step5Cmd    string `toml:"step5_cmd"`
	Step6Cmd    string `toml:"step6_cmd"`
}

// Defaults returns the built-in configuration.
func Defaults() WorkflowConfig {
	return WorkflowConfig{
		SerialPort:  serial.DefaultPort(),
		SerialBaud:  115200,
		File1Target: "/data/local/tmp/",
		File2Target: "/data/local/tmp/",
		LogDir:      "./logs/",
		Step1Cmd:    "getprop\nls /system\n",
		Step2Cmd:    "getprop ro.build.fingerprint\ngetprop ro.product.model\n",
		Step3Cmd:    "reboot\n",
		Step4Cmd:    "cat /proc/version\ngetprop ro.build.fingerprint\n",
		Step5Cmd:    "dmesg | tail -20\nlogread | tail -20\n",
		Step6Cmd:    "adb pull /sdcard/test1114phone5.txt .\nadb logcat -d > logcat.txt\n",
	}
}

// Script returns the command script of step (1-based). Unknown steps yield "".
func (c WorkflowConfig) Script(step int) string {
	switch step {
	case 1:
		return c.Step1Cmd
	case 2:
		return c.Step2Cmd
	case 3:
		return c.Step3Cmd
	case 4:
		return c.Step4Cmd
	case 5:
		return c.Step5Cmd
	case 6:
		return c.Step6Cmd
	default:
		return ""
	}
}

// SetScript replaces the command script of step (1-based).
func (c *WorkflowConfig) SetScript(step int, script string) error {
	switch step {
	case 1:
		c.Step1Cmd = script
	case 2:
		c.Step2Cmd = script
	case 3:
		c.Step3Cmd = script
	case 4:
		c.Step4Cmd = script
	case 5:
		c.Step5Cmd = script
	case 6:
		c.Step6Cmd = script
	default:
		return fmt.Errorf("invalid step: %d", step)
	}
	return nil
}

// FilePairs returns the two push pairs in order.
func (c WorkflowConfig) FilePairs() []FilePair {
	return []FilePair{
		{Local: strings.TrimSpace(c.File1Path), Remote: strings.TrimSpace(c.File1Target)},
		{Local: strings.TrimSpace(c.File2Path), Remote: strings.TrimSpace(c.File2Target)},
	}
}

// SetFilePairs stores up to two push pairs.
func (c *WorkflowConfig) SetFilePairs(pairs []FilePair) {
	c.File1Path, c.File1Target = "", ""
	c.File2Path, c.File2Target = "", ""
	if len(pairs) > 0 {
		c.File1Path, c.File1Target = pairs[0].Local, pairs[0].Remote
	}
	if len(pairs) > 1 {
		c.File2Path, c.File2Target = pairs[1].Local, pairs[1].Remote
	}
}

// Validate checks the serial parameters.
func (c WorkflowConfig) Validate() error {
	sc := serial.DefaultConfig()
	sc.Port = c.SerialPort
	sc.BaudRate = c.SerialBaud
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("invalid serial settings: %w", err)
	}
	return nil
}

// ConfigManager loads and saves the workflow configuration
type ConfigManager interface {
	Load() (WorkflowConfig, error)
	Current() WorkflowConfig
	Update(fn func(*WorkflowConfig)) WorkflowConfig
	Save() error
	Path() string
}

// FileConfigManager implements ConfigManager on a TOML file
type FileConfigManager struct {
	fs   afero.Fs
	path string

	mu      syncutil.RWMutex
	current WorkflowConfig
}

// NewFileConfigManager creates a manager for path on fs, seeded with defaults.
func NewFileConfigManager(fs afero.Fs, path string) *FileConfigManager {
	if path == "" {
		path = DefaultFile
	}
	return &FileConfigManager{
		fs:      fs,
		path:    path,
		current: Defaults(),
	}
}

// Path returns the configuration file path.
func (m *FileConfigManager) Path() string {
	return m.path
}

// Load reads the file over the defaults. A missing file is not an error.
// On failure the defaults stay in effect and a *ConfigError is returned.
func (m *FileConfigManager) Load() (WorkflowConfig, error) {
	cfg, err := m.read()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = cfg
	return cfg, err
}

func (m *FileConfigManager) read() (WorkflowConfig, error) {
	defaults := Defaults()

	exists, err := afero.Exists(m.fs, m.path)
	if err != nil {
		return defaults, &ConfigError{Op: "stat", Path: m.path, Cause: err}
	}
	if !exists {
		return defaults, nil
	}

	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return defaults, &ConfigError{Op: "read", Path: m.path, Cause: err}
	}

	// Unmarshal on top of the defaults so missing keys keep their value.
	cfg := defaults
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return defaults, &ConfigError{Op: "parse", Path: m.path, Cause: err}
	}
	return cfg, nil
}

// Current returns a copy of the configuration in effect.
func (m *FileConfigManager) Current() WorkflowConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Update applies fn to the configuration in effect and returns the result.
func (m *FileConfigManager) Update(fn func(*WorkflowConfig)) WorkflowConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.current)
	return m.current
}

// Save writes the configuration in effect. The file is replaced through a
// temporary sibling so a crash mid-write leaves the previous snapshot.
func (m *FileConfigManager) Save() error {
	cfg := m.Current()

	data, err := toml.Marshal(cfg)
	if err != nil {
		return &ConfigError{Op: "marshal", Path: m.path, Cause: err}
	}

	if dir := filepath.Dir(m.path); dir != "." {
		if err := m.fs.MkdirAll(dir, 0o755); err != nil {
			return &ConfigError{Op: "write", Path: m.path, Cause: err}
		}
	}

	tmp := m.path + ".tmp"
	if err := afero.WriteFile(m.fs, tmp, data, 0o644); err != nil {
		return &ConfigError{Op: "write", Path: m.path, Cause: err}
	}
	if err := m.fs.Rename(tmp, m.path); err != nil {
		_ = m.fs.Remove(tmp)
		return &ConfigError{Op: "write", Path: m.path, Cause: err}
	}
	return nil
}

// Reload re-reads the file and reports whether the configuration changed.
// A file that fails to parse leaves the configuration in effect untouched.
func (m *FileConfigManager) Reload() (WorkflowConfig, bool, error) {
	cfg, err := m.read()
	if err != nil {
		return m.Current(), false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg == m.current {
		return cfg, false, nil
	}
	m.current = cfg
	return cfg, true, nil
}
