// Package app provides the main application controller
package app

import (
	"fmt"
	"path/filepath"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"hudebug/pkg/bridge"
	"hudebug/pkg/config"
	"hudebug/pkg/events"
	"hudebug/pkg/history"
	"hudebug/pkg/serial"
	"hudebug/pkg/workflow"
)

// Options configures an Application. Zero values select the real
// filesystem, serial ports, adb and clock.
type Options struct {
	ConfigPath string
	// LogDir overrides the log_dir of the configuration file.
	LogDir string
	ADB    string

	Fs            afero.Fs
	PortFactory   serial.PortFactory
	Executor      bridge.Executor
	Clock         clockwork.Clock
	QueueCapacity int
}

// Application wires the serial session, the bridge client, the workflow
// and the log sink of one run.
type Application struct {
	fs     afero.Fs
	clock  clockwork.Clock
	logDir string

	config  *config.FileConfigManager
	queues  *events.Queues
	session *serial.Session
	bridge  *bridge.Client
	orch    *workflow.Orchestrator
}

// New loads the configuration and builds the components. A configuration
// that cannot be read is reported and the defaults are used.
func New(opts Options) (*Application, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = events.DefaultCapacity
	}

	cfgMgr := config.NewFileConfigManager(fs, opts.ConfigPath)
	cfg, err := cfgMgr.Load()
	if err != nil {
		log.Warn().Err(err).Msg("using default configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Msg("configuration has invalid serial settings")
	}

	logDir := opts.LogDir
	if logDir == "" {
		logDir = cfg.LogDir
	}
	if logDir == "" {
		return nil, fmt.Errorf("no log directory configured")
	}

	queues := events.NewQueues(capacity)

	sessionOpts := []serial.SessionOption{serial.WithClock(clock)}
	if opts.PortFactory != nil {
		sessionOpts = append(sessionOpts, serial.WithPortFactory(opts.PortFactory))
	}
	session := serial.NewSession(queues.Serial, sessionOpts...)

	bridgeOpts := []bridge.ClientOption{bridge.WithADB(opts.ADB), bridge.WithFs(fs)}
	if opts.Executor != nil {
		bridgeOpts = append(bridgeOpts, bridge.WithExecutor(opts.Executor))
	}
	client := bridge.NewClient(bridgeOpts...)

	orch := workflow.New(session, client, cfgMgr, queues, workflow.WithClock(clock))

	return &Application{
		fs:      fs,
		clock:   clock,
		logDir:  filepath.Clean(logDir),
		config:  cfgMgr,
		queues:  queues,
		session: session,
		bridge:  client,
		orch:    orch,
	}, nil
}

// LogDir is where the mirror files and the diagnostic log are written.
func (a *Application) LogDir() string {
	return a.logDir
}

// Config returns the configuration manager.
func (a *Application) Config() *config.FileConfigManager {
	return a.config
}

// Orchestrator returns the workflow orchestrator.
func (a *Application) Orchestrator() *workflow.Orchestrator {
	return a.orch
}

// Session returns the serial session.
func (a *Application) Session() *serial.Session {
	return a.session
}

// Queues returns the event queues.
func (a *Application) Queues() *events.Queues {
	return a.queues
}

func (a *Application) newSink(update history.UpdateFunc) *history.Sink {
	return history.NewSink(a.queues,
		history.WithClock(a.clock),
		history.WithMirrors(a.fs, a.logDir),
		history.WithUpdateFunc(update))
}

// reloadConfig re-reads the configuration file and reports the outcome on
// the serial queue.
func (a *Application) reloadConfig() {
	_, changed, err := a.config.Reload()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("config reload failed")
		a.queues.Serial.Putf("[⚠] Config reload failed: %v", err)
	case changed:
		a.queues.Serial.Putf("[ℹ] Config reloaded from %s", a.config.Path())
	default:
		a.queues.Serial.Put("[ℹ] Config unchanged")
	}
}
