package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"hudebug/pkg/config"
	"hudebug/pkg/events"
	"hudebug/pkg/history"
	"hudebug/pkg/menu"
	"hudebug/pkg/ui"
	"hudebug/pkg/workflow"
)

// ErrStepsAborted is returned by RunHeadless when a step was aborted.
var ErrStepsAborted = errors.New("steps aborted")

// RunHeadless runs steps in order and prints the feed to out, one line per
// log line prefixed with its origin. It returns when every step finished or
// ctx is done.
func (a *Application) RunHeadless(ctx context.Context, steps []workflow.Step, out io.Writer) error {
	var mu sync.Mutex
	sink := a.newSink(func(added []events.LogLine) {
		mu.Lock()
		defer mu.Unlock()
		for _, line := range added {
			fmt.Fprintf(out, "[%s] %s\n", line.Origin, line.Text)
		}
	})

	sinkCtx, stopSink := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		sink.Run(sinkCtx)
		return nil
	})

	if len(steps) == 0 || steps[0] != workflow.StepConnect {
		a.orch.AutoConnect()
	}

	aborted := 0
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		if err := a.orch.Run(ctx, step); err != nil {
			aborted++
			log.Warn().Err(err).Int("step", int(step)).Msg("step aborted")
		}
	}

	a.orch.Shutdown()
	stopSink()
	_ = g.Wait()

	if aborted > 0 {
		return fmt.Errorf("%w: %d of %d", ErrStepsAborted, aborted, len(steps))
	}
	return ctx.Err()
}

// RunInteractive shows the two-pane view on screen and maps keys to steps
// until the user quits or ctx is done. Steps still running when the user
// quits are waited for before the serial session is closed.
func (a *Application) RunInteractive(ctx context.Context, screen tcell.Screen) error {
	view := ui.NewView(screen, "hudebug "+a.config.Path())
	if err := view.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sink *history.Sink
	sink = a.newSink(func([]events.LogLine) {
		_, rows := screen.Size()
		view.SetPanes(sink.History(events.OriginSerial).Tail(rows), sink.History(events.OriginBridge).Tail(rows))
		view.SetStatus(a.statusLine())
		view.Draw()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sink.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := a.config.Watch(gctx, func(config.WorkflowConfig) {
			a.queues.Serial.Putf("[ℹ] Config reloaded from %s", a.config.Path())
		})
		if err != nil {
			log.Warn().Err(err).Msg("config watch disabled")
		}
		return nil
	})

	stepMenu := a.stepMenu(gctx, cancel)
	view.AddOverlay(stepMenu)

	view.SetStatus(a.statusLine())
	view.Draw()
	a.orch.AutoConnect()

	evCh := make(chan tcell.Event)
	pollDone := make(chan struct{})
	go func() {
		defer close(pollDone)
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case evCh <- ev:
			case <-gctx.Done():
				return
			}
		}
	}()

	a.eventLoop(gctx, view, stepMenu, evCh)

	cancel()
	a.orch.Wait()
	a.orch.Shutdown()
	err := g.Wait()

	view.Fini()
	<-pollDone
	return err
}

// stepMenu builds the pop-up listing the steps and the view actions.
// Quitting from the menu cancels the interactive run.
func (a *Application) stepMenu(ctx context.Context, quit context.CancelFunc) *menu.Menu {
	m := menu.New("Steps")
	for _, step := range workflow.Steps {
		m.AddItem(menu.MenuItem{
			Label:    step.String(),
			Shortcut: rune('0' + int(step)),
			Action:   func() { a.orch.Trigger(ctx, step) },
			Enabled:  func() bool { return !a.orch.Running(step) },
		})
	}
	m.AddItem(menu.MenuItem{
		Label:    "Send Ctrl+C",
		Shortcut: 'i',
		Action:   a.orch.SendInterrupt,
		Enabled:  a.orch.Interruptible,
	})
	m.AddItem(menu.MenuItem{Label: "Reload config", Shortcut: 'r', Action: a.reloadConfig})
	m.AddItem(menu.MenuItem{Label: "Quit", Shortcut: 'q', Action: quit})
	return m
}

func (a *Application) eventLoop(ctx context.Context, view *ui.View, stepMenu *menu.Menu, evCh <-chan tcell.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-evCh:
			switch ev := ev.(type) {
			case *tcell.EventResize:
				view.Sync()
			case *tcell.EventKey:
				if stepMenu.HandleKey(ev) {
					view.Draw()
					continue
				}
				cmd := ui.KeyCommand(ev)
				switch cmd.Action {
				case ui.ActionQuit:
					return
				case ui.ActionMenu:
					stepMenu.Show()
					view.Draw()
				case ui.ActionStep:
					a.orch.Trigger(ctx, workflow.Step(cmd.Step))
				case ui.ActionInterrupt:
					a.orch.SendInterrupt()
				case ui.ActionReload:
					a.reloadConfig()
				}
			}
		}
	}
}

func (a *Application) statusLine() string {
	var running []string
	for _, step := range workflow.Steps {
		if a.orch.Running(step) {
			running = append(running, fmt.Sprint(int(step)))
		}
	}

	state := "serial " + a.session.State().String()
	if len(running) > 0 {
		state += fmt.Sprintf(" | running: %v", running)
	}
	if a.orch.Interruptible() {
		state += " | i sends Ctrl+C"
	}
	if dropped := a.queues.Serial.Dropped() + a.queues.Bridge.Dropped(); dropped > 0 {
		state += fmt.Sprintf(" | dropped %d lines", dropped)
	}
	return state + " | logs " + a.logDir
}
