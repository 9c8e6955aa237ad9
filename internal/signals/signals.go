// Package signals delivers cancel and pause requests to a running session
// through files in .conclave/signals.
//
// A signal file's content names the target session. Empty content targets
// every session watching the directory.
package signals

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal is a control request.
type Signal string

const (
	Cancel Signal = "cancel"
	Pause  Signal = "pause"
	Resume Signal = "resume"
)

// All lists every known signal.
var All = []Signal{Cancel, Pause, Resume}

// Valid returns true if the signal is a known value.
func (s Signal) Valid() bool {
	switch s {
	case Cancel, Pause, Resume:
		return true
	default:
		return false
	}
}

// Controller is the part of a session that signals drive.
type Controller interface {
	Cancel()
	Pause()
	Resume()
}

// Dir returns the signals directory under a project root.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, ".conclave", "signals")
}

// Send writes a signal file for sessionID. An empty sessionID targets any session.
func Send(projectRoot string, sig Signal, sessionID string) error {
	if !sig.Valid() {
		return fmt.Errorf("unknown signal %q", sig)
	}
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create signals dir: %w", err)
	}
	// Write then rename so the watcher never reads a partial file.
	tmp := filepath.Join(dir, "."+string(sig)+".tmp")
	if err := os.WriteFile(tmp, []byte(sessionID), 0644); err != nil {
		return fmt.Errorf("write %s signal: %w", sig, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, string(sig))); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("publish %s signal: %w", sig, err)
	}
	return nil
}

// Clear removes every pending signal file.
func Clear(projectRoot string) {
	for _, sig := range All {
		os.Remove(filepath.Join(Dir(projectRoot), string(sig)))
	}
}

// Watcher reports signals addressed to one session. It is notified by
// fsnotify and also polls, so signals sent before Watch started or missed
// by the notifier are still delivered.
type Watcher struct {
	dir       string
	sessionID string
	poll      time.Duration

	out  chan Signal
	once sync.Once
	done chan struct{}
	fsw  *fsnotify.Watcher
}

// NewWatcher creates a watcher for sessionID under projectRoot.
// A poll interval of zero uses 500ms.
func NewWatcher(projectRoot, sessionID string, poll time.Duration) (*Watcher, error) {
	dir := Dir(projectRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create signals dir: %w", err)
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	w := &Watcher{
		dir:       dir,
		sessionID: sessionID,
		poll:      poll,
		out:       make(chan Signal, len(All)),
		done:      make(chan struct{}),
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("[signals] file watcher unavailable, polling only: %v", err)
		return w, nil
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		log.Printf("[signals] cannot watch %s, polling only: %v", dir, err)
		return w, nil
	}
	w.fsw = fsw
	return w, nil
}

// Signals returns the delivery channel. It is closed when Watch returns.
func (w *Watcher) Signals() <-chan Signal { return w.out }

// Watch delivers signals until ctx is done or Close is called.
func (w *Watcher) Watch(ctx context.Context) {
	defer close(w.out)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w.fsw != nil {
		events = w.fsw.Events
		errs = w.fsw.Errors
	}

	w.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if sig := Signal(filepath.Base(ev.Name)); sig.Valid() {
				w.consume(ctx, sig)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[signals] watcher error: %v", err)
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

// scan checks every signal file directly.
func (w *Watcher) scan(ctx context.Context) {
	for _, sig := range All {
		w.consume(ctx, sig)
	}
}

// consume delivers sig when its file exists and targets this session, then
// removes the file so the same request is not seen twice.
func (w *Watcher) consume(ctx context.Context, sig Signal) {
	path := filepath.Join(w.dir, string(sig))
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	target := strings.TrimSpace(string(data))
	if target != "" && target != w.sessionID {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[signals] cannot remove %s: %v", path, err)
	}
	select {
	case w.out <- sig:
	case <-ctx.Done():
	case <-w.done:
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

// Drive applies signals to c until the watcher stops.
func Drive(w *Watcher, c Controller) {
	for sig := range w.Signals() {
		switch sig {
		case Cancel:
			c.Cancel()
		case Pause:
			c.Pause()
		case Resume:
			c.Resume()
		}
	}
}
