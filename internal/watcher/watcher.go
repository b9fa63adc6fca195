// Package watcher runs a long-lived worker over the approved-plans
// directory, handing each plan document to the engine as it appears.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/davidmying/wingman/internal/engine"
)

// settleDelay gives writers time to finish before a new file is executed.
const settleDelay = 200 * time.Millisecond

// Watcher feeds approved plan files to an Engine.
type Watcher struct {
	dir    string
	engine *engine.Engine
}

// New creates a Watcher over dir.
func New(dir string, eng *engine.Engine) *Watcher {
	return &Watcher{dir: dir, engine: eng}
}

// Run drains plans already in the directory, then blocks processing new
// ones until ctx is cancelled. Execution is single-worker; the lease table
// protects against a second concurrent server.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create watch directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			time.Sleep(settleDelay)
			w.process(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watch error: %v\n", err)
		}
	}
}

func (w *Watcher) drain(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not list %s: %v\n", w.dir, err)
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		w.process(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Raced with a move; the file already left the queue.
		return
	}
	result := w.engine.ProcessPlan(ctx, path)
	if result.Success {
		fmt.Printf("✓ %s (%d action(s), branch %s)\n", filepath.Base(path), result.ActionsRun, result.BranchName)
		return
	}
	fmt.Fprintf(os.Stderr, "✗ %s: %s\n", filepath.Base(path), result.Error)
}
