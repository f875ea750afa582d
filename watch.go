// File: modconf/watch.go
package modconf

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// registryWatcher reloads entries when their backing files change on disk.
// One OS watcher covers every config directory; events route to entries by
// cleaned file path and coalesce per entry through a debounce timer, so an
// editor's save burst triggers a single reload.
type registryWatcher struct {
	reg *Registry
	fsw *fsnotify.Watcher

	mu     sync.Mutex
	refs   map[string]struct{}    // backing file paths holding a watch
	dirs   map[string]int         // watched directories, counted by refs
	timers map[string]*time.Timer // keyed by cleaned file path
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func newRegistryWatcher(reg *Registry) (*registryWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &registryWatcher{
		reg:    reg,
		fsw:    fsw,
		refs:   make(map[string]struct{}),
		dirs:   make(map[string]int),
		timers: make(map[string]*time.Timer),
		done:   make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// watching reports whether dir is currently covered by the OS watcher.
func (w *registryWatcher) watching(dir string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirs[filepath.Clean(dir)] > 0 && !w.closed
}

// refPath takes a directory watch reference for a backing file, attaching
// the OS watcher to the directory on its first reference. Watching the
// directory rather than the file survives the rename step of atomic
// rewrites. Re-reffing an already reffed path is a no-op, so reloads call
// this freely; a path whose earlier attach failed gets a retry.
func (w *registryWatcher) refPath(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if _, ok := w.refs[path]; ok {
		return nil
	}
	if w.dirs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory '%s': %w", dir, err)
		}
	}
	w.refs[path] = struct{}{}
	w.dirs[dir]++
	return nil
}

// unrefPath drops a path's directory watch reference, detaching the OS
// watcher from a directory when no loaded file lives in it anymore. Paths
// that never attached are ignored.
func (w *registryWatcher) unrefPath(path string) {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if _, ok := w.refs[path]; !ok {
		return
	}
	delete(w.refs, path)
	w.dirs[dir]--
	if w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if err := w.fsw.Remove(dir); err != nil {
			w.reg.log.Debug().Str("dir", dir).Err(err).Msg("failed to drop directory watch")
		}
	}
}

func (w *registryWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reg.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *registryWatcher) handleEvent(event fsnotify.Event) {
	relevant := event.Op.Has(fsnotify.Write) ||
		event.Op.Has(fsnotify.Create) ||
		event.Op.Has(fsnotify.Remove) ||
		event.Op.Has(fsnotify.Rename)
	if !relevant {
		return
	}

	path := filepath.Clean(event.Name)
	entry := w.reg.entryByPath(path)
	if entry == nil {
		return
	}

	if entry.skipNext.CompareAndSwap(true, false) {
		w.reg.log.Debug().Str("file", path).Msg("ignoring self-inflicted file event")
		return
	}

	w.scheduleReload(entry, path)
}

// scheduleReload arms or re-arms the entry's debounce timer. A removed or
// renamed file reloads too: the reload sees the missing file and recreates
// it from defaults.
func (w *registryWatcher) scheduleReload(e *Entry, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if t, ok := w.timers[path]; ok {
		t.Reset(w.reg.opts.Debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.reg.opts.Debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.reg.opts.ReloadTimeout)
		defer cancel()

		if err := w.reg.Reload(ctx, e); err != nil {
			w.reg.log.Warn().
				Str("owner", e.owner).
				Str("file", path).
				Err(err).
				Msg("auto-reload failed")
		}
	})
}

func (w *registryWatcher) close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
