// FILE: modconf/registry.go
package modconf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// EntryState tracks a registered definition through its lifecycle.
type EntryState int

const (
	// StateUnloaded means no backing data has been read into memory;
	// handles serve defaults.
	StateUnloaded EntryState = iota
	// StateLoading means the first read is in progress.
	StateLoading
	// StateLoaded means the cached values reflect the last successful load.
	StateLoaded
	// StateReloading means a subsequent read is in progress; handles keep
	// serving the previous values until it completes.
	StateReloading
)

// String returns the state name.
func (s EntryState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateReloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// Options configures a Registry.
type Options struct {
	// ConfigDir is the directory holding client and common files.
	// Server files live in the per-save directory passed to
	// LoadServerConfigs instead.
	ConfigDir string

	// Logger receives correction and lifecycle logs. The zero logger is
	// silent.
	Logger zerolog.Logger

	// CreateMissing writes a defaults file when the backing file does not
	// exist at load time.
	CreateMissing bool

	// Debounce is the quiet period applied to file change events before a
	// reload runs.
	Debounce time.Duration

	// ReloadTimeout bounds watcher-triggered reloads.
	ReloadTimeout time.Duration
}

// DefaultOptions returns the standard registry options.
func DefaultOptions() Options {
	return Options{
		ConfigDir:     "config",
		CreateMissing: true,
		Debounce:      DefaultDebounce,
		ReloadTimeout: DefaultReloadTimeout,
	}
}

type entryKey struct {
	owner    string
	side     Side
	fileName string
}

// Entry is one registered definition: an owner's spec bound to a side and
// a file name. Loads, reloads, and saves of an entry are serialized by its
// lock; concurrent triggers queue rather than interleave.
type Entry struct {
	owner    string
	side     Side
	fileName string
	spec     *ConfigSpec

	mu    sync.Mutex
	state EntryState
	path  string // absolute backing file path, "" until first load

	// skipNext suppresses the watcher event caused by our own rewrite.
	skipNext atomic.Bool
}

// Owner returns the registering mod's identifier.
func (e *Entry) Owner() string { return e.owner }

// Side returns the entry's side.
func (e *Entry) Side() Side { return e.side }

// FileName returns the entry's file name within its config directory.
func (e *Entry) FileName() string { return e.fileName }

// Spec returns the entry's spec.
func (e *Entry) Spec() *ConfigSpec { return e.spec }

// State returns the entry's current lifecycle state.
func (e *Entry) State() EntryState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Path returns the entry's backing file path, or "" before the first load.
func (e *Entry) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Registry tracks every registered definition and drives its lifecycle:
// initial loads per side, file-change reloads, explicit reloads, sync
// payload application, and unload at shutdown.
type Registry struct {
	opts   Options
	log    zerolog.Logger
	notify *notifier

	mu      sync.RWMutex
	entries map[entryKey]*Entry
	order   []*Entry
	byPath  map[string]*Entry
	watcher *registryWatcher
	closed  bool
}

// NewRegistry creates a registry. Compose opts from DefaultOptions; zero
// durations fall back to the defaults and an empty ConfigDir falls back to
// "config".
func NewRegistry(opts Options) *Registry {
	if opts.ConfigDir == "" {
		opts.ConfigDir = "config"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}
	return &Registry{
		opts:    opts,
		log:     opts.Logger.With().Str("component", "modconf").Logger(),
		notify:  newNotifier(),
		entries: make(map[entryKey]*Entry),
		byPath:  make(map[string]*Entry),
	}
}

// Register binds a spec to (owner, side) under the conventional file name
// <owner><side suffix>.toml.
func (r *Registry) Register(owner string, side Side, spec *ConfigSpec) (*Entry, error) {
	return r.RegisterNamed(owner, side, side.defaultFileName(owner), spec)
}

// RegisterNamed binds a spec to (owner, side) under a custom file name. The
// name must be bare (no directory separators) and end in ".toml". An owner
// may register several files per side, but a file name may be claimed only
// once per side: a side's files share one directory, so a reused name would
// alias another entry's backing file.
func (r *Registry) RegisterNamed(owner string, side Side, fileName string, spec *ConfigSpec) (*Entry, error) {
	if owner == "" {
		return nil, fmt.Errorf("failed to register config: empty owner")
	}
	if spec == nil {
		return nil, fmt.Errorf("failed to register config for '%s': nil spec", owner)
	}
	if fileName == "" || fileName != filepath.Base(fileName) || !strings.HasSuffix(fileName, ".toml") {
		return nil, fmt.Errorf("invalid config file name '%s': %w", fileName, ErrBadFileName)
	}

	key := entryKey{owner: owner, side: side, fileName: fileName}
	entry := &Entry{
		owner:    owner,
		side:     side,
		fileName: fileName,
		spec:     spec,
		state:    StateUnloaded,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	for _, other := range r.order {
		if other.side == side && other.fileName == fileName {
			// The error names the claiming owner.
			return nil, &DuplicateRegistrationError{Owner: other.owner, Side: side, FileName: fileName}
		}
	}
	r.entries[key] = entry
	r.order = append(r.order, entry)

	r.log.Debug().
		Str("owner", owner).
		Str("side", side.String()).
		Str("file", fileName).
		Msg("registered config")
	return entry, nil
}

// Entry looks up the definition registered for (owner, side) under the
// conventional file name.
func (r *Registry) Entry(owner string, side Side) (*Entry, bool) {
	return r.EntryNamed(owner, side, side.defaultFileName(owner))
}

// EntryNamed looks up the definition registered for (owner, side, fileName).
func (r *Registry) EntryNamed(owner string, side Side, fileName string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[entryKey{owner: owner, side: side, fileName: fileName}]
	return e, ok
}

// Entries returns every registered definition in registration order.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, len(r.order))
	copy(out, r.order)
	return out
}

// Subscribe registers an observer for every definition's lifecycle events.
func (r *Registry) Subscribe(observer Observer) *Subscription {
	return r.notify.subscribe("", observer)
}

// SubscribeOwner registers an observer for one owner's lifecycle events.
func (r *Registry) SubscribeOwner(owner string, observer Observer) *Subscription {
	return r.notify.subscribe(owner, observer)
}

// sideEntries snapshots the registered definitions of one side in
// registration order.
func (r *Registry) sideEntries(side Side) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Entry
	for _, e := range r.order {
		if e.side == side {
			out = append(out, e)
		}
	}
	return out
}

// LoadSide loads every definition registered for a local side from
// ConfigDir. Server definitions are save-bound and load through
// LoadServerConfigs instead; passing SideServer fails.
//
// A definition whose file is invalid still loads: bad values fall back to
// their defaults and the file is rewritten. Only I/O failures surface as
// errors, and one definition's failure does not stop the others.
func (r *Registry) LoadSide(ctx context.Context, side Side) error {
	if side == SideServer {
		return fmt.Errorf("failed to load side %s: %w", side, ErrServerSideLoad)
	}
	return r.loadAll(ctx, side, r.opts.ConfigDir)
}

// LoadServerConfigs loads every server definition from the per-save
// directory. It runs when a save opens; UnloadServerConfigs reverses it
// when the save closes.
func (r *Registry) LoadServerConfigs(ctx context.Context, saveDir string) error {
	if saveDir == "" {
		return fmt.Errorf("failed to load server configs: empty save directory")
	}
	return r.loadAll(ctx, SideServer, saveDir)
}

func (r *Registry) loadAll(ctx context.Context, side Side, dir string) error {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	var loadErrors []error
	for _, e := range r.sideEntries(side) {
		if err := r.loadEntry(ctx, e, dir); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}
	return errors.Join(loadErrors...)
}

// Reload re-reads an entry's backing file into memory, rewriting it if
// corrections were applied. The entry must have loaded at least once.
func (r *Registry) Reload(ctx context.Context, e *Entry) error {
	if e == nil {
		return ErrNotRegistered
	}
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	e.mu.Lock()
	if e.state == StateUnloaded {
		e.mu.Unlock()
		return fmt.Errorf("failed to reload '%s': %w", e.fileName, ErrNotLoaded)
	}
	dir := filepath.Dir(e.path)
	e.mu.Unlock()

	return r.loadEntry(ctx, e, dir)
}

// loadEntry performs one load of an entry from dir: first load and reload
// share the same walk. The per-value pass always runs to completion once
// started; the context is only consulted before it begins.
func (r *Registry) loadEntry(ctx context.Context, e *Entry, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	// A caller's closed check can go stale before this lock is taken. A
	// watcher callback landing here after Close would otherwise resurrect
	// the unloaded entry and recreate its file.
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		e.mu.Unlock()
		return ErrClosed
	}

	first := e.state == StateUnloaded
	if first {
		e.state = StateLoading
	} else {
		e.state = StateReloading
	}
	path := filepath.Join(dir, e.fileName)

	data, err := os.ReadFile(path)
	missing := errors.Is(err, os.ErrNotExist)
	if err != nil && !missing {
		if first {
			e.state = StateUnloaded
		} else {
			e.state = StateLoaded // previous values stand
		}
		e.mu.Unlock()
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var report *ApplyReport
	if missing {
		report = e.spec.applyDocument(map[string]any{})
	} else {
		report = e.spec.Apply(data)
	}
	r.logReport(e, path, report)

	if e.spec.IsDirty() && (!missing || r.opts.CreateMissing) {
		armed := r.armSkipNext(e, path)
		if werr := e.spec.SaveTo(path); werr != nil {
			if armed {
				e.skipNext.Store(false)
			}
			// The corrected values stand even when the rewrite fails.
			r.log.Warn().
				Str("owner", e.owner).
				Str("file", path).
				Err(werr).
				Msg("failed to rewrite config file")
		} else if missing {
			r.log.Info().
				Str("owner", e.owner).
				Str("file", path).
				Msg("created config file from defaults")
		}
	}

	e.path = path
	e.state = StateLoaded
	e.mu.Unlock()

	r.indexPath(path, e)

	kind := EventLoading
	if !first {
		kind = EventReloading
	}
	r.notify.notify(Event{
		Kind:        kind,
		Owner:       e.owner,
		Side:        e.side,
		FileName:    e.fileName,
		Corrections: len(report.Corrections),
	})
	return nil
}

// indexPath records the entry's backing path for watch routing, moving the
// watch references along when the path changes.
func (r *Registry) indexPath(path string, e *Entry) {
	path = filepath.Clean(path)

	var stale []string
	r.mu.Lock()
	for old, other := range r.byPath {
		if other == e && old != path {
			delete(r.byPath, old)
			stale = append(stale, old)
		}
	}
	r.byPath[path] = e
	w := r.watcher
	r.mu.Unlock()

	if w == nil {
		return
	}
	for _, old := range stale {
		w.unrefPath(old)
	}
	if err := w.refPath(path); err != nil {
		r.log.Warn().Str("file", path).Err(err).Msg("failed to watch config directory")
	}
}

func (r *Registry) entryByPath(path string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPath[path]
}

func (r *Registry) logReport(e *Entry, path string, report *ApplyReport) {
	if report.ParseErr != nil {
		r.log.Error().
			Str("owner", e.owner).
			Str("file", path).
			Err(report.ParseErr).
			Msg("unparseable config file, using defaults for all values")
	}
	for _, c := range report.Corrections {
		r.log.Warn().
			Str("owner", e.owner).
			Str("file", path).
			Str("path", c.Path).
			Interface("invalid", c.Invalid).
			Interface("corrected", c.Corrected).
			Str("reason", c.Err.Message).
			Msg("corrected config value")
	}
	for _, p := range report.Unknown {
		r.log.Debug().
			Str("owner", e.owner).
			Str("file", path).
			Str("path", p).
			Msg("dropping unknown config key")
	}
}

// Save rewrites an entry's backing file from the effective values. The
// entry must have loaded at least once so a path is bound.
func (r *Registry) Save(e *Entry) error {
	if e == nil {
		return ErrNotRegistered
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateUnloaded {
		return fmt.Errorf("failed to save '%s': %w", e.fileName, ErrNotLoaded)
	}

	armed := r.armSkipNext(e, e.path)
	if err := e.spec.SaveTo(e.path); err != nil {
		if armed {
			e.skipNext.Store(false)
		}
		return err
	}
	return nil
}

// armSkipNext marks the entry's next file event as self-inflicted, but only
// when the file's directory is actually being watched. An unwatched rewrite
// produces no event, and a stale mark would swallow the next real change.
func (r *Registry) armSkipNext(e *Entry, path string) bool {
	r.mu.RLock()
	w := r.watcher
	r.mu.RUnlock()
	if w == nil || !w.watching(filepath.Dir(path)) {
		return false
	}
	e.skipNext.Store(true)
	return true
}

// UnloadServerConfigs drops every loaded server definition back to
// defaults when a save closes. Client and common definitions are process
// scoped and stay loaded.
func (r *Registry) UnloadServerConfigs() {
	for _, e := range r.sideEntries(SideServer) {
		r.unloadEntry(e)
	}
}

func (r *Registry) unloadEntry(e *Entry) {
	e.mu.Lock()
	if e.state == StateUnloaded {
		e.mu.Unlock()
		return
	}
	path := e.path
	e.mu.Unlock()

	// Observers see the final values before the reset.
	r.notify.notify(Event{
		Kind:     EventUnloading,
		Owner:    e.owner,
		Side:     e.side,
		FileName: e.fileName,
	})

	e.mu.Lock()
	e.spec.resetValues()
	e.state = StateUnloaded
	e.path = ""
	e.mu.Unlock()

	p := filepath.Clean(path)
	r.mu.Lock()
	removed := r.byPath[p] == e
	if removed {
		delete(r.byPath, p)
	}
	w := r.watcher
	r.mu.Unlock()

	if removed && w != nil {
		w.unrefPath(p)
	}
}

// Watch starts reloading entries automatically when their backing files
// change on disk. Directories of entries loaded later are picked up as
// they load, and a directory's watch drops when the last loaded file in
// it unloads. Watch is idempotent.
func (r *Registry) Watch() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.watcher != nil {
		r.mu.Unlock()
		return nil
	}
	w, err := newRegistryWatcher(r)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.watcher = w
	paths := make([]string, 0, len(r.byPath))
	for path := range r.byPath {
		paths = append(paths, path)
	}
	r.mu.Unlock()

	var watchErrors []error
	for _, path := range paths {
		if err := w.refPath(path); err != nil {
			watchErrors = append(watchErrors, err)
		}
	}
	return errors.Join(watchErrors...)
}

// Close stops the watcher and unloads every definition. The registry
// accepts no further work afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	w := r.watcher
	r.watcher = nil
	r.mu.Unlock()

	var err error
	if w != nil {
		err = w.close()
	}

	for _, e := range r.Entries() {
		r.unloadEntry(e)
	}
	return err
}
