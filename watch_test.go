// FILE: modconf/watch_test.go
package modconf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newWatchRegistry(t *testing.T) (*Registry, string, chan Event) {
	t.Helper()
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.ConfigDir = dir
	opts.Debounce = 50 * time.Millisecond
	reg := NewRegistry(opts)
	t.Cleanup(func() { reg.Close() })

	events := make(chan Event, 16)
	reg.Subscribe(func(ev Event) { events <- ev })
	return reg, dir, events
}

func waitEvent(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("Timeout waiting for %s event", kind)
		}
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	b := NewBuilder()
	b.Push("general")
	maxItems := b.DefineInRange("max_items", 10, 1, 100)
	b.Pop()
	spec, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("watchmod", SideCommon, spec); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideCommon); err != nil {
		t.Fatal("Failed to load:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)

	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}

	// Simulate an external edit.
	configPath := filepath.Join(dir, "watchmod-common.toml")
	if err := os.WriteFile(configPath, []byte("[general]\nmax_items = 42\n"), 0644); err != nil {
		t.Fatal("Failed to update config:", err)
	}

	ev := waitEvent(t, events, EventReloading, 5*time.Second)
	if ev.FileName != "watchmod-common.toml" {
		t.Errorf("Expected reload of watchmod-common.toml, got %s", ev.FileName)
	}
	if got := maxItems.Get(); got != 42 {
		t.Errorf("Expected 42 after reload, got %d", got)
	}
}

func TestWatchRecreatesDeletedFile(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	b := NewBuilder()
	b.Push("general")
	maxItems := b.DefineInRange("max_items", 10, 1, 100)
	b.Pop()
	spec, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("watchmod", SideCommon, spec); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideCommon); err != nil {
		t.Fatal("Failed to load:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)

	configPath := filepath.Join(dir, "watchmod-common.toml")
	if err := os.WriteFile(configPath, []byte("[general]\nmax_items = 42\n"), 0644); err != nil {
		t.Fatal("Failed to update config:", err)
	}
	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}
	if err := reg.Reload(context.Background(), mustEntry(t, reg, "watchmod", SideCommon)); err != nil {
		t.Fatal("Failed to reload:", err)
	}
	waitEvent(t, events, EventReloading, time.Second)
	if got := maxItems.Get(); got != 42 {
		t.Fatalf("Expected 42 before deletion, got %d", got)
	}

	if err := os.Remove(configPath); err != nil {
		t.Fatal("Failed to delete config:", err)
	}

	waitEvent(t, events, EventReloading, 5*time.Second)
	if got := maxItems.Get(); got != 10 {
		t.Errorf("Expected default 10 after deletion, got %d", got)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Expected file recreated from defaults: %v", err)
	}
}

func TestWatchIgnoresOwnRewrite(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	b := NewBuilder()
	b.Push("general")
	maxItems := b.DefineInRange("max_items", 10, 1, 100)
	b.Pop()
	spec, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("watchmod", SideCommon, spec); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideCommon); err != nil {
		t.Fatal("Failed to load:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)

	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}

	// An out-of-range edit triggers a reload that corrects the value and
	// rewrites the file. The rewrite's own file event must not trigger a
	// second reload.
	configPath := filepath.Join(dir, "watchmod-common.toml")
	if err := os.WriteFile(configPath, []byte("[general]\nmax_items = 500\n"), 0644); err != nil {
		t.Fatal("Failed to update config:", err)
	}

	ev := waitEvent(t, events, EventReloading, 5*time.Second)
	if ev.Corrections != 1 {
		t.Errorf("Expected 1 correction, got %d", ev.Corrections)
	}
	if got := maxItems.Get(); got != 10 {
		t.Errorf("Expected corrected default 10, got %d", got)
	}

	select {
	case ev := <-events:
		t.Errorf("Unexpected event after self-rewrite: %s", ev.Kind)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatchPicksUpLaterLoads(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}

	b := NewBuilder()
	greeting := b.DefineString("greeting", "hello")
	spec, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("latemod", SideClient, spec); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideClient); err != nil {
		t.Fatal("Failed to load:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)

	configPath := filepath.Join(dir, "latemod-client.toml")
	if err := os.WriteFile(configPath, []byte("greeting = \"hi\"\n"), 0644); err != nil {
		t.Fatal("Failed to update config:", err)
	}

	waitEvent(t, events, EventReloading, 5*time.Second)
	if got := greeting.Get(); got != "hi" {
		t.Errorf("Expected hi after reload, got %q", got)
	}
}

func TestWatchStopsOnClose(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	b := NewBuilder()
	enabled := b.DefineBool("enabled", true)
	spec, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("watchmod", SideCommon, spec); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideCommon); err != nil {
		t.Fatal("Failed to load:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)

	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal("Failed to close:", err)
	}
	waitEvent(t, events, EventUnloading, time.Second)

	configPath := filepath.Join(dir, "watchmod-common.toml")
	if err := os.WriteFile(configPath, []byte("enabled = false\n"), 0644); err != nil {
		t.Fatal("Failed to update config:", err)
	}

	select {
	case ev := <-events:
		t.Errorf("Unexpected event after close: %s", ev.Kind)
	case <-time.After(300 * time.Millisecond):
	}
	if got := enabled.Get(); got != true {
		t.Errorf("Expected default true after close, got %v", got)
	}
}

func TestWatchDropsUnloadedDirs(t *testing.T) {
	reg, dir, events := newWatchRegistry(t)

	b := NewBuilder()
	b.DefineString("greeting", "hello")
	common, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}
	b = NewBuilder()
	b.DefineInRange("max_items", 10, 1, 100)
	server, err := b.Build()
	if err != nil {
		t.Fatal("Failed to build spec:", err)
	}

	if _, err := reg.Register("watchmod", SideCommon, common); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if _, err := reg.Register("watchmod", SideServer, server); err != nil {
		t.Fatal("Failed to register:", err)
	}
	if err := reg.LoadSide(context.Background(), SideCommon); err != nil {
		t.Fatal("Failed to load:", err)
	}
	saveDir := filepath.Join(t.TempDir(), "serverconfig")
	if err := reg.LoadServerConfigs(context.Background(), saveDir); err != nil {
		t.Fatal("Failed to load server configs:", err)
	}
	waitEvent(t, events, EventLoading, time.Second)
	waitEvent(t, events, EventLoading, time.Second)

	if err := reg.Watch(); err != nil {
		t.Fatal("Failed to start watching:", err)
	}
	w := reg.watcher
	if !w.watching(dir) {
		t.Error("Expected the config directory to be watched")
	}
	if !w.watching(saveDir) {
		t.Error("Expected the save directory to be watched")
	}

	reg.UnloadServerConfigs()
	waitEvent(t, events, EventUnloading, time.Second)

	if w.watching(saveDir) {
		t.Error("Expected the save directory watch to drop on unload")
	}
	if !w.watching(dir) {
		t.Error("Expected the config directory watch to survive")
	}
}

func mustEntry(t *testing.T, reg *Registry, owner string, side Side) *Entry {
	t.Helper()
	e, ok := reg.Entry(owner, side)
	if !ok {
		t.Fatalf("Entry %s/%s not registered", owner, side)
	}
	return e
}
