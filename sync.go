// FILE: modconf/sync.go
package modconf

import (
	"context"
	"fmt"
)

// SyncPayload carries one server definition's rendered document for
// transmission to a connecting client. The payload format is the same TOML
// the file holds, so both ends share one deserialization path.
type SyncPayload struct {
	// FileName identifies the definition; it is the routing key on the
	// receiving side.
	FileName string
	// Data is the rendered TOML document.
	Data []byte
}

// SyncPayloads renders every loaded server definition for transmission.
// Payloads appear in registration order, so both ends process them in the
// same sequence.
func (r *Registry) SyncPayloads() []SyncPayload {
	entries := r.sideEntries(SideServer)
	payloads := make([]SyncPayload, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		var data []byte
		if e.state != StateUnloaded {
			data = e.spec.Render()
		}
		e.mu.Unlock()
		if data != nil {
			payloads = append(payloads, SyncPayload{FileName: e.fileName, Data: data})
		}
	}
	return payloads
}

// ApplySyncPayload applies a received server document in memory, walking
// the spec exactly like a file reload: valid values refresh the cached
// slots, invalid ones fall back to their defaults. Nothing is written to
// disk; the authoritative file lives on the sender.
//
// A payload naming no registered server definition fails with
// ErrUnknownSyncFile. A payload carrying paths the local spec does not
// define still applies; the unknown paths are reported as an advisory
// SyncPayloadMismatchError and the entry stays loaded.
func (r *Registry) ApplySyncPayload(ctx context.Context, payload SyncPayload) error {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	var target *Entry
	for _, e := range r.order {
		if e.side == SideServer && e.fileName == payload.FileName {
			target = e
			break
		}
	}
	r.mu.RUnlock()

	if target == nil {
		return fmt.Errorf("no server config registered for '%s': %w", payload.FileName, ErrUnknownSyncFile)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target.mu.Lock()
	first := target.state == StateUnloaded
	if first {
		target.state = StateLoading
	} else {
		target.state = StateReloading
	}
	report := target.spec.Apply(payload.Data)
	target.spec.clearDirty() // nothing on disk to rewrite on this side
	target.state = StateLoaded
	target.mu.Unlock()

	r.logReport(target, payload.FileName, report)

	kind := EventLoading
	if !first {
		kind = EventReloading
	}
	r.notify.notify(Event{
		Kind:        kind,
		Owner:       target.owner,
		Side:        target.side,
		FileName:    target.fileName,
		Corrections: len(report.Corrections),
	})

	if len(report.Unknown) > 0 {
		return &SyncPayloadMismatchError{FileName: payload.FileName, Unknown: report.Unknown}
	}
	return nil
}
