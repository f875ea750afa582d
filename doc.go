// File: modconf/doc.go

// Package modconf provides typed, validated configuration specs for game
// mods: a builder assembles a hierarchical spec of defaulted settings, a
// registry binds specs to TOML files per side, and invalid or missing data
// always corrects to defaults instead of failing startup.
//
// Features:
//   - Fluent builder with sections, ranges, whitelists, lists, and enums
//   - Self-correcting loads: bad values revert to defaults and the file is rewritten
//   - Rendered files carry comments, range notes, and allowed-value notes
//   - Client, common, and server sides with conventional file placement
//   - Server-to-client sync of authoritative values without touching disk
//   - File watching with per-file debounce for in-game reloads
//   - Lifecycle notifications for loading, reloading, and unloading
//   - Typed handles with lock-free reads from any goroutine
//
// Quick Start:
//
//	b := modconf.NewBuilder()
//	b.Push("general")
//	maxItems := b.Comment("Maximum number of tracked items.").
//	    DefineInRange("max_items", 10, 1, 1000)
//	greeting := b.DefineString("greeting", "hello")
//	b.Pop()
//	spec, err := b.Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reg := modconf.NewRegistry(modconf.DefaultOptions())
//	if _, err := reg.Register("examplemod", modconf.SideCommon, spec); err != nil {
//	    log.Fatal(err)
//	}
//	if err := reg.LoadSide(ctx, modconf.SideCommon); err != nil {
//	    log.Print(err)
//	}
//
//	n := maxItems.Get()
//	_ = greeting.Get()
//
// Sides:
// Client and common specs load from the local config directory when their
// side starts. Server specs load from the save's directory when a save
// opens, and their rendered documents are synced to connecting clients,
// where they apply in memory only.
//
// Thread Safety:
// Handles read a value's cached slot atomically, so reads never block
// loads. Loads, reloads, and saves of one file are serialized against
// each other.
package modconf
