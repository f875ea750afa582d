// FILE: modconf/side.go
package modconf

// Side identifies the deployment target of a config: where it loads from
// and whether it synchronizes to connected peers.
type Side uint8

const (
	// SideClient configs load on the client only, from the local config
	// directory. They are never synced.
	SideClient Side = iota

	// SideCommon configs load on both client and server, each from its
	// own local config directory. They are never synced.
	SideCommon

	// SideServer configs are server-authoritative. They load from a
	// per-save-instance directory and sync to connected clients, which
	// apply the payload in memory without touching disk.
	SideServer
)

// String returns the lowercase side name.
func (s Side) String() string {
	switch s {
	case SideClient:
		return "client"
	case SideCommon:
		return "common"
	case SideServer:
		return "server"
	default:
		return "unknown"
	}
}

// Suffix returns the default backing file suffix for the side.
func (s Side) Suffix() string {
	switch s {
	case SideClient:
		return "-client"
	case SideCommon:
		return "-common"
	case SideServer:
		return "-server"
	default:
		return ""
	}
}

// Synced reports whether configs on this side are sent to connected clients.
func (s Side) Synced() bool {
	return s == SideServer
}

// defaultFileName derives the backing file name for an owner on this side.
func (s Side) defaultFileName(owner string) string {
	return owner + s.Suffix() + ".toml"
}
