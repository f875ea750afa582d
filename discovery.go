// FILE: modconf/discovery.go
package modconf

import (
	"os"
	"path/filepath"
)

// ConfigDirEnvVar overrides the conventional config directory when set.
const ConfigDirEnvVar = "MODCONF_CONFIG_DIR"

// ResolveConfigDir resolves the directory holding client and common config
// files. An explicit non-empty dir wins, then the MODCONF_CONFIG_DIR
// environment variable, then the conventional "config" directory under the
// working directory.
func ResolveConfigDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir
	}
	return "config"
}

// ResolveSaveDir resolves the server config directory inside a save
// instance. Server definitions are save-bound: each world carries its own
// files, loaded when the save opens.
func ResolveSaveDir(worldDir string) string {
	return filepath.Join(worldDir, "serverconfig")
}
