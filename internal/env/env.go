package env

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	appName = "depbuild"

	// ConfigName is the name of a project-level configuration file.
	ConfigName = "depbuild.hcl"
)

// ConfigFile returns the path of the user configuration file, whether or
// not it exists.
//
//	Linux:   $XDG_CONFIG_HOME/depbuild/config.hcl
//	macOS:   ~/Library/Application Support/depbuild/config.hcl
func ConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.hcl")
}

// FindConfigFile looks for config.hcl in the user configuration directory
// and then in the system ones.
func FindConfigFile() (string, bool) {
	path, err := xdg.SearchConfigFile(filepath.Join(appName, "config.hcl"))
	if err != nil {
		return "", false
	}
	return path, true
}
