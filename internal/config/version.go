package config

// Version is the release of the evolver service and CLI
const Version = "0.3.0"

// GetVersion returns the current version
func GetVersion() string {
	return Version
}
