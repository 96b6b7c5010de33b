// Package version provides version information for the price checker daemon.
package version

// Version is the current version of the price checker daemon.
const Version = "0.4.1"

// AgentString returns the full agent string with versioning.
// Format: poe-price-checker/v{version}
func AgentString() string {
	return "poe-price-checker/v" + Version
}
