// ABOUTME: Version information for the VoiceChat binaries
// ABOUTME: Reported in logs and by the -version flag
package version

const (
	// Version is the release version
	Version = "0.3.0"

	Product      = "Songbird VoiceChat"
	Manufacturer = "Songbird Audio"
)
