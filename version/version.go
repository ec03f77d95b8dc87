package version

const (
	Version = "0.4.0"
)

// MARK: AsString
// Returns the version as a string
func AsString() string {
	return Version
}

// MARK: UserAgent
// Returns the identifier sent to backends that accept a client name.
func UserAgent() string {
	return "snapcontrol/" + Version
}
