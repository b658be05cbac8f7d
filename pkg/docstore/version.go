package docstore

// Version information for the docstore module.
const (
	// Version is the current version of the docstore module.
	Version = "1.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "1.0.0"
)
