package common

// File permission constants shared by every writer in the tool.
const (
	// FilePermissionSecure is used for config and credential files.
	FilePermissionSecure = 0600

	// FilePermissionNormal is used for generated artifacts and exports.
	FilePermissionNormal = 0644

	// DirPermissionSecure is used for the config directory.
	DirPermissionSecure = 0700

	// DirPermissionNormal is used for export and debug directories.
	DirPermissionNormal = 0755
)
