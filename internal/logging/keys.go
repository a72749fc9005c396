package logging

// Static keys for structured log output.
const (
	KeyError = "err"

	KeyRunID   = "run_id"
	KeyStage   = "stage"
	KeyCount   = "count"
	KeyMethod  = "method"
	KeyPath    = "path"
	KeyStatus  = "status"
	KeyElapsed = "elapsed"

	KeyOrganization = "organization"
	KeyTenant       = "tenant"
	KeyFolderID     = "folder_id"
	KeyReleaseKey   = "release_key"
	KeyPackageKey   = "package_key"
	KeyEntryPoint   = "entry_point"

	KeyJobID    = "job_id"
	KeyState    = "state"
	KeyAttempt  = "attempt"
	KeyAttempts = "max_attempts"
)
