package auth

const (
	ScopeOpenID  = "openid"
	ScopeProfile = "profile"
	ScopeEmail   = "email"
	// ScopeRead allows listing folders, processes, entry points and releases.
	ScopeRead = "runner:read"
	// ScopeRun allows starting jobs.
	ScopeRun = "runner:run"
)

// AllScopes defines the full set of scopes requested by the API docs page
var AllScopes = []string{
	ScopeOpenID,
	ScopeProfile,
	ScopeEmail,
	ScopeRead,
	ScopeRun,
}
