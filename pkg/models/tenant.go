package models

import "fmt"

// Credentials identify a tenant of the orchestrator and carry the bearer
// token used for every call. They are supplied by the credential store and
// never persisted.
type Credentials struct {
	Organization string `json:"organization"`
	Tenant       string `json:"tenant"`
	Token        string `json:"-"`
}

// String keeps the token out of logs.
func (c Credentials) String() string {
	return fmt.Sprintf("%s/%s", c.Organization, c.Tenant)
}

// Valid reports whether every part of the triple is present.
func (c Credentials) Valid() bool {
	return c.Organization != "" && c.Tenant != "" && c.Token != ""
}
