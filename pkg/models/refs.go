package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned when an edge token cannot be decoded into a
// composite reference.
var ErrInvalidToken = errors.New("invalid reference token")

// ProcessRef carries everything downstream stages need about a release:
// the release key starts jobs, the process key and version address the
// package entry points.
type ProcessRef struct {
	ReleaseKey string `json:"key"`
	ProcessKey string `json:"processKey"`
	Version    string `json:"version"`
}

// PackageKey is the `processKey:version` identifier of the package.
func (r ProcessRef) PackageKey() string {
	return r.ProcessKey + ":" + r.Version
}

// Token serializes the reference into a single opaque string for edges
// that only carry one scalar (CLI flags, query parameters, tool arguments).
func (r ProcessRef) Token() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// ParseProcessRef decodes a token produced by ProcessRef.Token.
func ParseProcessRef(token string) (ProcessRef, error) {
	var ref ProcessRef
	if err := decodeToken(token, &ref); err != nil {
		return ProcessRef{}, err
	}
	if ref.ReleaseKey == "" || ref.ProcessKey == "" || ref.Version == "" {
		return ProcessRef{}, fmt.Errorf("%w: process reference needs key, processKey and version", ErrInvalidToken)
	}
	return ref, nil
}

// EntryPointRef identifies an entry point and carries its input schema so a
// caller can validate arguments without another round trip.
type EntryPointRef struct {
	UniqueID            string `json:"uniqueId"`
	InputArgumentSchema string `json:"inputArgs,omitempty"`
}

// Token serializes the reference for single-scalar edges.
func (r EntryPointRef) Token() string {
	b, _ := json.Marshal(r)
	return string(b)
}

// ParseEntryPointRef decodes a token produced by EntryPointRef.Token. A bare
// unique id (not a JSON object) is accepted as well.
func ParseEntryPointRef(token string) (EntryPointRef, error) {
	token = strings.TrimSpace(token)
	if token != "" && !strings.HasPrefix(token, "{") {
		return EntryPointRef{UniqueID: token}, nil
	}
	var ref EntryPointRef
	if err := decodeToken(token, &ref); err != nil {
		return EntryPointRef{}, err
	}
	if ref.UniqueID == "" {
		return EntryPointRef{}, fmt.Errorf("%w: entry point reference needs uniqueId", ErrInvalidToken)
	}
	return ref, nil
}

func decodeToken(token string, v any) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	if err := json.Unmarshal([]byte(token), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// Option is a display name and an opaque value, the shape every selection
// edge renders.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FolderOption is a folder projected for selection
type FolderOption struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// Option renders the folder for a single-scalar edge.
func (o FolderOption) Option() Option {
	return Option{Name: o.Name, Value: FolderHeader(o.ID)}
}

// ProcessOption is a release projected for selection
type ProcessOption struct {
	Name string     `json:"name"`
	Ref  ProcessRef `json:"ref"`
}

// Option renders the process for a single-scalar edge.
func (o ProcessOption) Option() Option {
	return Option{Name: o.Name, Value: o.Ref.Token()}
}

// EntryPointOption is an entry point projected for selection
type EntryPointOption struct {
	Name string        `json:"name"`
	Ref  EntryPointRef `json:"ref"`
}

// Option renders the entry point for a single-scalar edge.
func (o EntryPointOption) Option() Option {
	return Option{Name: o.Name, Value: o.Ref.Token()}
}
