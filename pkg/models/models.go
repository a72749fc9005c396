// Package models defines the domain models for the orchestrator runner
package models

import (
	"encoding/json"
	"strconv"
)

// JobState is the lifecycle state reported by the orchestrator for a job
type JobState string

const (
	JobStatePending     JobState = "Pending"
	JobStateRunning     JobState = "Running"
	JobStateStopping    JobState = "Stopping"
	JobStateTerminating JobState = "Terminating"
	JobStateSuspended   JobState = "Suspended"
	JobStateResumed     JobState = "Resumed"
	JobStateStopped     JobState = "Stopped"
	JobStateSuccessful  JobState = "Successful"
	JobStateFaulted     JobState = "Faulted"
)

// Terminal reports whether the runner stops polling once it observes s.
// Only Successful and Faulted end an await; everything else keeps polling
// until the attempt ceiling is reached.
func (s JobState) Terminal() bool {
	return s == JobStateSuccessful || s == JobStateFaulted
}

// ODataList is the envelope the orchestrator wraps around every collection
type ODataList[T any] struct {
	Context string `json:"@odata.context,omitempty"`
	Count   *int   `json:"@odata.count,omitempty"`
	Value   []T    `json:"value"`
}

// Folder is an organizational unit that scopes releases and jobs
type Folder struct {
	ID                 int64  `json:"Id"`
	Key                string `json:"Key,omitempty"`
	DisplayName        string `json:"DisplayName"`
	FullyQualifiedName string `json:"FullyQualifiedName"`
}

// Release is a deployed, versioned process package inside one folder
type Release struct {
	ID                 int64  `json:"Id"`
	Key                string `json:"Key"`
	ProcessKey         string `json:"ProcessKey"`
	ProcessVersion     string `json:"ProcessVersion"`
	Name               string `json:"Name"`
	Description        string `json:"Description,omitempty"`
	OrganizationUnitID int64  `json:"OrganizationUnitId"`
}

// Ref returns the composite reference used to address the release downstream.
func (r Release) Ref() ProcessRef {
	return ProcessRef{
		ReleaseKey: r.Key,
		ProcessKey: r.ProcessKey,
		Version:    r.ProcessVersion,
	}
}

// EntryPoint is a named start location within a process package
type EntryPoint struct {
	ID              int64  `json:"Id,omitempty"`
	UniqueID        string `json:"UniqueId"`
	Path            string `json:"Path"`
	InputArguments  string `json:"InputArguments,omitempty"`
	OutputArguments string `json:"OutputArguments,omitempty"`
}

// Ref returns the composite reference for the entry point.
func (e EntryPoint) Ref() EntryPointRef {
	return EntryPointRef{
		UniqueID:            e.UniqueID,
		InputArgumentSchema: e.InputArguments,
	}
}

// Job is a single execution of a release
type Job struct {
	ID              int64    `json:"Id"`
	Key             string   `json:"Key,omitempty"`
	State           JobState `json:"State"`
	ReleaseName     string   `json:"ReleaseName,omitempty"`
	Info            string   `json:"Info,omitempty"`
	InputArguments  *string  `json:"InputArguments,omitempty"`
	OutputArguments *string  `json:"OutputArguments,omitempty"`
}

// Output returns the job's output arguments as raw JSON. The orchestrator
// encodes them as a JSON string; an absent or empty value yields nil.
func (j *Job) Output() json.RawMessage {
	if j == nil || j.OutputArguments == nil || *j.OutputArguments == "" {
		return nil
	}
	return json.RawMessage(*j.OutputArguments)
}

// StartInfo describes the job(s) to start for a release
type StartInfo struct {
	ReleaseKey     string `json:"ReleaseKey"`
	JobsCount      int    `json:"JobsCount"`
	InputArguments string `json:"InputArguments,omitempty"`
}

// StartJobsRequest is the body of the StartJobs action
type StartJobsRequest struct {
	StartInfo StartInfo `json:"startInfo"`
}

// NewStartJobsRequest builds a request that starts a single job of the
// referenced release. args is forwarded verbatim when present.
func NewStartJobsRequest(ref ProcessRef, args json.RawMessage) StartJobsRequest {
	req := StartJobsRequest{
		StartInfo: StartInfo{
			ReleaseKey: ref.ReleaseKey,
			JobsCount:  1,
		},
	}
	if len(args) > 0 {
		req.StartInfo.InputArguments = string(args)
	}
	return req
}

// ReleaseFilter narrows a release listing
type ReleaseFilter struct {
	FolderID   int64
	ProcessKey string
	Top        int
}

// FolderHeader formats a folder id for the organization unit header.
func FolderHeader(folderID int64) string {
	return strconv.FormatInt(folderID, 10)
}
