package orchestrator

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"orchestrator-runner/pkg/models"
)

const (
	// FolderPageSize bounds the folder listing to its first page.
	FolderPageSize = 100
	// DefaultReleaseTop is the release listing size when no limit is given.
	DefaultReleaseTop = 50
)

const (
	foldersPath     = "/odata/Folders"
	releasesPath    = "/odata/Releases"
	entryPointsPath = "/odata/Processes/UiPath.Server.Configuration.OData.GetPackageEntryPointsV2"
	startJobsPath   = "/odata/Jobs/UiPath.Server.Configuration.OData.StartJobs"
	jobsPath        = "/odata/Jobs"
)

// ListFolders returns the first page of folders visible to the token.
func (c *Client) ListFolders(ctx context.Context) ([]models.Folder, error) {
	var out models.ODataList[models.Folder]
	path := foldersPath + query("$skip", "0", "$top", strconv.Itoa(FolderPageSize))
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// ListReleases returns releases matching filter. A folder id adds both the
// organization unit filter and header.
func (c *Client) ListReleases(ctx context.Context, filter models.ReleaseFilter) ([]models.Release, error) {
	var clauses []string
	if filter.FolderID != 0 {
		clauses = append(clauses, "OrganizationUnitId eq "+strconv.FormatInt(filter.FolderID, 10))
	}
	if filter.ProcessKey != "" {
		clauses = append(clauses, "ProcessKey eq "+quote(filter.ProcessKey))
	}

	var params []string
	if len(clauses) > 0 {
		params = append(params, "$filter", strings.Join(clauses, " and "))
	}
	if filter.Top > 0 {
		params = append(params, "$top", strconv.Itoa(filter.Top))
	}

	headers := map[string]string{HeaderTenantName: c.tenant}
	if filter.FolderID != 0 {
		headers[HeaderOrganizationUnitID] = models.FolderHeader(filter.FolderID)
	}

	var out models.ODataList[models.Release]
	if err := c.get(ctx, releasesPath+query(params...), headers, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// GetEntryPoints returns the entry points of the package identified by
// packageKey (`processKey:version`) as seen from folderID.
func (c *Client) GetEntryPoints(ctx context.Context, packageKey string, folderID int64) ([]models.EntryPoint, error) {
	path := fmt.Sprintf("%s(key='%s')", entryPointsPath, url.PathEscape(strings.ReplaceAll(packageKey, "'", "''")))
	var out models.ODataList[models.EntryPoint]
	if err := c.get(ctx, path, folderHeaders(folderID), &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// StartJobs submits req in folderID and returns the created jobs.
func (c *Client) StartJobs(ctx context.Context, folderID int64, req models.StartJobsRequest) ([]models.Job, error) {
	var out models.ODataList[models.Job]
	if err := c.post(ctx, startJobsPath, folderHeaders(folderID), req, &out); err != nil {
		return nil, err
	}
	if len(out.Value) == 0 {
		return nil, NewError(ErrMalformedResponse.Error(), ErrMalformedResponse, fmt.Errorf("start response lists no jobs"))
	}
	return out.Value, nil
}

// GetJob fetches the current record of job id in folderID.
func (c *Client) GetJob(ctx context.Context, folderID, id int64) (*models.Job, error) {
	var job models.Job
	path := fmt.Sprintf("%s(%d)", jobsPath, id)
	if err := c.get(ctx, path, folderHeaders(folderID), &job); err != nil {
		return nil, err
	}
	if job.State == "" {
		return nil, NewError(ErrMalformedResponse.Error(), ErrMalformedResponse, fmt.Errorf("job %d has no state", id))
	}
	return &job, nil
}

func folderHeaders(folderID int64) map[string]string {
	return map[string]string{HeaderOrganizationUnitID: models.FolderHeader(folderID)}
}

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// query renders alternating key/value pairs as a query string. Spaces are
// percent-encoded rather than turned into '+'.
func query(kv ...string) string {
	if len(kv) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(kv[i])
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(kv[i+1]), "+", "%20"))
	}
	return b.String()
}
