// Package orchestrator is the single point of outbound access to the
// orchestrator management API.
package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"orchestrator-runner/pkg/models"
)

// DefaultURL is the cloud host used when none is configured.
const DefaultURL = "https://cloud.uipath.com"

// Headers understood by the orchestrator.
const (
	HeaderAuthorization      = "Authorization"
	HeaderOrganizationUnitID = "X-UIPATH-OrganizationUnitId"
	HeaderTenantName         = "X-UIPATH-TenantName"
)

// Client shapes requests against one tenant. The base URL and the bearer
// header template are fixed at construction.
type Client struct {
	http    HTTPClient
	baseURL string
	headers map[string]string
	tenant  string
}

// New creates a new Client for the tenant identified by creds. host is the
// scheme and host of the orchestrator deployment; DefaultURL when empty.
func New(creds models.Credentials, host string, transport HTTPClient) *Client {
	if host == "" {
		host = DefaultURL
	}
	return &Client{
		http:    transport,
		baseURL: BaseURL(host, creds.Organization, creds.Tenant),
		headers: map[string]string{
			HeaderAuthorization: "Bearer " + creds.Token,
		},
		tenant: creds.Tenant,
	}
}

// BaseURL returns the tenant-scoped orchestrator root.
func BaseURL(host, organization, tenant string) string {
	return strings.TrimRight(host, "/") + "/" + url.PathEscape(organization) + "/" + url.PathEscape(tenant) + "/orchestrator_"
}

// BaseURL returns the URL every request path is appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request sends method to path (relative to the base URL). headers are laid
// over the standing authorization header and win on collision. The response
// must be a non-empty JSON document.
func (c *Client) Request(ctx context.Context, method, path string, headers map[string]string, body any) (json.RawMessage, error) {
	merged := make(map[string]string, len(c.headers)+len(headers))
	for k, v := range c.headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}

	raw, err := c.http.Do(ctx, &Request{
		Method: method,
		URL:    c.baseURL + path,
		Header: merged,
		Body:   body,
	})
	if err != nil {
		return nil, NewError(ErrTransport.Error(), ErrTransport, err)
	}
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, NewError(ErrMalformedResponse.Error(), ErrMalformedResponse, nil)
	}
	return json.RawMessage(raw), nil
}

func (c *Client) get(ctx context.Context, path string, headers map[string]string, out any) error {
	raw, err := c.Request(ctx, http.MethodGet, path, headers, nil)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

func (c *Client) post(ctx context.Context, path string, headers map[string]string, body, out any) error {
	raw, err := c.Request(ctx, http.MethodPost, path, headers, body)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

func decode(raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(ErrMalformedResponse.Error(), ErrMalformedResponse, err)
	}
	return nil
}
