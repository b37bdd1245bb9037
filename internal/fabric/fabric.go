package fabric

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"fabdrop/internal/auth"
	apperrors "fabdrop/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sirupsen/logrus"
)

// ConnectedAndInitialized is the only git connection state deploys accept.
const ConnectedAndInitialized = "ConnectedAndInitialized"

// Workspace is a Fabric workspace.
type Workspace struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type,omitempty"`
}

// Item is a workspace item such as a Lakehouse.
type Item struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId,omitempty"`
}

// GitProviderDetails locates the repository a workspace is connected to.
type GitProviderDetails struct {
	ProviderType     string `json:"gitProviderType"`
	OrganizationName string `json:"organizationName"`
	ProjectName      string `json:"projectName"`
	RepositoryName   string `json:"repositoryName"`
	BranchName       string `json:"branchName"`
	DirectoryName    string `json:"directoryName"`
}

// Directory returns DirectoryName without its trailing slash.
func (d GitProviderDetails) Directory() string {
	return strings.TrimRight(d.DirectoryName, "/")
}

// GitConnection is the workspace's git connection.
type GitConnection struct {
	State    string             `json:"gitConnectionState"`
	Provider GitProviderDetails `json:"gitProviderDetails"`
}

// ItemMetadata identifies the item a git change applies to.
type ItemMetadata struct {
	ItemType    string `json:"itemType"`
	DisplayName string `json:"displayName"`
}

// GitChange is one pending difference between workspace and remote.
type GitChange struct {
	RemoteChange    string       `json:"remoteChange"`
	WorkspaceChange string       `json:"workspaceChange"`
	ConflictType    string       `json:"conflictType"`
	ItemMetadata    ItemMetadata `json:"itemMetadata"`
}

// GitStatus compares the workspace with the remote branch.
type GitStatus struct {
	WorkspaceHead    string      `json:"workspaceHead"`
	RemoteCommitHash string      `json:"remoteCommitHash"`
	Changes          []GitChange `json:"changes"`
}

// ConflictResolution picks a side for conflicting items.
type ConflictResolution struct {
	Type   string `json:"conflictResolutionType"`
	Policy string `json:"conflictResolutionPolicy"`
}

// UpdateOptions are the updateFromGit options.
type UpdateOptions struct {
	AllowOverrideItems bool `json:"allowOverrideItems"`
}

// UpdateFromGitRequest is the body of updateFromGit.
type UpdateFromGitRequest struct {
	RemoteCommitHash   string              `json:"remoteCommitHash"`
	WorkspaceHead      string              `json:"workspaceHead,omitempty"`
	ConflictResolution *ConflictResolution `json:"conflictResolution,omitempty"`
	Options            *UpdateOptions      `json:"options,omitempty"`
}

// PreferRemote builds an update request that overwrites workspace items
// with the remote commit.
func PreferRemote(status *GitStatus) UpdateFromGitRequest {
	return UpdateFromGitRequest{
		RemoteCommitHash: status.RemoteCommitHash,
		WorkspaceHead:    status.WorkspaceHead,
		ConflictResolution: &ConflictResolution{
			Type:   "Workspace",
			Policy: "PreferRemote",
		},
		Options: &UpdateOptions{AllowOverrideItems: true},
	}
}

// FormatOptions describe the CSV files a table is loaded from.
type FormatOptions struct {
	Format    string `json:"format"`
	Header    bool   `json:"header"`
	Delimiter string `json:"delimiter"`
}

// LoadTableRequest is the body of a lakehouse table load.
type LoadTableRequest struct {
	RelativePath  string        `json:"relativePath"`
	PathType      string        `json:"pathType"`
	Mode          string        `json:"mode"`
	FormatOptions FormatOptions `json:"formatOptions"`
}

// CSVOverwrite loads one CSV file with a header row, replacing the table.
func CSVOverwrite(relativePath string) LoadTableRequest {
	return LoadTableRequest{
		RelativePath: relativePath,
		PathType:     "File",
		Mode:         "Overwrite",
		FormatOptions: FormatOptions{
			Format:    "Csv",
			Header:    true,
			Delimiter: ",",
		},
	}
}

// Client calls the Fabric REST API.
type Client struct {
	rest
}

// NewClient creates a Fabric client for baseURL, e.g. https://api.fabric.microsoft.com/v1.
func NewClient(baseURL string, cred azcore.TokenCredential, opts *ClientOptions) *Client {
	return &Client{rest: newRest(baseURL, auth.Scope(auth.ResourceFabric), cred, opts)}
}

type page[T any] struct {
	Value           []T    `json:"value"`
	ContinuationURI string `json:"continuationUri"`
}

// list follows continuation links until every page is read.
func list[T any](ctx context.Context, r *rest, operation, path string) ([]T, error) {
	var all []T
	next := path
	for next != "" {
		var p page[T]
		if _, err := r.call(ctx, operation, http.MethodGet, next, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Value...)
		next = p.ContinuationURI
	}
	return all, nil
}

// ListWorkspaces returns every workspace the caller can see.
func (c *Client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	return list[Workspace](ctx, &c.rest, "list workspaces", "/workspaces")
}

// FindWorkspace looks a workspace up by display name, ignoring case.
func (c *Client) FindWorkspace(ctx context.Context, name string) (*Workspace, error) {
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(workspaces))
	for i := range workspaces {
		if strings.EqualFold(workspaces[i].DisplayName, name) {
			c.log.WithFields(logrus.Fields{"workspace": name, "id": workspaces[i].ID}).Info("workspace found")
			return &workspaces[i], nil
		}
		names = append(names, workspaces[i].DisplayName)
	}
	return nil, notFound("workspace", name, names)
}

// ListItems returns the workspace's items, filtered by type when itemType is set.
func (c *Client) ListItems(ctx context.Context, workspaceID, itemType string) ([]Item, error) {
	path := fmt.Sprintf("/workspaces/%s/items", url.PathEscape(workspaceID))
	if itemType != "" {
		path += "?type=" + url.QueryEscape(itemType)
	}
	return list[Item](ctx, &c.rest, "list items", path)
}

// FindLakehouse returns the first lakehouse in the workspace.
func (c *Client) FindLakehouse(ctx context.Context, workspaceID string) (*Item, error) {
	items, err := c.ListItems(ctx, workspaceID, "Lakehouse")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.NotFound("lakehouse", "in workspace "+workspaceID).
			WithSuggestions("Create a lakehouse in the workspace first")
	}
	c.log.WithFields(logrus.Fields{"lakehouse": items[0].DisplayName, "id": items[0].ID}).Info("lakehouse found")
	return &items[0], nil
}

// GitConnection returns the workspace's git connection, which must be
// ConnectedAndInitialized.
func (c *Client) GitConnection(ctx context.Context, workspaceID string) (*GitConnection, error) {
	var conn GitConnection
	path := fmt.Sprintf("/workspaces/%s/git/connection", url.PathEscape(workspaceID))
	if _, err := c.call(ctx, "git connection", http.MethodGet, path, nil, &conn); err != nil {
		return nil, err
	}
	if conn.State != ConnectedAndInitialized {
		return nil, apperrors.New(apperrors.ErrCodeRemoteRejected,
			fmt.Sprintf("workspace git is not connected: %s", conn.State)).
			WithContext("state", conn.State).
			WithSuggestions("Connect the workspace to a repository in workspace settings > Git integration")
	}
	return &conn, nil
}

// GitStatus returns the pending changes between workspace and remote. An
// accepted (202) answer is polled and the operation result fetched.
func (c *Client) GitStatus(ctx context.Context, workspaceID string) (*GitStatus, error) {
	var status GitStatus
	path := fmt.Sprintf("/workspaces/%s/git/status", url.PathEscape(workspaceID))
	resp, err := c.call(ctx, "git status", http.MethodGet, path, nil, &status, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusAccepted {
		location, err := c.wait(ctx, "git status", resp)
		if err != nil {
			return nil, err
		}
		if location != "" {
			if _, err := c.call(ctx, "git status result", http.MethodGet, location+"/result", nil, &status); err != nil {
				return nil, err
			}
		}
	}
	return &status, nil
}

// UpdateFromGit applies the remote commit to the workspace and waits for it.
func (c *Client) UpdateFromGit(ctx context.Context, workspaceID string, req UpdateFromGitRequest) error {
	path := fmt.Sprintf("/workspaces/%s/git/updateFromGit", url.PathEscape(workspaceID))
	resp, err := c.call(ctx, "update from git", http.MethodPost, path, req, nil, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusAccepted {
		_, err = c.wait(ctx, "update from git", resp)
		return err
	}
	c.log.Info("update from git completed synchronously")
	return nil
}

// LoadTable loads files from the lakehouse into table and waits for the load.
func (c *Client) LoadTable(ctx context.Context, workspaceID, lakehouseID, table string, req LoadTableRequest) error {
	path := fmt.Sprintf("/workspaces/%s/lakehouses/%s/tables/%s/load",
		url.PathEscape(workspaceID), url.PathEscape(lakehouseID), url.PathEscape(table))
	operation := "load table " + table
	resp, err := c.call(ctx, operation, http.MethodPost, path, req, nil, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return apperrors.Wrap(err, apperrors.GetErrorCode(err), operation+" failed").WithContext("table", table)
	}
	if resp.StatusCode == http.StatusOK {
		c.log.WithField("table", table).Info("table loaded")
		return nil
	}
	if _, err := c.wait(ctx, operation, resp); err != nil {
		return apperrors.Wrap(err, apperrors.GetErrorCode(err), operation+" failed").WithContext("table", table)
	}
	return nil
}

func notFound(what, name string, available []string) *apperrors.AppError {
	err := apperrors.NotFound(what, name)
	sort.Strings(available)
	if len(available) == 0 {
		return err.WithSuggestions(fmt.Sprintf("No %ss are visible to this account", what))
	}
	return err.WithSuggestions(fmt.Sprintf("Available %ss: %s", what, strings.Join(available, ", ")))
}
