package fabric

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"fabdrop/internal/auth"
	apperrors "fabdrop/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

const devOpsAPIVersion = "7.0"

// Change types of a DevOps push.
const (
	ChangeAdd    = "add"
	ChangeEdit   = "edit"
	ChangeDelete = "delete"
)

// GitRef is a branch reference.
type GitRef struct {
	Name     string `json:"name"`
	ObjectID string `json:"objectId"`
}

// GitItem is a file or folder in a repository.
type GitItem struct {
	Path     string `json:"path"`
	IsFolder bool   `json:"isFolder"`
}

// ItemPath names the item a change applies to.
type ItemPath struct {
	Path string `json:"path"`
}

// ItemContent is the new content of an added or edited file.
type ItemContent struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// ItemChange is one file change in a pushed commit.
type ItemChange struct {
	ChangeType string       `json:"changeType"`
	Item       ItemPath     `json:"item"`
	NewContent *ItemContent `json:"newContent,omitempty"`
}

// RefUpdate moves a branch from OldObjectID.
type RefUpdate struct {
	Name        string `json:"name"`
	OldObjectID string `json:"oldObjectId"`
}

// PushCommit is a commit in a push.
type PushCommit struct {
	Comment string       `json:"comment"`
	Changes []ItemChange `json:"changes"`
}

// Push is the body of a DevOps push.
type Push struct {
	RefUpdates []RefUpdate  `json:"refUpdates"`
	Commits    []PushCommit `json:"commits"`
}

// PushResult is the service's answer to a push.
type PushResult struct {
	PushID  int `json:"pushId"`
	Commits []struct {
		CommitID string `json:"commitId"`
	} `json:"commits"`
}

// CommitID returns the first pushed commit id, or "".
func (r PushResult) CommitID() string {
	if len(r.Commits) == 0 {
		return ""
	}
	return r.Commits[0].CommitID
}

// DevOps calls the Azure DevOps git REST API.
type DevOps struct {
	rest
}

// NewDevOps creates a client for baseURL, e.g. https://dev.azure.com.
func NewDevOps(baseURL string, cred azcore.TokenCredential, opts *ClientOptions) *DevOps {
	return &DevOps{rest: newRest(baseURL, auth.Scope(auth.ResourceDevOps), cred, opts)}
}

func repoPath(repo GitProviderDetails, resource string, query url.Values) string {
	query.Set("api-version", devOpsAPIVersion)
	return fmt.Sprintf("/%s/%s/_apis/git/repositories/%s/%s?%s",
		url.PathEscape(repo.OrganizationName), url.PathEscape(repo.ProjectName),
		url.PathEscape(repo.RepositoryName), resource, query.Encode())
}

// BranchTip returns the commit the connected branch points to.
func (d *DevOps) BranchTip(ctx context.Context, repo GitProviderDetails) (string, error) {
	var refs page[GitRef]
	path := repoPath(repo, "refs", url.Values{"filter": {"heads/" + repo.BranchName}})
	if _, err := d.call(ctx, "list refs", http.MethodGet, path, nil, &refs); err != nil {
		return "", err
	}
	want := "refs/heads/" + repo.BranchName
	for _, ref := range refs.Value {
		if ref.Name == want {
			return ref.ObjectID, nil
		}
	}
	return "", apperrors.NotFound("branch", repo.BranchName).
		WithContext("repository", repo.RepositoryName)
}

// ListFiles returns the paths of all files below scopePath on the connected
// branch. A missing folder has no files.
func (d *DevOps) ListFiles(ctx context.Context, repo GitProviderDetails, scopePath string) ([]string, error) {
	path := repoPath(repo, "items", url.Values{
		"scopePath":                     {scopePath},
		"recursionLevel":                {"Full"},
		"versionDescriptor.version":     {repo.BranchName},
		"versionDescriptor.versionType": {"branch"},
	})
	resp, err := d.call(ctx, "list items", http.MethodGet, path, nil, nil, http.StatusOK, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	var items page[GitItem]
	if err := runtime.UnmarshalAsJSON(resp, &items); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "unexpected list items response")
	}
	var files []string
	for _, item := range items.Value {
		if !item.IsFolder {
			files = append(files, item.Path)
		}
	}
	return files, nil
}

// Push creates commits on the connected branch.
func (d *DevOps) Push(ctx context.Context, repo GitProviderDetails, push Push) (*PushResult, error) {
	var result PushResult
	path := repoPath(repo, "pushes", url.Values{})
	if _, err := d.call(ctx, "git push", http.MethodPost, path, push, &result, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}
