package gitsync

import (
	"context"
	"time"

	"fabdrop/internal/fabric"

	"github.com/sirupsen/logrus"
)

// Workspace is the git surface of a Fabric workspace. *fabric.Client
// implements it.
type Workspace interface {
	GitConnection(ctx context.Context, workspaceID string) (*fabric.GitConnection, error)
	GitStatus(ctx context.Context, workspaceID string) (*fabric.GitStatus, error)
	UpdateFromGit(ctx context.Context, workspaceID string, req fabric.UpdateFromGitRequest) error
}

// Result summarizes a git deploy.
type Result struct {
	Repository fabric.GitProviderDetails
	Commit     string
	Changes    []fabric.GitChange
	Updated    bool
}

// Deployer pushes a tree to the workspace repository and updates the
// workspace from the new commit.
type Deployer struct {
	Workspace Workspace
	Pusher    Pusher
	// Settle is waited between the push and the status check so the
	// workspace sees the new commit.
	Settle time.Duration
	Log    logrus.FieldLogger
}

// Deploy runs the full sequence. A status without changes is not an error:
// the items are already current and no update is requested.
func (d *Deployer) Deploy(ctx context.Context, workspaceID string, tree Tree, message string) (*Result, error) {
	conn, err := d.Workspace.GitConnection(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	repo := conn.Provider
	d.Log.WithFields(logrus.Fields{
		"organization": repo.OrganizationName,
		"project":      repo.ProjectName,
		"repository":   repo.RepositoryName,
		"branch":       repo.BranchName,
		"directory":    repo.Directory(),
	}).Info("workspace git connection")

	commit, err := d.Pusher.Push(ctx, repo, tree, message)
	if err != nil {
		return nil, err
	}
	result := &Result{Repository: repo, Commit: commit}

	if err := sleep(ctx, d.Settle); err != nil {
		return result, err
	}

	status, err := d.Workspace.GitStatus(ctx, workspaceID)
	if err != nil {
		return result, err
	}
	result.Changes = status.Changes
	d.Log.WithFields(logrus.Fields{
		"workspace_head": short(status.WorkspaceHead),
		"remote":         short(status.RemoteCommitHash),
		"changes":        len(status.Changes),
	}).Info("git status")
	for _, c := range status.Changes {
		d.Log.WithFields(logrus.Fields{
			"change": c.RemoteChange,
			"type":   c.ItemMetadata.ItemType,
			"item":   c.ItemMetadata.DisplayName,
		}).Debug("pending change")
	}

	if len(status.Changes) == 0 {
		d.Log.Warn("no changes detected, items may already be up to date")
		return result, nil
	}
	if err := d.Workspace.UpdateFromGit(ctx, workspaceID, fabric.PreferRemote(status)); err != nil {
		return result, err
	}
	result.Updated = true
	d.Log.Info("workspace updated from git")
	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
