package gitsync

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"fabdrop/internal/artifact"
	"fabdrop/internal/fabric"
	apperrors "fabdrop/pkg/errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/sirupsen/logrus"
)

// LocalPusher commits into a local clone of the connected repository and
// pushes the branch to Remote.
type LocalPusher struct {
	RepoPath string
	// Remote is the remote to push to. Nothing is pushed when empty.
	Remote string
	Auth   transport.AuthMethod
	Name   string
	Email  string
	Now    func() time.Time
	Log    logrus.FieldLogger
}

// Push implements Pusher. Item folders are replaced wholesale: files the
// tree no longer contains are removed from the index.
func (p *LocalPusher) Push(ctx context.Context, repo fabric.GitProviderDetails, tree Tree, message string) (string, error) {
	r, err := git.PlainOpen(p.RepoPath)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeNotFound, "failed to open repository").
			WithContext("path", p.RepoPath).
			WithSuggestions("Set report.repo_path to a clone of the workspace repository")
	}
	wt, err := r.Worktree()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to open worktree")
	}
	if err := checkoutBranch(r, wt, repo.BranchName); err != nil {
		return "", err
	}

	for _, name := range tree.Names() {
		folder := strings.TrimPrefix(Folder(repo.Directory(), name), "/")
		if err := p.replaceFolder(wt, folder, tree[name]); err != nil {
			return "", err
		}
	}

	status, err := wt.Status()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to read worktree status")
	}
	if !hasStaged(status) {
		head, err := r.Head()
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to resolve HEAD")
		}
		p.Log.Info("no changes to commit")
		return head.Hash().String(), nil
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: p.author(), Email: p.Email, When: now()},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to commit")
	}
	p.Log.WithField("commit", short(hash.String())).Info("committed")

	if p.Remote != "" {
		err := r.PushContext(ctx, &git.PushOptions{RemoteName: p.Remote, Auth: p.Auth})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", apperrors.Wrap(err, apperrors.ErrCodeRemoteRejected, "git push failed").
				WithContext("remote", p.Remote)
		}
		p.Log.WithField("remote", p.Remote).Info("pushed")
	}
	return hash.String(), nil
}

func (p *LocalPusher) author() string {
	if p.Name != "" {
		return p.Name
	}
	return "fabdrop"
}

// replaceFolder writes files below folder, removes files that are no longer
// generated and stages the result.
func (p *LocalPusher) replaceFolder(wt *git.Worktree, folder string, files artifact.FileSet) error {
	root := filepath.Join(p.RepoPath, filepath.FromSlash(folder))

	var stale []string
	err := filepath.WalkDir(root, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return err
		}
		if _, ok := files[filepath.ToSlash(rel)]; !ok {
			stale = append(stale, path.Join(folder, filepath.ToSlash(rel)))
		}
		return nil
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan "+folder)
	}

	for _, rel := range stale {
		if _, err := wt.Remove(rel); err != nil {
			// Untracked leftovers are not in the index.
			if rmErr := os.Remove(filepath.Join(p.RepoPath, filepath.FromSlash(rel))); rmErr != nil {
				return apperrors.Wrap(rmErr, apperrors.ErrCodeInternal, "failed to remove "+rel)
			}
		}
	}

	if _, err := files.Write(root); err != nil {
		return err
	}
	for _, name := range files.Paths() {
		rel := path.Join(folder, name)
		if _, err := wt.Add(rel); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to stage "+rel)
		}
	}
	p.Log.WithFields(logrus.Fields{"folder": folder, "files": len(files), "removed": len(stale)}).Info("folder staged")
	return nil
}

func hasStaged(status git.Status) bool {
	for _, st := range status {
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			return true
		}
	}
	return false
}

func checkoutBranch(r *git.Repository, wt *git.Worktree, branch string) error {
	if branch == "" {
		return nil
	}
	head, err := r.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to resolve HEAD")
	}
	want := plumbing.NewBranchReferenceName(branch)
	if head.Name() == want {
		return nil
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: want}); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeNotFound, "failed to check out "+branch).
			WithContext("branch", branch)
	}
	return nil
}

// AuthMethod picks credentials for remoteURL: the default SSH key for SSH
// remotes, token basic auth for HTTPS remotes.
func AuthMethod(remoteURL, token string) transport.AuthMethod {
	if strings.HasPrefix(remoteURL, "git@") || strings.HasPrefix(remoteURL, "ssh://") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		keys, err := ssh.NewPublicKeysFromFile("git", filepath.Join(home, ".ssh", "id_rsa"), "")
		if err != nil {
			return nil
		}
		return keys
	}
	if token == "" {
		return nil
	}
	return &http.BasicAuth{Username: "fabdrop", Password: token}
}

// RemoteURL returns the first URL of remote in the clone at repoPath.
func RemoteURL(repoPath, remote string) (string, error) {
	r, err := git.PlainOpen(repoPath)
	if err != nil {
		return "", apperrors.NotFound("git repository", repoPath)
	}
	rem, err := r.Remote(remote)
	if err != nil {
		return "", apperrors.NotFound("git remote", remote).WithContext("repository", repoPath)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", apperrors.ConfigError("remote "+remote+" has no URL", "report.remote")
	}
	return urls[0], nil
}
