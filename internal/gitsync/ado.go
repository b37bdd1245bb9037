package gitsync

import (
	"context"
	"sort"

	"fabdrop/internal/fabric"

	"github.com/sirupsen/logrus"
)

// Repository is the subset of the DevOps git API a push needs.
// *fabric.DevOps implements it.
type Repository interface {
	BranchTip(ctx context.Context, repo fabric.GitProviderDetails) (string, error)
	ListFiles(ctx context.Context, repo fabric.GitProviderDetails, scopePath string) ([]string, error)
	Push(ctx context.Context, repo fabric.GitProviderDetails, push fabric.Push) (*fabric.PushResult, error)
}

// ADOPusher pushes through the Azure DevOps REST API in a single commit.
type ADOPusher struct {
	Repo Repository
	Log  logrus.FieldLogger
}

// Push implements Pusher. Files already in an item folder are edited, new
// ones added and files no longer generated deleted.
func (p *ADOPusher) Push(ctx context.Context, repo fabric.GitProviderDetails, tree Tree, message string) (string, error) {
	tip, err := p.Repo.BranchTip(ctx, repo)
	if err != nil {
		return "", err
	}
	p.Log.WithFields(logrus.Fields{"branch": repo.BranchName, "tip": short(tip)}).Info("branch tip")

	var existing []string
	for _, name := range tree.Names() {
		folder := Folder(repo.Directory(), name)
		files, err := p.Repo.ListFiles(ctx, repo, folder)
		if err != nil {
			return "", err
		}
		p.Log.WithFields(logrus.Fields{"folder": folder, "files": len(files)}).Info("existing files")
		existing = append(existing, files...)
	}

	changes := PlanChanges(tree, repo.Directory(), existing)
	p.Log.WithField("changes", len(changes)).Info("pushing")

	result, err := p.Repo.Push(ctx, repo, fabric.Push{
		RefUpdates: []fabric.RefUpdate{{Name: "refs/heads/" + repo.BranchName, OldObjectID: tip}},
		Commits:    []fabric.PushCommit{{Comment: message, Changes: changes}},
	})
	if err != nil {
		return "", err
	}
	commit := result.CommitID()
	p.Log.WithField("commit", short(commit)).Info("pushed")
	return commit, nil
}

// PlanChanges diffs the tree against the files present below dir: adds and
// edits in folder and path order, then deletes in path order.
func PlanChanges(tree Tree, dir string, existing []string) []fabric.ItemChange {
	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p] = true
	}

	var changes []fabric.ItemChange
	generated := map[string]bool{}
	for _, name := range tree.Names() {
		folder := Folder(dir, name)
		files := tree[name]
		for _, rel := range files.Paths() {
			full := folder + "/" + rel
			generated[full] = true
			kind := fabric.ChangeAdd
			if present[full] {
				kind = fabric.ChangeEdit
			}
			changes = append(changes, fabric.ItemChange{
				ChangeType: kind,
				Item:       fabric.ItemPath{Path: full},
				NewContent: &fabric.ItemContent{Content: string(files[rel]), ContentType: "rawtext"},
			})
		}
	}

	stale := make([]string, 0)
	for p := range present {
		if !generated[p] {
			stale = append(stale, p)
		}
	}
	sort.Strings(stale)
	for _, p := range stale {
		changes = append(changes, fabric.ItemChange{ChangeType: fabric.ChangeDelete, Item: fabric.ItemPath{Path: p}})
	}
	return changes
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
