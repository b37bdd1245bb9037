// Package gitsync publishes generated item definitions to the repository a
// workspace is connected to and brings the workspace up to date from it.
package gitsync

import (
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"fabdrop/internal/artifact"
	"fabdrop/internal/fabric"
)

// Tree maps item folder names such as "Sales.SemanticModel" to their files.
type Tree map[string]artifact.FileSet

// Names returns the folder names in order.
func (t Tree) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Files counts the files in all folders.
func (t Tree) Files() int {
	n := 0
	for _, files := range t {
		n += len(files)
	}
	return n
}

// SemanticModelFolder is the folder of a semantic model item.
func SemanticModelFolder(name string) string { return name + ".SemanticModel" }

// ReportFolder is the folder of a report item.
func ReportFolder(name string) string { return name + ".Report" }

// Folder is the absolute repository path of an item folder below dir.
func Folder(dir, name string) string {
	return path.Join("/", dir, name)
}

// CommitMessage describes a deploy made at now.
func CommitMessage(model string, now time.Time) string {
	return fmt.Sprintf("Deploy %s semantic model + report - %s", model, now.Format("2006-01-02 15:04"))
}

// Pusher commits a tree to the connected branch and returns the new commit.
type Pusher interface {
	Push(ctx context.Context, repo fabric.GitProviderDetails, tree Tree, message string) (string, error)
}
