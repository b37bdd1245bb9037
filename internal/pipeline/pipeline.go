package pipeline

import (
	"context"
	"fmt"
	"time"

	"fabdrop/internal/fabric"
	"fabdrop/internal/gitsync"
	"fabdrop/internal/observability"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/sirupsen/logrus"
)

// Step names as they appear in the run log and summary.
const (
	StepData    = "Load data to lakehouse"
	StepReport  = "Deploy semantic model + report"
	StepRefresh = "Refresh semantic model"
)

// placeholderID stands in for ids a dry run does not look up.
const placeholderID = "00000000-0000-0000-0000-000000000000"

// Options select which steps run.
type Options struct {
	DataOnly    bool
	ReportOnly  bool
	SkipRefresh bool
	DryRun      bool
	// Data is passed to the data step.
	Data DataOptions
}

// Validate rejects contradictory options.
func (o Options) Validate() error {
	if o.DataOnly && o.ReportOnly {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, "--data-only and --report-only cannot be combined")
	}
	return o.Data.Validate()
}

// Workspaces resolves the workspace and its lakehouse. *fabric.Client
// implements it.
type Workspaces interface {
	FindWorkspace(ctx context.Context, name string) (*fabric.Workspace, error)
	FindLakehouse(ctx context.Context, workspaceID string) (*fabric.Item, error)
}

// GitDeployer publishes a tree through the workspace git connection.
// *gitsync.Deployer implements it.
type GitDeployer interface {
	Deploy(ctx context.Context, workspaceID string, tree gitsync.Tree, message string) (*gitsync.Result, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	WorkspaceID string
	LakehouseID string
	Git         *gitsync.Result
	Dataset     *fabric.Dataset
	ReportURL   string
	Refresh     *fabric.Refresh
	// Written lists the files a dry run wrote.
	Written []string
	Steps   []observability.Step
	Total   time.Duration
}

// Pipeline runs the monthly deploy.
type Pipeline struct {
	Config     *models.Config
	Workspaces Workspaces
	Datasets   Datasets
	Data       *Data
	Git        GitDeployer
	Now        func() time.Time
	Log        logrus.FieldLogger
}

// Run resolves the workspace and executes the selected steps in order. The
// first failing step stops the run; earlier steps keep their effects.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	result := &Result{}
	if err := p.resolve(ctx, opts, result); err != nil {
		return nil, err
	}

	rec := observability.NewRecorder(p.Log)
	err := p.steps(ctx, opts, rec, result)
	result.Steps = rec.Steps()
	result.Total = rec.Total()
	return result, err
}

func (p *Pipeline) steps(ctx context.Context, opts Options, rec *observability.Recorder, result *Result) error {
	switch {
	case opts.ReportOnly:
		rec.Skip(StepData, "--report-only")
	case opts.DryRun:
		rec.Skip(StepData, "--dry-run")
	default:
		err := rec.Run(StepData, func() (string, error) {
			return p.Data.Run(ctx, result.WorkspaceID, result.LakehouseID, opts.Data)
		})
		if err != nil {
			return err
		}
	}

	if opts.DataOnly {
		rec.Skip(StepReport, "--data-only")
	} else if err := rec.Run(StepReport, func() (string, error) { return p.report(ctx, opts, result) }); err != nil {
		return err
	}

	switch {
	case opts.SkipRefresh:
		rec.Skip(StepRefresh, "--skip-refresh")
	case opts.DryRun:
		rec.Skip(StepRefresh, "--dry-run")
	default:
		return rec.Run(StepRefresh, func() (string, error) { return p.refresh(ctx, result) })
	}
	return nil
}

// resolve fills the workspace and lakehouse ids. Configured ids win; a dry
// run falls back to placeholders instead of calling the service.
func (p *Pipeline) resolve(ctx context.Context, opts Options, result *Result) error {
	result.WorkspaceID = p.Config.WorkspaceID
	result.LakehouseID = p.Config.LakehouseID
	if opts.DryRun {
		if result.WorkspaceID == "" {
			result.WorkspaceID = placeholderID
		}
		if result.LakehouseID == "" {
			result.LakehouseID = placeholderID
		}
		return nil
	}

	if result.WorkspaceID == "" {
		ws, err := p.Workspaces.FindWorkspace(ctx, p.Config.Workspace)
		if err != nil {
			return err
		}
		result.WorkspaceID = ws.ID
	}
	if result.LakehouseID == "" {
		lh, err := p.Workspaces.FindLakehouse(ctx, result.WorkspaceID)
		if err != nil {
			return err
		}
		result.LakehouseID = lh.ID
	}
	p.Log.WithFields(logrus.Fields{
		"workspace":    p.Config.Workspace,
		"workspace_id": result.WorkspaceID,
		"lakehouse_id": result.LakehouseID,
	}).Info("workspace resolved")
	return nil
}

func (p *Pipeline) report(ctx context.Context, opts Options, result *Result) (string, error) {
	tree, err := BuildTree(p.Config, result.WorkspaceID, result.LakehouseID, p.Log)
	if err != nil {
		return "", err
	}

	if opts.DryRun {
		written, err := WriteTree(tree, p.Config.Report.DebugDir)
		result.Written = written
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%d files written to %s", len(written), p.Config.Report.DebugDir), nil
	}

	message := gitsync.CommitMessage(p.Config.Report.ModelName, p.now())
	res, err := p.Git.Deploy(ctx, result.WorkspaceID, tree, message)
	if err != nil {
		return "", err
	}
	result.Git = res

	if rpt, err := p.Datasets.FindReport(ctx, result.WorkspaceID, p.Config.Report.ReportName); err != nil {
		p.Log.WithError(err).Warn("report not found after deploy")
	} else {
		result.ReportURL = rpt.WebURL
		p.Log.WithField("url", rpt.WebURL).Info("report deployed")
	}

	if !res.Updated {
		return fmt.Sprintf("commit %s, workspace already current", short(res.Commit)), nil
	}
	return fmt.Sprintf("commit %s, %d items updated", short(res.Commit), len(res.Changes)), nil
}

func (p *Pipeline) refresh(ctx context.Context, result *Result) (string, error) {
	name := p.Config.Report.ModelName
	ds, err := p.Datasets.FindDataset(ctx, result.WorkspaceID, name)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			p.Log.WithError(err).Warn("dataset not found, refresh skipped")
			return "dataset not found", nil
		}
		return "", err
	}
	result.Dataset = ds
	refresh, err := Refresh(ctx, p.Datasets, result.WorkspaceID, ds, p.Log)
	if err != nil {
		return "", err
	}
	result.Refresh = refresh
	return refresh.Status, nil
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
