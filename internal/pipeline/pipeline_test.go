package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"fabdrop/internal/fabric"
	"fabdrop/internal/gitsync"
	"fabdrop/internal/ingest"
	"fabdrop/internal/lakehouse"
	"fabdrop/internal/observability"
	"fabdrop/internal/testutil"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeUploader) Upload(ctx context.Context, relativePath string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, relativePath)
	return nil
}

type fakeTables struct {
	loaded []string
	fail   map[string]bool
}

func (f *fakeTables) LoadTable(ctx context.Context, workspaceID, lakehouseID, table string, req fabric.LoadTableRequest) error {
	if f.fail[table] {
		return apperrors.RemoteRejected("load table", 400, "bad csv")
	}
	f.loaded = append(f.loaded, table)
	return nil
}

type fakeWorkspaces struct{ calls int }

func (f *fakeWorkspaces) FindWorkspace(ctx context.Context, name string) (*fabric.Workspace, error) {
	f.calls++
	return &fabric.Workspace{ID: "ws-1", DisplayName: name}, nil
}

func (f *fakeWorkspaces) FindLakehouse(ctx context.Context, workspaceID string) (*fabric.Item, error) {
	f.calls++
	return &fabric.Item{ID: "lh-1", DisplayName: "SLSLakehouse", Type: "Lakehouse"}, nil
}

type fakeGit struct {
	tree    gitsync.Tree
	message string
	updated bool
}

func (f *fakeGit) Deploy(ctx context.Context, workspaceID string, tree gitsync.Tree, message string) (*gitsync.Result, error) {
	f.tree = tree
	f.message = message
	res := &gitsync.Result{Commit: "0123456789abcdef", Updated: f.updated}
	if f.updated {
		res.Changes = []fabric.GitChange{{}, {}}
	}
	return res, nil
}

type fakeDatasets struct {
	missing   bool
	triggered []string
}

func (f *fakeDatasets) FindDataset(ctx context.Context, workspaceID, name string) (*fabric.Dataset, error) {
	if f.missing {
		return nil, apperrors.NotFound("dataset", name)
	}
	return &fabric.Dataset{ID: "ds-1", Name: name}, nil
}

func (f *fakeDatasets) FindReport(ctx context.Context, workspaceID, name string) (*fabric.Report, error) {
	if f.missing {
		return nil, apperrors.NotFound("report", name)
	}
	return &fabric.Report{ID: "rp-1", Name: name, WebURL: "https://app.powerbi.com/groups/ws-1/reports/rp-1"}, nil
}

func (f *fakeDatasets) TriggerRefresh(ctx context.Context, workspaceID, datasetID string) error {
	f.triggered = append(f.triggered, datasetID)
	return nil
}

func (f *fakeDatasets) WaitForRefresh(ctx context.Context, workspaceID, datasetID string) (*fabric.Refresh, error) {
	return &fabric.Refresh{Status: fabric.StatusCompleted}, nil
}

type fixture struct {
	config     *models.Config
	uploader   *fakeUploader
	tables     *fakeTables
	workspaces *fakeWorkspaces
	git        *fakeGit
	datasets   *fakeDatasets
	pipeline   *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := testutil.NewTestHelper(t)
	dir := t.TempDir()
	cfg := testutil.TestConfig()
	cfg.DataFile = h.DataFile()
	cfg.Lakehouse.ExportDir = filepath.Join(dir, "lakehouse_data")
	cfg.Report.DebugDir = filepath.Join(dir, "debug")
	log := testutil.DiscardLogger()

	f := &fixture{
		config:     cfg,
		uploader:   &fakeUploader{},
		tables:     &fakeTables{},
		workspaces: &fakeWorkspaces{},
		git:        &fakeGit{updated: true},
		datasets:   &fakeDatasets{},
	}
	data := &Data{
		Store:     ingest.NewStore(cfg.DataFile, nil),
		Exporter:  lakehouse.NewExporter(cfg.FiscalYear, log),
		ExportDir: cfg.Lakehouse.ExportDir,
		Folder:    cfg.Lakehouse.UploadFolder,
		NewUploader: func(workspaceID, lakehouseID string) (lakehouse.Uploader, error) {
			return f.uploader, nil
		},
		Tables: f.tables,
		Log:    log,
	}
	f.pipeline = &Pipeline{
		Config:     cfg,
		Workspaces: f.workspaces,
		Datasets:   f.datasets,
		Data:       data,
		Git:        f.git,
		Now:        func() time.Time { return time.Date(2026, 2, 24, 9, 30, 0, 0, time.UTC) },
		Log:        log,
	}
	return f
}

func statuses(steps []observability.Step) []observability.StepStatus {
	out := make([]observability.StepStatus, len(steps))
	for i, s := range steps {
		out[i] = s.Status
	}
	return out
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"defaults", Options{}, false},
		{"data only", Options{DataOnly: true, SkipRefresh: true}, false},
		{"data and report only", Options{DataOnly: true, ReportOnly: true}, true},
		{"upload and load only", Options{Data: DataOptions{UploadOnly: true, LoadOnly: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDataRun(t *testing.T) {
	t.Run("export upload and load", func(t *testing.T) {
		f := newFixture(t)
		summary, err := f.pipeline.Data.Run(context.Background(), "ws-1", "lh-1", DataOptions{})
		require.NoError(t, err)
		assert.Equal(t, "6 files uploaded, 6 tables loaded", summary)

		sort.Strings(f.uploader.paths)
		assert.Contains(t, f.uploader.paths, "Files/sls_mbr_data/dim_Publisher.csv")
		assert.Len(t, f.tables.loaded, 6)
		assert.FileExists(t, filepath.Join(f.config.Lakehouse.ExportDir, "fact_Spend.csv"))
	})

	t.Run("upload only", func(t *testing.T) {
		f := newFixture(t)
		summary, err := f.pipeline.Data.Run(context.Background(), "ws-1", "lh-1", DataOptions{UploadOnly: true})
		require.NoError(t, err)
		assert.Equal(t, "6 files uploaded", summary)
		assert.Empty(t, f.tables.loaded)
	})

	t.Run("skip export reuses files", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Data.Export()
		require.NoError(t, err)
		require.NoError(t, os.Remove(f.config.DataFile))

		summary, err := f.pipeline.Data.Run(context.Background(), "ws-1", "lh-1", DataOptions{SkipExport: true, LoadOnly: true})
		require.NoError(t, err)
		assert.Equal(t, "6 tables loaded", summary)
		assert.Empty(t, f.uploader.paths)
	})

	t.Run("skip export without files", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline.Data.Run(context.Background(), "ws-1", "lh-1", DataOptions{SkipExport: true})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("load failure", func(t *testing.T) {
		f := newFixture(t)
		f.tables.fail = map[string]bool{"dim_Date": true}
		_, err := f.pipeline.Data.Run(context.Background(), "ws-1", "lh-1", DataOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dim_Date")
		assert.Len(t, f.tables.loaded, 5)
	})
}

func TestPipelineRun(t *testing.T) {
	f := newFixture(t)
	result, err := f.pipeline.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "ws-1", result.WorkspaceID)
	assert.Equal(t, "lh-1", result.LakehouseID)
	assert.Equal(t, []observability.StepStatus{observability.StepDone, observability.StepDone, observability.StepDone}, statuses(result.Steps))
	assert.Equal(t, "commit 01234567, 2 items updated", result.Steps[1].Detail)
	assert.Equal(t, fabric.StatusCompleted, result.Steps[2].Detail)

	assert.ElementsMatch(t, []string{"SLS MBR.SemanticModel", "SLS MBR Report.Report"}, f.git.tree.Names())
	assert.Equal(t, "Deploy SLS MBR semantic model + report - 2026-02-24 09:30", f.git.message)
	assert.Equal(t, "https://app.powerbi.com/groups/ws-1/reports/rp-1", result.ReportURL)
	assert.Equal(t, []string{"ds-1"}, f.datasets.triggered)
	assert.Len(t, f.uploader.paths, 6)
}

func TestPipelineModes(t *testing.T) {
	t.Run("dry run stays local", func(t *testing.T) {
		f := newFixture(t)
		f.pipeline.Workspaces = nil
		f.pipeline.Datasets = nil
		f.pipeline.Git = nil

		result, err := f.pipeline.Run(context.Background(), Options{DryRun: true})
		require.NoError(t, err)
		assert.Equal(t, []observability.StepStatus{observability.StepSkipped, observability.StepDone, observability.StepSkipped}, statuses(result.Steps))
		assert.Equal(t, placeholderID, result.WorkspaceID)
		assert.NotEmpty(t, result.Written)
		assert.DirExists(t, filepath.Join(f.config.Report.DebugDir, "SLS MBR.SemanticModel"))
		assert.Empty(t, f.uploader.paths)
	})

	t.Run("configured ids skip lookup", func(t *testing.T) {
		f := newFixture(t)
		f.config.WorkspaceID = "ws-9"
		f.config.LakehouseID = "lh-9"
		result, err := f.pipeline.Run(context.Background(), Options{ReportOnly: true, SkipRefresh: true})
		require.NoError(t, err)
		assert.Zero(t, f.workspaces.calls)
		assert.Equal(t, "ws-9", result.WorkspaceID)
		assert.Equal(t, observability.StepSkipped, result.Steps[0].Status)
		assert.Equal(t, "--report-only", result.Steps[0].Detail)
	})

	t.Run("data only refreshes", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.pipeline.Run(context.Background(), Options{DataOnly: true})
		require.NoError(t, err)
		assert.Equal(t, []observability.StepStatus{observability.StepDone, observability.StepSkipped, observability.StepDone}, statuses(result.Steps))
		assert.Nil(t, f.git.tree)
		assert.Equal(t, []string{"ds-1"}, f.datasets.triggered)
	})

	t.Run("workspace already current", func(t *testing.T) {
		f := newFixture(t)
		f.git.updated = false
		result, err := f.pipeline.Run(context.Background(), Options{ReportOnly: true, SkipRefresh: true})
		require.NoError(t, err)
		assert.Equal(t, "commit 01234567, workspace already current", result.Steps[1].Detail)
	})

	t.Run("missing dataset is not fatal", func(t *testing.T) {
		f := newFixture(t)
		f.datasets.missing = true
		result, err := f.pipeline.Run(context.Background(), Options{ReportOnly: true})
		require.NoError(t, err)
		assert.Empty(t, result.ReportURL)
		assert.Equal(t, "dataset not found", result.Steps[2].Detail)
		assert.Empty(t, f.datasets.triggered)
	})

	t.Run("failed step stops the run", func(t *testing.T) {
		f := newFixture(t)
		f.uploader.err = errors.New("network down")
		result, err := f.pipeline.Run(context.Background(), Options{})
		require.Error(t, err)
		require.Len(t, result.Steps, 1)
		assert.Equal(t, observability.StepFailed, result.Steps[0].Status)
		assert.Nil(t, f.git.tree)
	})
}
