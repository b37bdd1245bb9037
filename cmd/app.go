package cmd

import (
	"context"
	"path/filepath"
	"time"

	"fabdrop/internal/auth"
	"fabdrop/internal/fabric"
	"fabdrop/internal/gitsync"
	"fabdrop/internal/ingest"
	"fabdrop/internal/lakehouse"
	"fabdrop/internal/observability"
	"fabdrop/internal/pipeline"
	"fabdrop/internal/rollback"
	"fabdrop/internal/ui"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/sirupsen/logrus"
)

// settleDelay is waited after a push before the workspace git status is read.
const settleDelay = 3 * time.Second

// app carries what every command needs once setup has run.
type app struct {
	config     *models.Config
	configFile string
	log        *observability.Logger
	ui         *ui.UI

	tokens auth.TokenProvider
	cred   *auth.Credential
}

func (a *app) close() {
	if err := a.log.Close(); err != nil {
		a.ui.Warning("failed to close run log: " + err.Error())
	}
}

func (a *app) store() *ingest.Store {
	store := ingest.NewStore(a.config.DataFile, nil)
	if a.config.Variable != "" {
		store.Catalog.Variable = a.config.Variable
	}
	if a.config.Backup.Keep > 0 {
		store.Backups = a.backups()
	}
	return store
}

func (a *app) backups() *rollback.Manager {
	dir := a.config.Backup.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(a.config.DataFile), ".fabdrop", "backups")
	}
	return rollback.NewManager(dir, a.config.Backup.Keep, a.log)
}

func (a *app) credential() (*auth.Credential, error) {
	if a.cred != nil {
		return a.cred, nil
	}
	provider, err := auth.NewProvider(a.config.Auth, a.log)
	if err != nil {
		return nil, err
	}
	a.tokens = provider
	a.cred = auth.NewCredential(provider)
	return a.cred, nil
}

func (a *app) clientOptions() *fabric.ClientOptions {
	return &fabric.ClientOptions{Poll: fabric.PollConfig(a.config.Polling), Log: a.log}
}

func (a *app) fabricClient() (*fabric.Client, error) {
	cred, err := a.credential()
	if err != nil {
		return nil, err
	}
	return fabric.NewClient(a.config.Fabric.APIURL, cred, a.clientOptions()), nil
}

func (a *app) powerBI() (*fabric.PowerBI, error) {
	cred, err := a.credential()
	if err != nil {
		return nil, err
	}
	return fabric.NewPowerBI(a.config.Fabric.PowerBIURL, cred, a.clientOptions()), nil
}

// workspaceID returns the configured id or looks the workspace up by name.
func (a *app) workspaceID(ctx context.Context, client *fabric.Client) (string, error) {
	if a.config.WorkspaceID != "" {
		return a.config.WorkspaceID, nil
	}
	ws, err := client.FindWorkspace(ctx, a.config.Workspace)
	if err != nil {
		return "", err
	}
	a.log.WithFields(logrus.Fields{"workspace": ws.DisplayName, "id": ws.ID}).Info("workspace found")
	return ws.ID, nil
}

func (a *app) data(client *fabric.Client) *pipeline.Data {
	return &pipeline.Data{
		Store:     a.store(),
		Exporter:  lakehouse.NewExporter(a.config.FiscalYear, a.log),
		ExportDir: a.config.Lakehouse.ExportDir,
		Folder:    a.config.Lakehouse.UploadFolder,
		NewUploader: func(workspaceID, lakehouseID string) (lakehouse.Uploader, error) {
			cred, err := a.credential()
			if err != nil {
				return nil, err
			}
			opts := a.clientOptions().ClientOptions
			return lakehouse.NewBlobUploader(a.config.Fabric.OneLakeBlobURL, workspaceID, lakehouseID, cred, &opts)
		},
		Tables: client,
		Log:    a.log,
	}
}

func (a *app) pusher() (gitsync.Pusher, error) {
	switch a.config.Report.Pusher {
	case "", "ado":
		cred, err := a.credential()
		if err != nil {
			return nil, err
		}
		return &gitsync.ADOPusher{
			Repo: fabric.NewDevOps(a.config.Fabric.ADOURL, cred, a.clientOptions()),
			Log:  a.log,
		}, nil
	case "local":
		if a.config.Report.RepoPath == "" {
			return nil, apperrors.ConfigError("pusher 'local' needs report.repo_path", "report.repo_path")
		}
		p := &gitsync.LocalPusher{RepoPath: a.config.Report.RepoPath, Remote: a.config.Report.Remote, Log: a.log}
		if p.Remote != "" {
			url, err := gitsync.RemoteURL(p.RepoPath, p.Remote)
			if err != nil {
				return nil, err
			}
			token := ""
			if _, err := a.credential(); err == nil {
				if t, err := a.tokens.Token(context.Background(), auth.ResourceDevOps); err == nil {
					token = t
				} else {
					a.log.WithError(err).Debug("no DevOps token, pushing without credentials")
				}
			}
			p.Auth = gitsync.AuthMethod(url, token)
		}
		return p, nil
	default:
		return nil, apperrors.ConfigError("unknown pusher "+a.config.Report.Pusher+" (want ado or local)", "report.pusher")
	}
}

// deployPipeline wires the monthly deploy. Remote clients are only created when
// the run needs them.
func (a *app) deployPipeline(opts pipeline.Options) (*pipeline.Pipeline, error) {
	p := &pipeline.Pipeline{Config: a.config, Log: a.log}
	if opts.DryRun {
		p.Data = a.data(nil)
		return p, nil
	}

	client, err := a.fabricClient()
	if err != nil {
		return nil, err
	}
	pbi, err := a.powerBI()
	if err != nil {
		return nil, err
	}
	p.Workspaces = client
	p.Datasets = pbi
	p.Data = a.data(client)
	if !opts.DataOnly {
		pusher, err := a.pusher()
		if err != nil {
			return nil, err
		}
		p.Git = &gitsync.Deployer{Workspace: client, Pusher: pusher, Settle: settleDelay, Log: a.log}
	}
	return p, nil
}
