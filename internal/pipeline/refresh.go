package pipeline

import (
	"context"

	"fabdrop/internal/fabric"

	"github.com/sirupsen/logrus"
)

// Datasets is the Power BI surface the pipeline uses. *fabric.PowerBI
// implements it.
type Datasets interface {
	FindDataset(ctx context.Context, workspaceID, name string) (*fabric.Dataset, error)
	FindReport(ctx context.Context, workspaceID, name string) (*fabric.Report, error)
	TriggerRefresh(ctx context.Context, workspaceID, datasetID string) error
	WaitForRefresh(ctx context.Context, workspaceID, datasetID string) (*fabric.Refresh, error)
}

// Refresh triggers a full refresh of dataset and waits for it to finish.
func Refresh(ctx context.Context, pbi Datasets, workspaceID string, dataset *fabric.Dataset, log logrus.FieldLogger) (*fabric.Refresh, error) {
	log = log.WithField("dataset", dataset.Name)
	if err := pbi.TriggerRefresh(ctx, workspaceID, dataset.ID); err != nil {
		return nil, err
	}
	log.Info("refresh triggered, polling for completion")
	refresh, err := pbi.WaitForRefresh(ctx, workspaceID, dataset.ID)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"start": refresh.StartTime, "end": refresh.EndTime}).Info("refresh completed")
	return refresh, nil
}
