// Package pipeline runs the monthly deploy: lakehouse data, semantic model
// and report, then a dataset refresh.
package pipeline

import (
	"path/filepath"

	"fabdrop/internal/gitsync"
	"fabdrop/internal/report"
	"fabdrop/internal/semantic"
	"fabdrop/pkg/models"

	"github.com/sirupsen/logrus"
)

// BuildTree renders the semantic model and report bound to one lakehouse.
func BuildTree(cfg *models.Config, workspaceID, lakehouseID string, log logrus.FieldLogger) (gitsync.Tree, error) {
	model := semantic.DefaultModel(cfg.Report.ModelName)
	sm := &semantic.Builder{
		Model:       model,
		WorkspaceID: workspaceID,
		LakehouseID: lakehouseID,
		OneLakeURL:  cfg.Fabric.OneLakeDFSURL,
	}
	smFiles, err := sm.Build()
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"tables":        len(model.Tables),
		"relationships": len(model.Relationships),
		"measures":      len(model.Measures),
		"files":         len(smFiles),
	}).Info("semantic model built")

	pages := report.DefaultPages()
	rpt := &report.Builder{
		ReportName: cfg.Report.ReportName,
		ModelName:  cfg.Report.ModelName,
		Pages:      pages,
		Model:      &model,
	}
	rptFiles, err := rpt.Build()
	if err != nil {
		return nil, err
	}
	visuals := 0
	for _, p := range pages {
		visuals += len(p.Visuals)
	}
	log.WithFields(logrus.Fields{"pages": len(pages), "visuals": visuals, "files": len(rptFiles)}).Info("report built")

	tree := gitsync.Tree{}
	tree[gitsync.SemanticModelFolder(cfg.Report.ModelName)] = smFiles
	tree[gitsync.ReportFolder(cfg.Report.ReportName)] = rptFiles
	return tree, nil
}

// WriteTree writes every item folder below dir and returns the written paths.
func WriteTree(tree gitsync.Tree, dir string) ([]string, error) {
	var written []string
	for _, name := range tree.Names() {
		paths, err := tree[name].Write(filepath.Join(dir, name))
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
