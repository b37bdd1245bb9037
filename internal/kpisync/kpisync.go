// Package kpisync copies KPI measure values from a deployed semantic model
// into the dataset's externalKpis.
package kpisync

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"fabdrop/internal/dataset"
	"fabdrop/internal/fabric"
	"fabdrop/internal/ingest"
	apperrors "fabdrop/pkg/errors"

	"github.com/sirupsen/logrus"
)

// External KPI names updated by a sync.
const (
	SnowKPI = "SNOW Tickets MTD"
	ICMKPI  = "ICM Tickets MTD"
)

// measureHints select the measure names suggested when a lookup fails.
var measureHints = []string{"snow", "icm", "ticket"}

// Measures is the Power BI surface a sync needs. *fabric.PowerBI implements it.
type Measures interface {
	FindDataset(ctx context.Context, workspaceID, name string) (*fabric.Dataset, error)
	MeasureValue(ctx context.Context, workspaceID, datasetID, measure string) (float64, error)
	ListMeasures(ctx context.Context, workspaceID, datasetID string) ([]string, error)
}

// Options select the dataset and measures.
type Options struct {
	Dataset     string
	SnowMeasure string
	ICMMeasure  string
	SnowOnly    bool
	DryRun      bool
}

// Value is one fetched KPI.
type Value struct {
	KPI     string
	Measure string
	Value   float64
}

// Result is the outcome of a sync.
type Result struct {
	Dataset *fabric.Dataset
	Values  []Value
	Written bool
}

// Syncer fetches measure values and writes them to the data file.
type Syncer struct {
	Measures Measures
	Store    *ingest.Store
	Now      func() time.Time
	Log      logrus.FieldLogger
}

// Sync fetches the configured measures, rounds them to whole numbers and,
// unless opts.DryRun, updates the matching externalKpis entries.
func (s *Syncer) Sync(ctx context.Context, workspaceID string, opts Options) (*Result, error) {
	if opts.Dataset == "" {
		return nil, apperrors.ConfigError("no dataset to read KPIs from", "kpis.dataset")
	}
	ds, err := s.Measures.FindDataset(ctx, workspaceID, opts.Dataset)
	if err != nil {
		return nil, err
	}
	result := &Result{Dataset: ds}

	targets := []Value{{KPI: SnowKPI, Measure: opts.SnowMeasure}}
	if !opts.SnowOnly {
		targets = append(targets, Value{KPI: ICMKPI, Measure: opts.ICMMeasure})
	}
	for _, t := range targets {
		v, err := s.Measures.MeasureValue(ctx, workspaceID, ds.ID, t.Measure)
		if err != nil {
			return result, s.suggest(ctx, workspaceID, ds.ID, t.Measure, err)
		}
		t.Value = math.Round(v)
		s.Log.WithFields(logrus.Fields{"kpi": t.KPI, "measure": t.Measure, "value": t.Value}).Info("measure fetched")
		result.Values = append(result.Values, t)
	}

	if opts.DryRun {
		s.Log.Info("dry run, data file not modified")
		return result, nil
	}
	if err := s.write(result.Values); err != nil {
		return result, err
	}
	result.Written = true
	return result, nil
}

func (s *Syncer) write(values []Value) error {
	doc, buf, err := s.Store.Load()
	if err != nil {
		return err
	}
	today := s.now().Format("2006-01-02")
	for _, v := range values {
		if err := Apply(doc, v.KPI, v.Value, today); err != nil {
			return err
		}
	}
	out, err := s.Store.Render(buf, doc)
	if err != nil {
		return err
	}
	if err := s.Store.Write(out); err != nil {
		return err
	}
	s.Log.WithField("file", s.Store.Path).Info("external KPIs updated")
	return nil
}

// Apply sets value and lastUpdated on the externalKpis entry named kpi.
func Apply(doc *dataset.Document, kpi string, value float64, lastUpdated string) error {
	set := doc.Set(ingest.KeyExternalKPIs)
	if set != nil {
		for _, rec := range set.Records {
			if rec.String("name") == kpi {
				rec.Set("value", value)
				rec.Set("lastUpdated", lastUpdated)
				return nil
			}
		}
	}
	return apperrors.NotFound("external KPI", kpi).
		WithSuggestions(fmt.Sprintf("Add an entry named '%s' to %s", kpi, ingest.KeyExternalKPIs))
}

// suggest attaches the dataset's ticket-like measure names to a failed
// lookup. Listing failures are ignored.
func (s *Syncer) suggest(ctx context.Context, workspaceID, datasetID, measure string, cause error) error {
	err := apperrors.Wrap(cause, apperrors.GetErrorCode(cause), fmt.Sprintf("failed to read measure '%s'", measure)).
		WithContext("measure", measure)
	names, lerr := s.Measures.ListMeasures(ctx, workspaceID, datasetID)
	if lerr != nil {
		s.Log.WithError(lerr).Debug("measure listing failed")
		return err
	}
	var hints []string
	for _, name := range names {
		if matchesHint(name) {
			hints = append(hints, "Possible measure name: "+name)
		}
	}
	if len(hints) == 0 {
		return err
	}
	return err.WithSuggestions(hints...)
}

func matchesHint(name string) bool {
	lower := strings.ToLower(name)
	for _, h := range measureHints {
		if strings.Contains(lower, h) {
			return true
		}
	}
	return false
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
