package fabric

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"fabdrop/internal/auth"
	apperrors "fabdrop/pkg/errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/sirupsen/logrus"
)

// Dataset is a Power BI dataset (semantic model).
type Dataset struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WebURL        string `json:"webUrl,omitempty"`
	IsRefreshable bool   `json:"isRefreshable,omitempty"`
}

// Report is a Power BI report.
type Report struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	WebURL    string `json:"webUrl"`
	DatasetID string `json:"datasetId,omitempty"`
}

// Refresh is one entry of a dataset's refresh history. Status is Unknown
// while the refresh runs.
type Refresh struct {
	RequestID            string `json:"requestId"`
	RefreshType          string `json:"refreshType"`
	Status               string `json:"status"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime,omitempty"`
	ServiceExceptionJSON string `json:"serviceExceptionJson,omitempty"`
}

// Finished reports whether the refresh reached a terminal state.
func (r Refresh) Finished() bool {
	switch r.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, "Disabled":
		return true
	}
	return false
}

type queryRequest struct {
	Queries            []query            `json:"queries"`
	SerializerSettings serializerSettings `json:"serializerSettings"`
}

type query struct {
	Query string `json:"query"`
}

type serializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

type queryResponse struct {
	Results []struct {
		Tables []struct {
			Rows []map[string]interface{} `json:"rows"`
		} `json:"tables"`
	} `json:"results"`
}

// PowerBI calls the Power BI REST API.
type PowerBI struct {
	rest
}

// NewPowerBI creates a Power BI client for baseURL, e.g. https://api.powerbi.com/v1.0/myorg.
func NewPowerBI(baseURL string, cred azcore.TokenCredential, opts *ClientOptions) *PowerBI {
	return &PowerBI{rest: newRest(baseURL, auth.Scope(auth.ResourcePowerBI), cred, opts)}
}

func groupPath(workspaceID string, parts ...string) string {
	path := "/groups/" + url.PathEscape(workspaceID)
	for _, p := range parts {
		path += "/" + url.PathEscape(p)
	}
	return path
}

// ListDatasets returns the workspace's datasets.
func (p *PowerBI) ListDatasets(ctx context.Context, workspaceID string) ([]Dataset, error) {
	return list[Dataset](ctx, &p.rest, "list datasets", groupPath(workspaceID, "datasets"))
}

// FindDataset looks a dataset up by exact name.
func (p *PowerBI) FindDataset(ctx context.Context, workspaceID, name string) (*Dataset, error) {
	datasets, err := p.ListDatasets(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(datasets))
	for i := range datasets {
		if datasets[i].Name == name {
			return &datasets[i], nil
		}
		names = append(names, datasets[i].Name)
	}
	return nil, notFound("dataset", name, names)
}

// ListReports returns the workspace's reports.
func (p *PowerBI) ListReports(ctx context.Context, workspaceID string) ([]Report, error) {
	return list[Report](ctx, &p.rest, "list reports", groupPath(workspaceID, "reports"))
}

// FindReport looks a report up by exact name.
func (p *PowerBI) FindReport(ctx context.Context, workspaceID, name string) (*Report, error) {
	reports, err := p.ListReports(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(reports))
	for i := range reports {
		if reports[i].Name == name {
			return &reports[i], nil
		}
		names = append(names, reports[i].Name)
	}
	return nil, notFound("report", name, names)
}

// TriggerRefresh starts a full refresh of the dataset.
func (p *PowerBI) TriggerRefresh(ctx context.Context, workspaceID, datasetID string) error {
	body := map[string]string{"type": "Full"}
	_, err := p.call(ctx, "refresh", http.MethodPost, groupPath(workspaceID, "datasets", datasetID, "refreshes"),
		body, nil, http.StatusOK, http.StatusAccepted)
	if err != nil {
		return err
	}
	p.log.WithField("dataset", datasetID).Info("refresh triggered")
	return nil
}

// RefreshHistory returns the last top refreshes, newest first.
func (p *PowerBI) RefreshHistory(ctx context.Context, workspaceID, datasetID string, top int) ([]Refresh, error) {
	if top <= 0 {
		top = 1
	}
	path := groupPath(workspaceID, "datasets", datasetID, "refreshes") + "?$top=" + strconv.Itoa(top)
	var out page[Refresh]
	if _, err := p.call(ctx, "refresh history", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Value, nil
}

// WaitForRefresh polls the latest refresh until it completes. Failed or
// cancelled refreshes are RemoteRejected errors.
func (p *PowerBI) WaitForRefresh(ctx context.Context, workspaceID, datasetID string) (*Refresh, error) {
	cfg := p.poll
	cfg.InitialWait = cfg.Interval
	var last Refresh

	err := apperrors.Poll(ctx, "refresh", cfg, func(ctx context.Context, attempt int) (bool, error) {
		history, err := p.RefreshHistory(ctx, workspaceID, datasetID, 1)
		if err != nil {
			return false, err
		}
		if len(history) == 0 {
			return false, nil
		}
		last = history[0]
		log := p.log.WithFields(logrus.Fields{"dataset": datasetID, "poll": attempt, "status": last.Status})
		switch last.Status {
		case StatusCompleted:
			log.WithFields(logrus.Fields{"start": last.StartTime, "end": last.EndTime}).Info("refresh completed")
			return true, nil
		case StatusFailed, StatusCancelled, "Disabled":
			return false, apperrors.RemoteRejected("refresh", 0, last.ServiceExceptionJSON).
				WithContext("state", last.Status).
				WithContext("dataset", datasetID)
		default:
			log.Info("refresh in progress")
			return false, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return &last, nil
}

// ExecuteQuery runs a DAX query and returns the rows of its first table.
func (p *PowerBI) ExecuteQuery(ctx context.Context, workspaceID, datasetID, dax string) ([]map[string]interface{}, error) {
	req := queryRequest{
		Queries:            []query{{Query: dax}},
		SerializerSettings: serializerSettings{IncludeNulls: true},
	}
	var resp queryResponse
	if _, err := p.call(ctx, "execute query", http.MethodPost,
		groupPath(workspaceID, "datasets", datasetID, "executeQueries"), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 || len(resp.Results[0].Tables) == 0 {
		return nil, apperrors.Malformed("executeQueries returned no tables", -1).WithContext("query", dax)
	}
	return resp.Results[0].Tables[0].Rows, nil
}

// MeasureQuery is the DAX evaluating one measure as a single-row table.
func MeasureQuery(measure string) string {
	return fmt.Sprintf(`EVALUATE ROW("Value", [%s])`, measure)
}

// MeasureValue evaluates a measure and returns it as a number.
func (p *PowerBI) MeasureValue(ctx context.Context, workspaceID, datasetID, measure string) (float64, error) {
	rows, err := p.ExecuteQuery(ctx, workspaceID, datasetID, MeasureQuery(measure))
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, apperrors.Malformed(fmt.Sprintf("measure '%s' returned no rows", measure), -1)
	}
	value, ok := column(rows[0], "Value")
	if !ok || value == nil {
		return 0, apperrors.New(apperrors.ErrCodeMalformed, fmt.Sprintf("measure '%s' returned null", measure)).
			WithContext("measure", measure)
	}
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f, nil
		}
	}
	return 0, apperrors.New(apperrors.ErrCodeMalformed,
		fmt.Sprintf("measure '%s' returned non-numeric value %v", measure, value)).
		WithContext("measure", measure)
}

// ListMeasures returns the sorted, de-duplicated measure names of the dataset.
func (p *PowerBI) ListMeasures(ctx context.Context, workspaceID, datasetID string) ([]string, error) {
	rows, err := p.ExecuteQuery(ctx, workspaceID, datasetID,
		`EVALUATE SELECTCOLUMNS(INFO.MEASURES(), "Name", [Name])`)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	names := []string{}
	for _, row := range rows {
		v, ok := column(row, "Name")
		if !ok || v == nil {
			continue
		}
		name := fmt.Sprint(v)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// column reads name or [name] from a row; a single-column row answers any name.
func column(row map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := row[name]; ok {
		return v, true
	}
	if v, ok := row["["+name+"]"]; ok {
		return v, true
	}
	if len(row) == 1 {
		for _, v := range row {
			return v, true
		}
	}
	return nil, false
}
