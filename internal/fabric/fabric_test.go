package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fabdrop/internal/auth"
	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

func testCredential() *auth.Credential {
	return auth.NewCredential(auth.TokenFunc(func(ctx context.Context, resource string) (string, error) {
		return testToken, nil
	}))
}

func testOptions(srv *httptest.Server) *ClientOptions {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &ClientOptions{
		ClientOptions: policy.ClientOptions{
			Transport: srv.Client(),
			Retry:     policy.RetryOptions{MaxRetries: -1},
		},
		Poll: apperrors.PollConfig{Interval: time.Millisecond, MaxAttempts: 5},
		Log:  log,
	}
}

// newServer serves mux over TLS and checks the bearer token on every request.
func newServer(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newFabric(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	srv := newServer(t, mux)
	return NewClient(srv.URL+"/v1", testCredential(), testOptions(srv)), srv
}

func TestFindWorkspace(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/v1/workspaces", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("continuationToken") == "" {
			writeJSON(w, 200, map[string]interface{}{
				"value":           []Workspace{{ID: "ws-1", DisplayName: "Finance"}},
				"continuationUri": srvURL + "/v1/workspaces?continuationToken=p2",
			})
			return
		}
		writeJSON(w, 200, map[string]interface{}{
			"value": []Workspace{{ID: "ws-2", DisplayName: "SCM-Dev"}},
		})
	})
	client, srv := newFabric(t, mux)
	srvURL = srv.URL

	ws, err := client.FindWorkspace(context.Background(), "scm-dev")
	require.NoError(t, err)
	assert.Equal(t, "ws-2", ws.ID)

	_, err = client.FindWorkspace(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetErrorCode(err))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Suggestions[0], "Finance, SCM-Dev")
}

func TestFindLakehouse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws-1/items", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Lakehouse", r.URL.Query().Get("type"))
		writeJSON(w, 200, map[string]interface{}{"value": []Item{
			{ID: "lh-1", DisplayName: "sls_lh", Type: "Lakehouse"},
			{ID: "lh-2", DisplayName: "other", Type: "Lakehouse"},
		}})
	})
	mux.HandleFunc("/v1/workspaces/ws-empty/items", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"value": []Item{}})
	})
	client, _ := newFabric(t, mux)

	lh, err := client.FindLakehouse(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "lh-1", lh.ID)

	_, err = client.FindLakehouse(context.Background(), "ws-empty")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetErrorCode(err))
}

func TestGitConnection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/workspaces/ws-1/git/connection", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{
			"gitConnectionState": ConnectedAndInitialized,
			"gitProviderDetails": map[string]string{
				"gitProviderType":  "AzureDevOps",
				"organizationName": "contoso",
				"projectName":      "BI",
				"repositoryName":   "reports",
				"branchName":       "main",
				"directoryName":    "/fabric/",
			},
		})
	})
	mux.HandleFunc("/v1/workspaces/ws-2/git/connection", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"gitConnectionState": "NotConnected"})
	})
	client, _ := newFabric(t, mux)

	conn, err := client.GitConnection(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, "contoso", conn.Provider.OrganizationName)
	assert.Equal(t, "/fabric", conn.Provider.Directory())

	_, err = client.GitConnection(context.Background(), "ws-2")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "NotConnected")
}

func TestGitStatusPolled(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	var polls atomic.Int32
	mux.HandleFunc("/v1/workspaces/ws-1/git/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srvURL+"/v1/operations/op-1")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v1/operations/op-1", func(w http.ResponseWriter, r *http.Request) {
		status := "Running"
		if polls.Add(1) >= 2 {
			status = StatusSucceeded
		}
		writeJSON(w, 200, map[string]interface{}{"status": status, "percentComplete": 50})
	})
	mux.HandleFunc("/v1/operations/op-1/result", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, GitStatus{
			WorkspaceHead:    "aaa",
			RemoteCommitHash: "bbb",
			Changes: []GitChange{{
				RemoteChange: "Modified",
				ItemMetadata: ItemMetadata{ItemType: "SemanticModel", DisplayName: "SLS MBR"},
			}},
		})
	})
	client, srv := newFabric(t, mux)
	srvURL = srv.URL

	status, err := client.GitStatus(context.Background(), "ws-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), polls.Load())
	assert.Equal(t, "bbb", status.RemoteCommitHash)
	require.Len(t, status.Changes, 1)
	assert.Equal(t, "SLS MBR", status.Changes[0].ItemMetadata.DisplayName)

	req := PreferRemote(status)
	assert.Equal(t, "PreferRemote", req.ConflictResolution.Policy)
	assert.True(t, req.Options.AllowOverrideItems)
}

func TestUpdateFromGit(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	var body UpdateFromGitRequest
	mux.HandleFunc("/v1/workspaces/ws-sync/git/updateFromGit", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/workspaces/ws-fail/git/updateFromGit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srvURL+"/v1/operations/op-fail")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v1/operations/op-fail", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{
			"status": StatusFailed,
			"error":  map[string]string{"errorCode": "ItemConflict"},
		})
	})
	client, srv := newFabric(t, mux)
	srvURL = srv.URL

	req := PreferRemote(&GitStatus{WorkspaceHead: "aaa", RemoteCommitHash: "bbb"})
	require.NoError(t, client.UpdateFromGit(context.Background(), "ws-sync", req))
	assert.Equal(t, "bbb", body.RemoteCommitHash)
	assert.Equal(t, "Workspace", body.ConflictResolution.Type)

	err := client.UpdateFromGit(context.Background(), "ws-fail", req)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, apperrors.GetErrorCode(err))
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, StatusFailed, appErr.Context["state"])
	assert.Contains(t, appErr.Context["body"], "ItemConflict")
}

func TestLoadTable(t *testing.T) {
	mux := http.NewServeMux()
	var srvURL string
	var polls atomic.Int32
	var got LoadTableRequest
	mux.HandleFunc("/v1/workspaces/ws-1/lakehouses/lh-1/tables/dim_Date/load", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/workspaces/ws-1/lakehouses/lh-1/tables/fact_Spend/load", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srvURL+"/v1/operations/load-1")
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v1/operations/load-1", func(w http.ResponseWriter, r *http.Request) {
		status := "Running"
		if polls.Add(1) == 3 {
			status = StatusCompleted
		}
		writeJSON(w, 200, map[string]interface{}{"status": status})
	})
	mux.HandleFunc("/v1/workspaces/ws-1/lakehouses/lh-1/tables/fact_Risk/load", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, map[string]string{"errorCode": "InsufficientPrivileges"})
	})
	mux.HandleFunc("/v1/workspaces/ws-1/lakehouses/lh-1/tables/dim_Publisher/load", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", srvURL+"/v1/operations/stuck")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("/v1/operations/stuck", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"status": "Running", "percentComplete": 10})
	})
	client, srv := newFabric(t, mux)
	srvURL = srv.URL
	ctx := context.Background()

	req := CSVOverwrite("Files/sls_mbr_data/dim_Date.csv")
	require.NoError(t, client.LoadTable(ctx, "ws-1", "lh-1", "dim_Date", req))
	assert.Equal(t, req, got)
	assert.Equal(t, "Csv", got.FormatOptions.Format)

	require.NoError(t, client.LoadTable(ctx, "ws-1", "lh-1", "fact_Spend", CSVOverwrite("Files/x/fact_Spend.csv")))
	assert.Equal(t, int32(3), polls.Load())

	err := client.LoadTable(ctx, "ws-1", "lh-1", "fact_Risk", CSVOverwrite("Files/x/fact_Risk.csv"))
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, appErr.Code)
	assert.Equal(t, 403, appErr.Context["status"])
	assert.Equal(t, "fact_Risk", appErr.Context["table"])
	assert.Contains(t, fmt.Sprint(appErr.Context["body"]), "InsufficientPrivileges")

	err = client.LoadTable(ctx, "ws-1", "lh-1", "dim_Publisher", CSVOverwrite("Files/x/dim_Publisher.csv"))
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "dim_Publisher")
}

func TestAuthFailureSurfaces(t *testing.T) {
	srv := newServer(t, http.NewServeMux())
	cred := auth.NewCredential(auth.TokenFunc(func(ctx context.Context, resource string) (string, error) {
		return "", apperrors.AuthError(resource, fmt.Errorf("az login required"))
	}))
	client := NewClient(srv.URL+"/v1", cred, testOptions(srv))

	_, err := client.ListWorkspaces(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuth, apperrors.GetErrorCode(err))
	assert.Equal(t, "AuthError", apperrors.GetErrorCode(err).Kind())

	cred = auth.NewCredential(auth.TokenFunc(func(ctx context.Context, resource string) (string, error) {
		return "", fmt.Errorf("az: command not found")
	}))
	client = NewClient(srv.URL+"/v1", cred, testOptions(srv))
	_, err = client.ListWorkspaces(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeAuth, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "az: command not found")
}

func newPowerBI(t *testing.T, mux *http.ServeMux) *PowerBI {
	srv := newServer(t, mux)
	return NewPowerBI(srv.URL+"/v1.0/myorg", testCredential(), testOptions(srv))
}

func TestPowerBILookups(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.0/myorg/groups/ws-1/datasets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"value": []Dataset{{ID: "ds-1", Name: "SLS MBR"}}})
	})
	mux.HandleFunc("/v1.0/myorg/groups/ws-1/reports", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"value": []Report{
			{ID: "r-1", Name: "SLS MBR Report", WebURL: "https://app.powerbi.com/r-1"},
		}})
	})
	pbi := newPowerBI(t, mux)
	ctx := context.Background()

	ds, err := pbi.FindDataset(ctx, "ws-1", "SLS MBR")
	require.NoError(t, err)
	assert.Equal(t, "ds-1", ds.ID)

	_, err = pbi.FindDataset(ctx, "ws-1", "sls mbr")
	assert.Equal(t, apperrors.ErrCodeNotFound, apperrors.GetErrorCode(err))

	rpt, err := pbi.FindReport(ctx, "ws-1", "SLS MBR Report")
	require.NoError(t, err)
	assert.Equal(t, "https://app.powerbi.com/r-1", rpt.WebURL)
}

func TestRefresh(t *testing.T) {
	mux := http.NewServeMux()
	var polls atomic.Int32
	var triggered atomic.Bool
	mux.HandleFunc("/v1.0/myorg/groups/ws-1/datasets/ds-1/refreshes", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Full", body["type"])
			triggered.Store(true)
			w.WriteHeader(http.StatusAccepted)
			return
		}
		top := r.URL.Query().Get("$top")
		if top == "5" {
			writeJSON(w, 200, map[string]interface{}{"value": []Refresh{
				{Status: StatusCompleted, StartTime: "2026-02-01T10:00:00Z", EndTime: "2026-02-01T10:01:00Z"},
				{Status: StatusFailed},
			}})
			return
		}
		assert.Equal(t, "1", top)
		status := "Unknown"
		if polls.Add(1) >= 2 {
			status = StatusCompleted
		}
		writeJSON(w, 200, map[string]interface{}{"value": []Refresh{{Status: status, StartTime: "s", EndTime: "e"}}})
	})
	mux.HandleFunc("/v1.0/myorg/groups/ws-1/datasets/ds-bad/refreshes", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]interface{}{"value": []Refresh{
			{Status: StatusFailed, ServiceExceptionJSON: `{"errorCode":"ModelRefreshFailed"}`},
		}})
	})
	pbi := newPowerBI(t, mux)
	ctx := context.Background()

	require.NoError(t, pbi.TriggerRefresh(ctx, "ws-1", "ds-1"))
	assert.True(t, triggered.Load())

	last, err := pbi.WaitForRefresh(ctx, "ws-1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, last.Status)
	assert.True(t, last.Finished())

	history, err := pbi.RefreshHistory(ctx, "ws-1", "ds-1", 5)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = pbi.WaitForRefresh(ctx, "ws-1", "ds-bad")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeRemoteRejected, apperrors.GetErrorCode(err))
	assert.Contains(t, err.Error(), "refresh")
}

func TestMeasures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1.0/myorg/groups/ws-1/datasets/ds-1/executeQueries", func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.SerializerSettings.IncludeNulls)
		rows := []map[string]interface{}{}
		switch req.Queries[0].Query {
		case MeasureQuery("SNOW Tickets MTD"):
			rows = append(rows, map[string]interface{}{"[Value]": 314.6})
		case MeasureQuery("ICM Tickets MTD"):
			rows = append(rows, map[string]interface{}{"[Value]": "135"})
		case MeasureQuery("Empty"):
			rows = append(rows, map[string]interface{}{"[Value]": nil})
		default:
			rows = append(rows,
				map[string]interface{}{"[Name]": "Total Spend"},
				map[string]interface{}{"[Name]": "SNOW Tickets MTD"},
				map[string]interface{}{"[Name]": "Total Spend"},
			)
		}
		writeJSON(w, 200, map[string]interface{}{
			"results": []interface{}{map[string]interface{}{
				"tables": []interface{}{map[string]interface{}{"rows": rows}},
			}},
		})
	})
	pbi := newPowerBI(t, mux)
	ctx := context.Background()

	v, err := pbi.MeasureValue(ctx, "ws-1", "ds-1", "SNOW Tickets MTD")
	require.NoError(t, err)
	assert.InDelta(t, 314.6, v, 1e-9)

	v, err = pbi.MeasureValue(ctx, "ws-1", "ds-1", "ICM Tickets MTD")
	require.NoError(t, err)
	assert.Equal(t, 135.0, v)

	_, err = pbi.MeasureValue(ctx, "ws-1", "ds-1", "Empty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned null")

	names, err := pbi.ListMeasures(ctx, "ws-1", "ds-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"SNOW Tickets MTD", "Total Spend"}, names)
}

func TestPollConfig(t *testing.T) {
	got := PollConfig(models.PollingConfig{Interval: time.Second, MaxAttempts: 3, InitialWait: 2 * time.Second})
	assert.Equal(t, apperrors.PollConfig{InitialWait: 2 * time.Second, Interval: time.Second, MaxAttempts: 3}, got)
}
