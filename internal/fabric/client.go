package fabric

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "fabdrop/pkg/errors"
	"fabdrop/pkg/models"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/sirupsen/logrus"
)

const (
	moduleName    = "fabdrop"
	moduleVersion = "v1.0.0"
)

// Operation states of long-running operations and refreshes.
const (
	StatusSucceeded = "Succeeded"
	StatusCompleted = "Completed"
	StatusFailed    = "Failed"
	StatusCancelled = "Cancelled"
)

// ClientOptions configures a REST client.
type ClientOptions struct {
	policy.ClientOptions

	// Poll controls long-running operation polling.
	Poll apperrors.PollConfig
	Log  logrus.FieldLogger
}

// PollConfig converts the configured polling settings.
func PollConfig(cfg models.PollingConfig) apperrors.PollConfig {
	return apperrors.PollConfig{
		InitialWait: cfg.InitialWait,
		Interval:    cfg.Interval,
		MaxAttempts: cfg.MaxAttempts,
	}
}

// rest is the shared core of the Fabric and Power BI clients: an azcore
// pipeline with a bearer token policy for one scope.
type rest struct {
	pl      runtime.Pipeline
	baseURL string
	poll    apperrors.PollConfig
	log     logrus.FieldLogger
}

func newRest(baseURL, scope string, cred azcore.TokenCredential, opts *ClientOptions) rest {
	if opts == nil {
		opts = &ClientOptions{}
	}
	poll := opts.Poll
	if poll.MaxAttempts == 0 {
		poll = apperrors.DefaultPollConfig()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	bearer := runtime.NewBearerTokenPolicy(cred, []string{scope}, nil)
	pl := runtime.NewPipeline(moduleName, moduleVersion,
		runtime.PipelineOptions{PerRetry: []policy.Policy{bearer}}, &opts.ClientOptions)

	return rest{
		pl:      pl,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		poll:    poll,
		log:     log,
	}
}

func (r *rest) url(path string) string {
	if strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return path
	}
	return r.baseURL + path
}

// send issues one request. body, when non-nil, is sent as JSON.
func (r *rest) send(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	req, err := runtime.NewRequest(ctx, method, r.url(path))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to build request").
			WithContext("url", r.url(path))
	}
	req.Raw().Header.Set("Accept", "application/json")
	if body != nil {
		if err := runtime.MarshalAsJSON(req, body); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode request body")
		}
	}
	resp, err := r.pl.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if apperrors.GetErrorCode(err) == apperrors.ErrCodeAuth {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRemoteRejected, "request failed").
			WithContext("method", method).
			WithContext("url", r.url(path))
	}
	return resp, nil
}

// call sends a request and requires one of the ok statuses (200 when none are
// given). A JSON body is decoded into out when out is non-nil.
func (r *rest) call(ctx context.Context, operation, method, path string, body, out interface{}, ok ...int) (*http.Response, error) {
	if len(ok) == 0 {
		ok = []int{http.StatusOK}
	}
	resp, err := r.send(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if !runtime.HasStatusCode(resp, ok...) {
		payload, _ := runtime.Payload(resp)
		return nil, apperrors.RemoteRejected(operation, resp.StatusCode, string(payload))
	}
	if out != nil && resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		payload, err := runtime.Payload(resp)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeRemoteRejected, "failed to read "+operation+" response")
		}
		if len(strings.TrimSpace(string(payload))) > 0 {
			if err := json.Unmarshal(payload, out); err != nil {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformed, "unexpected "+operation+" response").
					WithContext("body", string(payload))
			}
		}
	}
	return resp, nil
}

// Operation is the state document of a long-running operation.
type Operation struct {
	Status          string          `json:"status"`
	PercentComplete int             `json:"percentComplete"`
	Error           json.RawMessage `json:"error,omitempty"`
}

// wait polls the operation named by resp's Location header until it reaches
// a terminal state. Retry-After, when present, replaces the initial wait.
// It returns the Location URL, or "" when the service gave none.
func (r *rest) wait(ctx context.Context, operation string, resp *http.Response) (string, error) {
	location := resp.Header.Get("Location")
	log := r.log.WithField("operation", operation)
	if location == "" {
		log.Info("accepted without a poll URL")
		return "", nil
	}

	cfg := r.poll
	if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && seconds >= 0 {
		cfg.InitialWait = time.Duration(seconds) * time.Second
	}

	err := apperrors.Poll(ctx, operation, cfg, func(ctx context.Context, attempt int) (bool, error) {
		var op Operation
		pollResp, err := r.call(ctx, operation+" poll", http.MethodGet, location, nil, &op)
		if err != nil {
			return false, err
		}
		switch op.Status {
		case StatusSucceeded, StatusCompleted:
			log.WithField("poll", attempt).Info("operation finished")
			return true, nil
		case StatusFailed, StatusCancelled:
			detail := string(op.Error)
			if detail == "" {
				detail = op.Status
			}
			return false, apperrors.RemoteRejected(operation, pollResp.StatusCode, detail).
				WithContext("state", op.Status)
		default:
			log.WithFields(logrus.Fields{
				"poll":    attempt,
				"status":  op.Status,
				"percent": op.PercentComplete,
			}).Info("operation in progress")
			return false, nil
		}
	})
	return location, err
}
