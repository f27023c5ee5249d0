// Package tracking is a minimal client for the MLflow tracking server REST API,
// covering what weight validation needs: resolving an experiment and finding
// its best finished run.
package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/cs-gavin-huang/MLOPS-human-pose-estimation/errors"
)

const (
	apiPrefix = "/api/2.0/mlflow"

	// FinishedFilter selects runs that completed successfully.
	FinishedFilter = "attributes.status = 'FINISHED'"

	searchPageSize = 1000
)

// Client talks to one tracking server.
type Client struct {
	httpclient *http.Client
	api        string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpclient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the tracking server at trackingURI.
func New(trackingURI string, opts ...Option) (*Client, error) {
	u, err := url.Parse(trackingURI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Newf(errors.CodeInvalidConfig, "tracking URI %q must be an http(s) URL", trackingURI)
	}

	c := &Client{
		httpclient: http.DefaultClient,
		api:        strings.TrimSuffix(u.String(), "/") + apiPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// apiError is the error body returned by the tracking server.
type apiError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// GetExperimentByName resolves an experiment. A missing experiment is a
// CodeNotFound error.
func (c *Client) GetExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	q := url.Values{"experiment_name": {name}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.api+"/experiments/get-by-name?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to build request")
	}

	var body struct {
		Experiment Experiment `json:"experiment"`
	}
	if err := c.do(req, &body); err != nil {
		if errors.HasCode(err, errors.CodeNotFound) {
			return nil, errors.Wrapf(err, errors.CodeNotFound, "experiment %q not found", name)
		}
		return nil, err
	}
	return &body.Experiment, nil
}

// SearchRuns returns every run of the experiments matching filter, following
// pagination to the end.
func (c *Client) SearchRuns(ctx context.Context, experimentIDs []string, filter string) ([]Run, error) {
	var runs []Run
	token := ""
	for {
		payload := map[string]interface{}{
			"experiment_ids": experimentIDs,
			"filter":         filter,
			"max_results":    searchPageSize,
		}
		if token != "" {
			payload["page_token"] = token
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to encode search request")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.api+"/runs/search", bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to build request")
		}
		req.Header.Set("Content-Type", "application/json")

		var page struct {
			Runs          []Run  `json:"runs"`
			NextPageToken string `json:"next_page_token"`
		}
		if err := c.do(req, &page); err != nil {
			return nil, err
		}
		runs = append(runs, page.Runs...)

		if page.NextPageToken == "" {
			return runs, nil
		}
		token = page.NextPageToken
	}
}

// BestRun returns the finished run of experiment with the lowest value of the
// lossTag tag, together with that value. Runs whose tag is missing or not a
// number are skipped. No eligible run is a CodeNotFound error.
func (c *Client) BestRun(ctx context.Context, experiment, lossTag string) (*Run, float64, error) {
	exp, err := c.GetExperimentByName(ctx, experiment)
	if err != nil {
		return nil, 0, err
	}

	runs, err := c.SearchRuns(ctx, []string{exp.ID}, FinishedFilter)
	if err != nil {
		return nil, 0, err
	}

	var best *Run
	bestLoss := math.Inf(1)
	for i := range runs {
		loss, ok := runs[i].FloatTag(lossTag)
		if !ok || math.IsNaN(loss) {
			c.logger.Debug("skipping run without a usable loss tag", "run_id", runs[i].Info.RunID, "tag", lossTag)
			continue
		}
		if best == nil || loss < bestLoss {
			best, bestLoss = &runs[i], loss
		}
	}

	if best == nil {
		return nil, 0, errors.Newf(errors.CodeNotFound,
			"no runs in the experiment %q are in %s status", experiment, StatusFinished)
	}

	c.logger.Info("found best run", "run_id", best.Info.RunID, "run_name", best.Info.RunName, lossTag, bestLoss)
	return best, bestLoss, nil
}

func (c *Client) do(req *http.Request, v interface{}) error {
	c.logger.Debug("tracking request", "method", req.Method, "url", req.URL.String())

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeNetwork, "tracking server request failed",
			map[string]interface{}{"url": req.URL.String()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "failed to read tracking server response")
	}

	if resp.StatusCode >= 300 {
		code := errors.CodeNetwork
		if resp.StatusCode == http.StatusNotFound {
			code = errors.CodeNotFound
		}
		var apiErr apiError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			msg = fmt.Sprintf("%s: %s", apiErr.ErrorCode, apiErr.Message)
			if apiErr.ErrorCode == "RESOURCE_DOES_NOT_EXIST" {
				code = errors.CodeNotFound
			}
		}
		return errors.WrapWithContext(fmt.Errorf("%s", msg), code, "tracking server returned an error",
			map[string]interface{}{"status": resp.StatusCode, "url": req.URL.Path})
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "malformed tracking server response")
	}
	return nil
}
