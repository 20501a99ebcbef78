package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"jira_search/internal/logger"
)

const (
	cloudSearchPath  = "rest/api/3/search/jql"
	serverSearchPath = "rest/api/2/search"
	userAgent        = "jira-search/1.0"
)

// Options configures a Client
type Options struct {
	URL             string
	Username        string
	APIToken        string
	PersonalToken   string
	IsCloud         bool
	SSLVerify       bool
	Timeout         time.Duration
	RetryMaxElapsed time.Duration
	HTTPClient      *http.Client
}

// Client provides HTTP access to the Jira REST API. Responses are returned
// as decoded JSON (numbers as json.Number) for the model package to normalize.
type Client struct {
	baseURL         string
	isCloud         bool
	username        string
	apiToken        string
	personalToken   string
	retryMaxElapsed time.Duration
	retryInterval   time.Duration
	httpClient      *http.Client
}

// HTTPError is returned when Jira answers with a non-2xx status
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jira API returned %d", e.StatusCode)
	}
	return fmt.Sprintf("jira API returned %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new Jira client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if !opts.SSLVerify {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via JIRA_SSL_VERIFY=false
		}
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}
	return &Client{
		baseURL:         strings.TrimSuffix(opts.URL, "/"),
		isCloud:         opts.IsCloud,
		username:        opts.Username,
		apiToken:        opts.APIToken,
		personalToken:   opts.PersonalToken,
		retryMaxElapsed: opts.RetryMaxElapsed,
		retryInterval:   500 * time.Millisecond,
		httpClient:      httpClient,
	}
}

// IsCloud reports whether the client talks to Jira Cloud
func (c *Client) IsCloud() bool { return c.isCloud }

// WithPersonalToken returns a copy of the client that authenticates with
// the given personal access token instead of the configured credentials.
func (c *Client) WithPersonalToken(token string) *Client {
	clone := *c
	clone.username = ""
	clone.apiToken = ""
	clone.personalToken = token
	return &clone
}

// SearchRequest holds the parameters of a JQL search call
type SearchRequest struct {
	JQL           string
	Fields        []string
	StartAt       int
	MaxResults    int
	Expand        string
	NextPageToken string // Cloud only
}

// Search runs a JQL search. Cloud posts to the /search/jql endpoint, which
// pages by token and ignores StartAt; Server/DC uses the classic
// offset-paged /search endpoint.
func (c *Client) Search(ctx context.Context, req SearchRequest) (any, error) {
	if c.isCloud {
		payload := map[string]any{
			"jql":        req.JQL,
			"maxResults": req.MaxResults,
		}
		if len(req.Fields) > 0 {
			payload["fields"] = req.Fields
		}
		if req.Expand != "" {
			payload["expand"] = req.Expand
		}
		if req.NextPageToken != "" {
			payload["nextPageToken"] = req.NextPageToken
		}
		return c.doRequest(ctx, http.MethodPost, cloudSearchPath, nil, payload)
	}

	params := url.Values{
		"jql":        {req.JQL},
		"startAt":    {strconv.Itoa(req.StartAt)},
		"maxResults": {strconv.Itoa(req.MaxResults)},
	}
	if len(req.Fields) > 0 {
		params.Set("fields", strings.Join(req.Fields, ","))
	}
	if req.Expand != "" {
		params.Set("expand", req.Expand)
	}
	return c.doRequest(ctx, http.MethodGet, serverSearchPath, params, nil)
}

// IssueQuery holds the parameters of the agile board and sprint issue calls
type IssueQuery struct {
	JQL        string
	Fields     []string
	StartAt    int
	MaxResults int
	Expand     string
}

func (q IssueQuery) values() url.Values {
	params := url.Values{
		"startAt":    {strconv.Itoa(q.StartAt)},
		"maxResults": {strconv.Itoa(q.MaxResults)},
	}
	if q.JQL != "" {
		params.Set("jql", q.JQL)
	}
	if len(q.Fields) > 0 {
		params.Set("fields", strings.Join(q.Fields, ","))
	}
	if q.Expand != "" {
		params.Set("expand", q.Expand)
	}
	return params
}

// BoardIssues lists the issues on an agile board
func (c *Client) BoardIssues(ctx context.Context, boardID string, q IssueQuery) (any, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("rest/agile/1.0/board/%s/issue", url.PathEscape(boardID)), q.values(), nil)
}

// SprintIssues lists the issues in a sprint
func (c *Client) SprintIssues(ctx context.Context, sprintID string, q IssueQuery) (any, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("rest/agile/1.0/sprint/%s/issue", url.PathEscape(sprintID)), q.values(), nil)
}

// GetIssue fetches a single issue by key (e.g. "PROJ-123")
func (c *Client) GetIssue(ctx context.Context, key string, fields []string) (any, error) {
	version := "2"
	if c.isCloud {
		version = "3"
	}
	params := url.Values{}
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("rest/api/%s/issue/%s", version, url.PathEscape(key)), params, nil)
}

func (c *Client) newBackoff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryInterval
	bo.MaxElapsedTime = c.retryMaxElapsed
	if c.retryMaxElapsed <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}
	return backoff.WithContext(bo, ctx)
}

// doRequest executes an authenticated request, retrying transport errors,
// 429 and 5xx responses, and returns the decoded JSON body.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, payload any) (any, error) {
	if c.baseURL == "" {
		return nil, errors.New("jira URL not configured")
	}

	apiURL := c.baseURL + "/" + path
	if len(params) > 0 {
		apiURL += "?" + params.Encode()
	}

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}

	var respBody []byte
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		var err error
		respBody, err = c.send(ctx, method, apiURL, body)
		if err == nil {
			return nil
		}
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !retryableStatus(httpErr.StatusCode) {
			return backoff.Permanent(err)
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		logger.GetLogger().Warn("jira request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}, c.newBackoff(ctx))
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("parse Jira response: %w", err)
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, apiURL string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	c.setAuth(req)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	return respBody, nil
}

// setAuth uses basic auth for username + API token and bearer auth for
// personal access tokens.
func (c *Client) setAuth(req *http.Request) {
	switch {
	case c.personalToken != "":
		req.Header.Set("Authorization", "Bearer "+c.personalToken)
	case c.username != "" && c.apiToken != "":
		auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.apiToken))
		req.Header.Set("Authorization", "Basic "+auth)
	case c.apiToken != "":
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
