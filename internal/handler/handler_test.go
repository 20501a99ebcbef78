package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jira_search/internal/model"
	"jira_search/internal/service/jira"
	"jira_search/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSearcher struct {
	name   string
	result *model.SearchResult
	err    error

	query string
	opts  jira.SearchOptions
	calls int
}

func (f *fakeSearcher) SearchIssues(_ context.Context, query string, opts jira.SearchOptions) (*model.SearchResult, error) {
	f.calls++
	f.query, f.opts = query, opts
	return f.result, f.err
}

func sampleResult() *model.SearchResult {
	issue := model.NewIssueFromResponse(map[string]any{
		"key": "TEST-1",
		"fields": map[string]any{
			"summary": "Fix login",
			"status":  map[string]any{"name": "Open"},
		},
	}, nil)
	return model.NewSearchResult(1, 0, 20, []model.Issue{issue})
}

type testHandler struct {
	*Handler
	defaultSearcher *fakeSearcher
	userSearcher    *fakeSearcher
	userToken       string
	store           *storage.MemoryTokenStore
}

func newTestHandler(secret string) *testHandler {
	th := &testHandler{
		defaultSearcher: &fakeSearcher{name: "default", result: sampleResult()},
		userSearcher:    &fakeSearcher{name: "user", result: sampleResult()},
		store:           storage.NewMemoryTokenStore(),
	}
	th.Handler = &Handler{
		searcher: th.defaultSearcher,
		forToken: func(token string) Searcher {
			th.userToken = token
			return th.userSearcher
		},
		tokenStore:    th.store,
		signingSecret: secret,
	}
	return th
}

func TestHandleSearch(t *testing.T) {
	th := newTestHandler("")
	router := th.Router()

	req := httptest.NewRequest(http.MethodGet, "/search?jql="+url.QueryEscape("text ~ 'login'")+"&fields=summary,status&limit=5&start_at=10&projects_filter=TEST", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text ~ 'login'", th.defaultSearcher.query)
	assert.Equal(t, jira.SearchOptions{Fields: "summary,status", Start: 10, Limit: 5, ProjectsFilter: "TEST"}, th.defaultSearcher.opts)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(0), body["start_at"])
	assert.Equal(t, float64(20), body["max_results"])
	assert.Len(t, body["issues"], 1)
}

func TestHandleSearch_InvalidParams(t *testing.T) {
	router := newTestHandler("").Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?start_at=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSearch_IgnoresUserHeader(t *testing.T) {
	th := newTestHandler(testSecret)
	require.NoError(t, th.store.SetToken(context.Background(), "U_OTHER", "other-users-token"))
	router := th.Router()

	req := httptest.NewRequest(http.MethodGet, "/search?jql=x", nil)
	req.Header.Set("X-User-ID", "U_OTHER")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, th.userToken)
	assert.Equal(t, 0, th.userSearcher.calls)
	assert.Equal(t, 1, th.defaultSearcher.calls)
}

func TestHandleSearch_JiraErrors(t *testing.T) {
	th := newTestHandler("")
	th.defaultSearcher.err = fmt.Errorf("error searching issues: %w", &jira.HTTPError{StatusCode: 400, Body: "Error in the JQL Query"})
	router := th.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?jql=bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error in the JQL Query")

	th.defaultSearcher.err = fmt.Errorf("error searching issues: %w", &jira.HTTPError{StatusCode: 503})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?jql=x", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func slashRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

const testSecret = "signing-secret"

// signedSlashRequest builds a slash command request signed with testSecret
func signedSlashRequest(path string, form url.Values) *http.Request {
	req := slashRequest(path, form)
	signRequest(req, testSecret, form.Encode())
	return req
}

func signRequest(req *http.Request, secret, body string) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte("v0:" + ts + ":" + body))
	req.Header.Set("X-Slack-Request-Timestamp", ts)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
}

func TestHandleSlashSearch(t *testing.T) {
	th := newTestHandler(testSecret)
	router := th.Router()

	form := url.Values{"user_id": {"U9"}, "text": {"ORDER BY created DESC"}, "command": {"/jira-search"}}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/search", form))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ORDER BY created DESC", th.defaultSearcher.query)
	assert.Equal(t, maxSlackIssues, th.defaultSearcher.opts.Limit)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msg))
	assert.Equal(t, "ephemeral", msg["response_type"])
	assert.Contains(t, msg["text"], "Found 1 issues")
	assert.Contains(t, w.Body.String(), "*TEST-1* Fix login _(Open)_")
}

func TestHandleSlashSearch_Signature(t *testing.T) {
	th := newTestHandler(testSecret)
	router := th.Router()
	form := url.Values{"user_id": {"U9"}, "text": {"project = TEST"}}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, slashRequest("/slack/search", form))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, th.defaultSearcher.calls)

	req := slashRequest("/slack/search", form)
	signRequest(req, "wrong-secret", form.Encode())
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, th.defaultSearcher.calls)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/search", form))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, th.defaultSearcher.calls)
}

func TestSlackRoutes_RequireSigningSecret(t *testing.T) {
	th := newTestHandler("")
	router := th.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, slashRequest("/slack/token", url.Values{"user_id": {"U_VICTIM"}, "text": {"attacker-controlled-token"}}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	_, err := th.store.GetToken(context.Background(), "U_VICTIM")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, slashRequest("/slack/search", url.Values{"user_id": {"U9"}, "text": {"x"}}))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 0, th.defaultSearcher.calls)
}

func TestHandleSlashSearch_UsesVerifiedUsersToken(t *testing.T) {
	th := newTestHandler(testSecret)
	require.NoError(t, th.store.SetToken(context.Background(), "U1", "personal-token"))
	router := th.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/search", url.Values{"user_id": {"U1"}, "text": {"x"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "personal-token", th.userToken)
	assert.Equal(t, 1, th.userSearcher.calls)
	assert.Equal(t, 0, th.defaultSearcher.calls)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/search", url.Values{"user_id": {"U2"}, "text": {"x"}}))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, th.defaultSearcher.calls)
}

func TestHandleSlashSearch_RetrySkipped(t *testing.T) {
	th := newTestHandler(testSecret)
	router := th.Router()

	req := signedSlashRequest("/slack/search", url.Values{"text": {"x"}})
	req.Header.Set("X-Slack-Retry-Num", "1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok (retry skipped)", w.Body.String())
	assert.Equal(t, 0, th.defaultSearcher.calls)
}

func TestHandleSetupPersonalToken(t *testing.T) {
	th := newTestHandler(testSecret)
	router := th.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/token", url.Values{"user_id": {"U1"}, "text": {"short"}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "at least 8 characters")
	_, err := th.store.GetToken(context.Background(), "U1")
	assert.ErrorIs(t, err, storage.ErrTokenNotFound)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, signedSlashRequest("/slack/token", url.Values{"user_id": {"U1"}, "text": {"  long-enough-token "}}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Token successfully stored")

	token, err := th.store.GetToken(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "long-enough-token", token)
}

func TestSearchResultMessage_UnknownTotal(t *testing.T) {
	msg := searchResultMessage("", model.NewSearchResult(model.UnknownCount, 0, 10, []model.Issue{model.NewIssue("A-1")}))
	assert.Equal(t, "Showing 1 issues (more available)", msg.Text)
	assert.Len(t, msg.Blocks.BlockSet, 3)
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestHandler("").Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
