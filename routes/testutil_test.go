package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/config"
	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/model"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (app.App, http.Handler) {
	t.Helper()

	cfg := config.Config{
		DBUrl:       filepath.Join(t.TempDir(), "qpoll_test.sqlite"),
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
	}

	db, err := database.Open(cfg)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { db.Close() })

	a := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
	}
	return a, Wire(a)
}

func doJSON(h http.Handler, method, path string, body any, mod ...func(*http.Request)) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		payload, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, m := range mod {
		m(req)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withVoter(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set(httpx.VisitorHeader, token)
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v), "decode response body: %s", w.Body.String())
}

// registerAndLogin provisions a user through the API and returns a bearer token.
func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()

	w := doJSON(h, "POST", "/api/register", model.Credentials{
		Username: username,
		Password: "correct-horse-battery",
	})
	require.Equal(t, http.StatusCreated, w.Code, "register: %s", w.Body.String())

	req := httptest.NewRequest("POST", "/api/login", nil)
	req.SetBasicAuth(username, "correct-horse-battery")
	lw := httptest.NewRecorder()
	h.ServeHTTP(lw, req)
	require.Equal(t, http.StatusOK, lw.Code, "login: %s", lw.Body.String())

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeBody(t, lw, &tokens)
	require.NotEmpty(t, tokens.AccessToken)

	return tokens.AccessToken
}

// createTestPoll creates a poll through the API and returns it with option IDs.
func createTestPoll(t *testing.T, h http.Handler, token, question string, options ...string) model.Poll {
	t.Helper()

	if len(options) == 0 {
		options = []string{"Red", "Green", "Blue"}
	}
	w := doJSON(h, "POST", "/api/polls", model.PollInput{
		Question: question,
		Options:  options,
	}, withBearer(token))
	require.Equal(t, http.StatusCreated, w.Code, "create poll: %s", w.Body.String())

	var poll model.Poll
	decodeBody(t, w, &poll)
	require.NotEmpty(t, poll.ID)
	require.Len(t, poll.Options, len(options))
	return poll
}

type tallyResponse struct {
	Options []struct {
		ID         string `json:"id"`
		Text       string `json:"text"`
		Votes      int    `json:"votes"`
		Percentage int    `json:"percentage"`
	} `json:"options"`
	TotalVotes int    `json:"totalVotes"`
	WinnerID   string `json:"winnerId"`
}

type pollResponse struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Voted     bool          `json:"voted"`
	Results   tallyResponse `json:"results"`
	CreatedAt time.Time     `json:"createdAt"`
}
