package routes

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVote(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[1].ID},
		withVoter("visitor-1"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		PollID  string        `json:"pollId"`
		Results tallyResponse `json:"results"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, poll.ID, resp.PollID)
	assert.Equal(t, 1, resp.Results.TotalVotes)
	assert.Equal(t, 1, resp.Results.Options[1].Votes)
	assert.Equal(t, 100, resp.Results.Options[1].Percentage)
	assert.Equal(t, poll.Options[1].ID, resp.Results.WinnerID)

	// the visitor token comes back as a long-lived cookie
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == httpx.VisitorCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "visitor-1", cookie.Value)
}

func TestCastVoteDuplicate(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[0].ID},
		withVoter("visitor-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	// same visitor, same poll, different option: still a conflict
	w = doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[1].ID},
		withVoter("visitor-1"))
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	// a different visitor may still vote
	w = doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[1].ID},
		withVoter("visitor-2"))
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCastVoteAuthenticatedDedup(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[0].ID},
		withBearer(token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// the bearer identity is the dedup key, no cookie involved
	w = doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[0].ID},
		withBearer(token))
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestCastVoteValidation(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")
	other := createTestPoll(t, h, token, "Favorite sport?", "Chess", "Boxing")

	t.Run("option of another poll", func(t *testing.T) {
		w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
			model.VoteInput{OptionID: other.Options[0].ID},
			withVoter("visitor-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	})

	t.Run("option id not a uuid", func(t *testing.T) {
		w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
			model.VoteInput{OptionID: "not-a-uuid"},
			withVoter("visitor-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown poll", func(t *testing.T) {
		w := doJSON(h, "POST", "/api/polls/"+uuid.New().String()+"/votes",
			model.VoteInput{OptionID: poll.Options[0].ID},
			withVoter("visitor-1"))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/polls/"+poll.ID+"/votes", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCastVoteConcurrentDuplicate(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	const casts = 2
	codes := make([]int, casts)
	var wg sync.WaitGroup
	for i := 0; i < casts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
				model.VoteInput{OptionID: poll.Options[0].ID},
				withVoter("racing-visitor"))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created, conflicted := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		}
	}
	assert.Equal(t, 1, created, "exactly one cast wins, got %v", codes)
	assert.Equal(t, 1, conflicted, "the loser observes a conflict, got %v", codes)

	// and only one vote row exists
	w := doJSON(h, "GET", "/api/polls/"+poll.ID, nil)
	var resp pollResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, 1, resp.Results.TotalVotes)
}

func TestPublicGetPoll(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	for i, votes := range []int{2, 3, 1} {
		for v := 0; v < votes; v++ {
			w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
				model.VoteInput{OptionID: poll.Options[i].ID},
				withVoter(uuid.New().String()))
			require.Equal(t, http.StatusCreated, w.Code)
		}
	}

	w := doJSON(h, "GET", "/api/polls/"+poll.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp pollResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "Favorite color?", resp.Question)
	assert.False(t, resp.Voted)
	assert.Equal(t, 6, resp.Results.TotalVotes)

	// options arrive in render order with counts and percentages
	require.Len(t, resp.Results.Options, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{
		resp.Results.Options[0].Votes,
		resp.Results.Options[1].Votes,
		resp.Results.Options[2].Votes,
	})
	assert.Equal(t, 33, resp.Results.Options[0].Percentage)
	assert.Equal(t, 50, resp.Results.Options[1].Percentage)
	assert.Equal(t, 17, resp.Results.Options[2].Percentage)
	assert.Equal(t, poll.Options[1].ID, resp.Results.WinnerID)

	// the sum of per-option counts matches the recorded total
	sum := 0
	for _, opt := range resp.Results.Options {
		sum += opt.Votes
	}
	assert.Equal(t, resp.Results.TotalVotes, sum)
}

func TestPublicGetPollVotedFlag(t *testing.T) {
	_, h := newTestApp(t)
	token := registerAndLogin(t, h, "alice")
	poll := createTestPoll(t, h, token, "Favorite color?")

	w := doJSON(h, "POST", "/api/polls/"+poll.ID+"/votes",
		model.VoteInput{OptionID: poll.Options[0].ID},
		withVoter("visitor-1"))
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(h, "GET", "/api/polls/"+poll.ID, nil, withVoter("visitor-1"))
	var resp pollResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Voted)

	w = doJSON(h, "GET", "/api/polls/"+poll.ID, nil, withVoter("someone-else"))
	decodeBody(t, w, &resp)
	assert.False(t, resp.Voted)
}

func TestPublicGetPollNotFound(t *testing.T) {
	_, h := newTestApp(t)

	w := doJSON(h, "GET", "/api/polls/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
