package routes

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/database"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/tally"
)

func PublicGetPoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollId := chi.URLParam(r, "id")
		visitorId := httpx.VisitorID(w, r)

		poll := model.Poll{ID: pollId}
		err := app.QueryRowContext(r.Context(), `
			SELECT question, created_at FROM poll WHERE id = ?`,
			pollId,
		).Scan(&poll.Question, &poll.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "get_poll", pollId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.get_poll", err)
			return
		}

		var voted bool
		err = app.QueryRowContext(r.Context(), `
			SELECT 1 FROM vote
			WHERE poll_id = ?
				AND voter_id = ?`,
			pollId,
			visitorId,
		).Scan(&voted)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, "db.get_poll.voted", err)
			return
		}

		counts, err := queryTally(r.Context(), app, pollId)
		if err != nil {
			httpx.LogInternalError(w, "db.get_poll.tally", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"id":        poll.ID,
			"question":  poll.Question,
			"createdAt": poll.CreatedAt,
			"voted":     voted,
			"results":   tally.Compute(counts),
		})
	}
}

func CastVote(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollId := chi.URLParam(r, "id")

		input := model.VoteInput{}
		err := render.DecodeJSON(r.Body, &input)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if _, err := uuid.Parse(input.OptionID); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "cast_vote.option_id", "optionId must be a UUID")
			return
		}

		visitorId := httpx.VisitorID(w, r)

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var exists bool
		err = tx.QueryRowContext(r.Context(), `
			SELECT 1 FROM poll WHERE id = ?`,
			pollId,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogNotFound(w, "cast_vote", pollId)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.cast_vote.poll", err)
			return
		}

		err = tx.QueryRowContext(r.Context(), `
			SELECT 1 FROM poll_option
			WHERE id = ?
				AND poll_id = ?`,
			input.OptionID,
			pollId,
		).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "cast_vote.option_mismatch",
				"option does not belong to this poll")
			return
		}
		if err != nil {
			httpx.LogInternalError(w, "db.cast_vote.option", err)
			return
		}

		// pre-check to fail fast; the unique index on (poll_id, voter_id)
		// is what actually guarantees one vote per visitor
		err = tx.QueryRowContext(r.Context(), `
			SELECT 1 FROM vote
			WHERE poll_id = ?
				AND voter_id = ?`,
			pollId,
			visitorId,
		).Scan(&exists)
		if err == nil {
			httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "cast_vote.already_voted", "already voted")
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			httpx.LogInternalError(w, "db.cast_vote.check", err)
			return
		}

		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO vote (id, poll_id, option_id, voter_id, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(),
			pollId,
			input.OptionID,
			visitorId,
			time.Now().UTC(),
		)
		if err != nil {
			// a concurrent cast with the same visitor id may slip past the
			// pre-check; the losing insert reports the same conflict
			if database.IsUniqueViolation(err) {
				httpx.LogStatusMsg(w, http.StatusConflict, log.DebugLevel, "cast_vote.already_voted", "already voted")
				return
			}
			httpx.LogInternalError(w, "db.insert_vote", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_vote.commit", err)
			return
		}

		counts, err := queryTally(r.Context(), app, pollId)
		if err != nil {
			httpx.LogInternalError(w, "db.cast_vote.tally", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"pollId":  pollId,
			"results": tally.Compute(counts),
		})
	}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryTally reads the ordered option set with current vote counts.
func queryTally(ctx context.Context, q querier, pollId string) ([]tally.Option, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT o.id, o.text, COUNT(v.id)
		FROM poll_option o
		LEFT OUTER JOIN vote v ON (o.id = v.option_id)
		WHERE o.poll_id = ?
		GROUP BY o.id
		ORDER BY o.position`,
		pollId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	options := []tally.Option{}
	for rows.Next() {
		opt := tally.Option{}
		err = rows.Scan(&opt.ID, &opt.Text, &opt.Votes)
		if err != nil {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, rows.Err()
}
