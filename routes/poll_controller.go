package routes

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/httpx"
	"github.com/mbolis/quick-poll/log"
	"github.com/mbolis/quick-poll/model"
	"github.com/mbolis/quick-poll/routes/middlewares"
)

func CreatePoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := model.PollInput{}
		err := render.DecodeJSON(r.Body, &input)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := input.Validate(); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "create_poll.validate", "%s", err)
			return
		}

		username := middlewares.Username(r)

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		poll := model.Poll{
			ID:        uuid.New().String(),
			UserID:    username,
			Question:  input.Question,
			CreatedAt: time.Now().UTC(),
		}
		_, err = tx.ExecContext(r.Context(), `
			INSERT INTO poll (id, user_id, question, created_at)
			VALUES (?, ?, ?, ?)`,
			poll.ID,
			poll.UserID,
			poll.Question,
			poll.CreatedAt,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_poll", err)
			return
		}

		poll.Options, err = insertOptions(r, tx, poll.ID, input.Options)
		if err != nil {
			httpx.LogInternalError(w, "db.insert_poll.options", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.insert_poll.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, poll)
	}
}

// insertOptions writes a fresh ordered option set for a poll. Used by both
// create and edit: the edit flow never diffs, it recreates.
func insertOptions(r *http.Request, tx *sql.Tx, pollId string, texts []string) ([]model.PollOption, error) {
	stmt, err := tx.PrepareContext(r.Context(), `
		INSERT INTO poll_option (id, poll_id, text, position)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	options := make([]model.PollOption, len(texts))
	for i, text := range texts {
		options[i] = model.PollOption{
			ID:       uuid.New().String(),
			Text:     text,
			Position: i,
		}
		_, err := stmt.ExecContext(r.Context(), options[i].ID, pollId, text, i)
		if err != nil {
			return nil, err
		}
	}
	return options, nil
}

func ListPolls(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := middlewares.Username(r)

		rows, err := app.QueryContext(r.Context(), `
			SELECT p.id, p.question, p.created_at, COUNT(v.id)
			FROM poll p
			LEFT OUTER JOIN vote v ON (p.id = v.poll_id)
			WHERE p.user_id = ?
			GROUP BY p.id
			ORDER BY p.created_at DESC`,
			username,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.get_polls", err)
			return
		}
		defer rows.Close()

		type pollRow struct {
			model.Poll
			TotalVotes int `json:"totalVotes"`
		}
		polls := []pollRow{}
		for rows.Next() {
			p := pollRow{}
			err = rows.Scan(&p.ID, &p.Question, &p.CreatedAt, &p.TotalVotes)
			if err != nil {
				httpx.LogInternalError(w, "db.get_polls.scan", err)
				return
			}

			polls = append(polls, p)
		}

		render.JSON(w, r, map[string]any{
			"polls": polls,
		})
	}
}

func UpdatePoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollId := chi.URLParam(r, "id")

		input := model.PollInput{}
		err := render.DecodeJSON(r.Body, &input)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err := input.Validate(); err != nil {
			httpx.LogStatusMsg(w, http.StatusBadRequest, log.DebugLevel, "update_poll.validate", "%s", err)
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		if !checkOwner(w, r, tx, pollId, "update_poll") {
			return
		}

		// replace the full option set; votes reference the old rows and go
		// with them, so an edit resets the poll's tally
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM vote
			WHERE poll_id = ?`,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_poll.delete_votes", err)
			return
		}
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM poll_option
			WHERE poll_id = ?`,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_poll.delete_options", err)
			return
		}

		_, err = insertOptions(r, tx, pollId, input.Options)
		if err != nil {
			httpx.LogInternalError(w, "db.update_poll.options", err)
			return
		}

		_, err = tx.ExecContext(r.Context(), `
			UPDATE poll
			SET question = ?
			WHERE id = ?`,
			input.Question,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.update_poll", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.update_poll.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func DeletePoll(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pollId := chi.URLParam(r, "id")

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		if !checkOwner(w, r, tx, pollId, "delete_poll") {
			return
		}

		// delete children explicitly: the schema cascades cover this, but
		// the FK pragma is per-connection so we do not lean on it
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM vote
			WHERE poll_id = ?`,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_poll.votes", err)
			return
		}
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM poll_option
			WHERE poll_id = ?`,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_poll.options", err)
			return
		}
		_, err = tx.ExecContext(r.Context(), `
			DELETE FROM poll WHERE id = ?`,
			pollId,
		)
		if err != nil {
			httpx.LogInternalError(w, "db.delete_poll", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, "db.delete_poll.commit", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// checkOwner resolves a poll and verifies the caller owns it, writing 404
// or 403 as appropriate. Returns false when the request is already handled.
func checkOwner(w http.ResponseWriter, r *http.Request, tx *sql.Tx, pollId, code string) bool {
	var owner string
	err := tx.QueryRowContext(r.Context(), `
		SELECT user_id FROM poll WHERE id = ?`,
		pollId,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		httpx.LogNotFound(w, code, pollId)
		return false
	}
	if err != nil {
		httpx.LogInternalError(w, "db."+code+".owner", err)
		return false
	}

	if owner != middlewares.Username(r) {
		httpx.LogStatus(w, http.StatusForbidden, log.DebugLevel, code+".not_owner")
		return false
	}
	return true
}
