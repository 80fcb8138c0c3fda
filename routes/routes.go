package routes

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/mbolis/quick-poll/app"
	"github.com/mbolis/quick-poll/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// public read and vote; auth is picked up when presented so that the
	// bearer identity doubles as the vote dedup key
	api.Group(func(r chi.Router) {
		r.Use(middlewares.OptionalAuth(app.TokenSecret))

		r.Get("/polls/{id}", PublicGetPoll(app))
		r.Post("/polls/{id}/votes", CastVote(app))
	})

	// CRUD polls, owner only
	api.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticated(app.TokenSecret))

		r.Post("/polls", CreatePoll(app))
		r.Get("/polls", ListPolls(app))
		r.Put("/polls/{id}", UpdatePoll(app))
		r.Delete("/polls/{id}", DeletePoll(app))
	})

	api.Post("/register", Register(app))
	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}
