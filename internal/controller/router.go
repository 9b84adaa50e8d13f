package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (c controller) GetMux() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(c.requestIdMw)
	r.Use(c.requestLoggingMw)
	r.Use(cors.AllowAll().Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", c.listStations)
			r.Post("/", c.createStation)
			r.Post("/join", c.joinStation)
			r.Route("/{station-id}", func(r chi.Router) {
				r.Get("/", c.getStation)
				r.Delete("/", c.closeStation)
				r.Post("/leave", c.leaveStation)
				r.Post("/transfer-host", c.transferHost)
				r.Patch("/title", c.updateTitle)
				r.Get("/bans", c.getBans)
				r.Post("/bans", c.banUser)
				r.Delete("/bans/{user-id}", c.unbanUser)
			})
		})

		r.Route("/ws", func(r chi.Router) {
			r.Get("/station", c.connectStation)
			r.Get("/topic", c.connectTopic)
			r.Get("/user", c.connectUser)
		})
	})

	return r
}
