// internal/handlers/router.go
package handlers

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/uno/internal/middleware"
)

// NewRouter mounts the room API and the room websocket.
func NewRouter(gs *GameServer) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.LogMiddleware(gs.log))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   gs.corsOrigins(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Route("/rooms", func(r chi.Router) {
		r.Get("/", ListRoomsHandler(gs))
		r.Post("/", CreateRoomHandler(gs))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", GetRoomHandler(gs))
			r.Post("/join", JoinRoomHandler(gs))
			r.Post("/leave", LeaveRoomHandler(gs))
			r.Get("/ws", RoomWSHandler(gs))
		})
	})
	return r
}

// corsOrigins widens "*" to any http(s) origin, as cors expects schemes.
func (gs *GameServer) corsOrigins() []string {
	for _, o := range gs.origins {
		if o == "*" {
			return []string{"https://*", "http://*"}
		}
	}
	return gs.origins
}
