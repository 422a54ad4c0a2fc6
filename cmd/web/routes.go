package main

import (
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (app *application) routes(handlerTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	fileServer := http.FileServer(http.Dir(app.staticDir))
	mux.Handle("GET /static/", http.StripPrefix("/static", fileServer))

	mux.HandleFunc("GET /api/healthy", app.healthy)
	mux.Handle("GET /metrics", promhttp.Handler())

	api := alice.New(limitBody, func(h http.Handler) http.Handler { return timeoutHandler(h, handlerTimeout) })
	mux.Handle("POST /api/new_game/", api.Then(instrument("new_game", app.newGame)))
	mux.Handle("POST /api/next_level/", api.Then(instrument("next_level", app.nextLevel)))
	mux.Handle("POST /api/headline/", api.Then(instrument("headline", app.headline)))
	mux.Handle("POST /api/generate_background/", api.Then(instrument("generate_background", app.generateBackground)))
	mux.Handle("POST /api/generate_sprite/", api.Then(instrument("generate_sprite", app.generateSprite)))

	return alice.New(app.recoverPanic, app.logRequest, secureHeaders).Then(mux)
}
