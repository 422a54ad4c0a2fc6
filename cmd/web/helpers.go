package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/game"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (app *application) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "marshal response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error", errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
}

// generationError reports a failed generation with a short description of what failed.
func (app *application) generationError(w http.ResponseWriter, r *http.Request, what string, err error) {
	app.logger.LogAttrs(r.Context(), slog.LevelError, "generation failed", slog.String("what", what),
		errors.SlogError(err))
	app.writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "Failed to generate " + what})
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status), slog.String("error", msg))
	app.writeJSON(w, r, status, errorResponse{Error: msg})
}

// handleError maps service errors to responses. Everything except invalid requests and unknown games is a
// generation failure of what.
func (app *application) handleError(w http.ResponseWriter, r *http.Request, what string, err error) {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		app.clientError(w, r, http.StatusBadRequest, "Invalid game_id")
	case errors.Is(err, game.ErrInvalidRequest):
		app.clientError(w, r, http.StatusBadRequest, err.Error())
	default:
		app.generationError(w, r, what, err)
	}
}

// decodeJSON reads the request body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
