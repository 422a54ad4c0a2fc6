package main

import (
	"net/http"

	"github.com/myrjola/noirline/internal/logging"
	"github.com/myrjola/noirline/internal/models"
)

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type newGameResponse struct {
	GameID       string              `json:"game_id"`
	Level        models.DialogueTree `json:"level"`
	LevelSummary string              `json:"level_summary"`
}

func (app *application) newGame(w http.ResponseWriter, r *http.Request) {
	g, level, err := app.games.StartGame(r.Context())
	if err != nil {
		app.handleError(w, r, "new game", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, newGameResponse{
		GameID:       g.ID,
		Level:        level.Content,
		LevelSummary: level.Summary,
	})
}

type choicesRequest struct {
	GameID      string                    `json:"game_id"`
	ChoicesPath *[]models.ChoiceSelection `json:"choices_path"`
}

func (app *application) decodeChoices(w http.ResponseWriter, r *http.Request) (choicesRequest, bool) {
	var req choicesRequest
	if err := decodeJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return req, false
	}
	if req.GameID == "" || req.ChoicesPath == nil {
		app.clientError(w, r, http.StatusBadRequest, "game_id and choices_path required")
		return req, false
	}
	return req, true
}

type levelResponse struct {
	Level        models.DialogueTree `json:"level"`
	LevelSummary string              `json:"level_summary"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (app *application) nextLevel(w http.ResponseWriter, r *http.Request) {
	req, ok := app.decodeChoices(w, r)
	if !ok {
		return
	}
	r = r.WithContext(logging.WithGameID(r.Context(), req.GameID))
	advance, err := app.games.AdvanceLevel(r.Context(), req.GameID, *req.ChoicesPath)
	if err != nil {
		app.handleError(w, r, "next level", err)
		return
	}
	if advance.Completed {
		app.writeJSON(w, r, http.StatusOK, messageResponse{Message: "Game completed! No more levels."})
		return
	}
	app.writeJSON(w, r, http.StatusOK, levelResponse{Level: advance.Level.Content, LevelSummary: advance.Level.Summary})
}

type headlineResponse struct {
	Headline string `json:"headline"`
}

func (app *application) headline(w http.ResponseWriter, r *http.Request) {
	req, ok := app.decodeChoices(w, r)
	if !ok {
		return
	}
	r = r.WithContext(logging.WithGameID(r.Context(), req.GameID))
	headline, err := app.games.Headline(r.Context(), req.GameID, *req.ChoicesPath)
	if err != nil {
		app.handleError(w, r, "headline", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, headlineResponse{Headline: headline})
}

type backgroundRequest struct {
	GameID           string  `json:"game_id"`
	LevelNumber      *int    `json:"level_number"`
	SceneDescription string  `json:"scene_description"`
	LevelSummary     *string `json:"level_summary"`
}

func (app *application) generateBackground(w http.ResponseWriter, r *http.Request) {
	var req backgroundRequest
	if err := decodeJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}
	if req.GameID == "" || req.LevelNumber == nil || req.LevelSummary == nil {
		app.clientError(w, r, http.StatusBadRequest, "game_id, level_number and level_summary required")
		return
	}
	r = r.WithContext(logging.WithGameID(r.Context(), req.GameID))
	result, err := app.games.Background(r.Context(), req.GameID, *req.LevelNumber, req.SceneDescription,
		*req.LevelSummary)
	if err != nil {
		app.handleError(w, r, "background", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, result.Entry)
}

type spriteRequest struct {
	CharacterName        string `json:"character_name"`
	CharacterDescription string `json:"character_description"`
}

func (app *application) generateSprite(w http.ResponseWriter, r *http.Request) {
	var req spriteRequest
	if err := decodeJSON(r, &req); err != nil {
		app.clientError(w, r, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}
	if req.CharacterName == "" || req.CharacterDescription == "" {
		app.clientError(w, r, http.StatusBadRequest, "character_name and character_description required")
		return
	}
	entry, err := app.games.Sprite(r.Context(), req.CharacterName, req.CharacterDescription)
	if err != nil {
		app.handleError(w, r, "sprite", err)
		return
	}
	app.writeJSON(w, r, http.StatusOK, entry)
}
