// Package repositories persists games, their level snapshots and background caches.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/myrjola/noirline/internal/errors"
	"github.com/myrjola/noirline/internal/models"
	"github.com/myrjola/noirline/internal/sqlite"
)

var (
	ErrNotFound    = errors.NewSentinel("not found")
	ErrLevelExists = errors.NewSentinel("level record already exists")
)

type GameRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
	now    func() time.Time
}

func NewGameRepository(db *sqlite.Database, logger *slog.Logger) *GameRepository {
	return &GameRepository{
		db:     db,
		logger: logger.With("source", "GameRepository"),
		now:    time.Now,
	}
}

func (r *GameRepository) timestamp() string {
	return r.now().UTC().Format(time.RFC3339Nano)
}

// Create stores a new game together with the snapshot of its first level.
func (r *GameRepository) Create(ctx context.Context, game models.Game, level models.LevelRecord) error {
	outline, err := json.Marshal(game.Outline)
	if err != nil {
		return errors.Wrap(err, "marshal outline")
	}
	history, err := marshalHistory(game.ChoicesHistory)
	if err != nil {
		return err
	}
	now := r.timestamp()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt := `INSERT INTO games (id, outline, current_level, choices_history, completed, created_at, updated_at)
VALUES (:id, :outline, :current_level, :choices_history, :completed, :now, :now)`
		if _, err = tx.ExecContext(ctx, stmt,
			sql.Named("id", game.ID),
			sql.Named("outline", string(outline)),
			sql.Named("current_level", game.CurrentLevel),
			sql.Named("choices_history", history),
			sql.Named("completed", game.Completed),
			sql.Named("now", now),
		); err != nil {
			return errors.Wrap(err, "insert game", slog.String("game_id", game.ID))
		}
		return insertLevel(ctx, tx, level, now)
	})
}

// SaveProgress writes the current level, the choices history and the completion flag of game. If level is not nil,
// its snapshot is stored in the same transaction.
func (r *GameRepository) SaveProgress(ctx context.Context, game models.Game, level *models.LevelRecord) error {
	history, err := marshalHistory(game.ChoicesHistory)
	if err != nil {
		return err
	}
	now := r.timestamp()
	return r.inTx(ctx, func(tx *sql.Tx) error {
		stmt := `UPDATE games
SET current_level = :current_level, choices_history = :choices_history, completed = :completed, updated_at = :now
WHERE id = :id`
		result, err := tx.ExecContext(ctx, stmt,
			sql.Named("id", game.ID),
			sql.Named("current_level", game.CurrentLevel),
			sql.Named("choices_history", history),
			sql.Named("completed", game.Completed),
			sql.Named("now", now),
		)
		if err != nil {
			return errors.Wrap(err, "update game", slog.String("game_id", game.ID))
		}
		var affected int64
		if affected, err = result.RowsAffected(); err != nil {
			return errors.Wrap(err, "rows affected")
		}
		if affected == 0 {
			return errors.Wrap(ErrNotFound, "update game", slog.String("game_id", game.ID))
		}
		if level == nil {
			return nil
		}
		return insertLevel(ctx, tx, *level, now)
	})
}

// Get returns the game with its background cache. Returns ErrNotFound for unknown ids.
func (r *GameRepository) Get(ctx context.Context, id string) (models.Game, error) {
	var (
		game                 models.Game
		outline, history     string
		createdAt, updatedAt string
	)
	stmt := `SELECT id, outline, current_level, choices_history, completed, created_at, updated_at
FROM games WHERE id = ?`
	err := r.db.ReadOnly.QueryRowContext(ctx, stmt, id).Scan(
		&game.ID, &outline, &game.CurrentLevel, &history, &game.Completed, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Game{}, errors.Wrap(ErrNotFound, "read game", slog.String("game_id", id))
	}
	if err != nil {
		return models.Game{}, errors.Wrap(err, "read game", slog.String("game_id", id))
	}
	if err = json.Unmarshal([]byte(outline), &game.Outline); err != nil {
		return models.Game{}, errors.Wrap(err, "unmarshal outline")
	}
	if err = json.Unmarshal([]byte(history), &game.ChoicesHistory); err != nil {
		return models.Game{}, errors.Wrap(err, "unmarshal choices history")
	}
	if game.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return models.Game{}, errors.Wrap(err, "parse created_at")
	}
	if game.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return models.Game{}, errors.Wrap(err, "parse updated_at")
	}
	if game.BackgroundCache, err = r.backgrounds(ctx, id); err != nil {
		return models.Game{}, err
	}
	return game, nil
}

func (r *GameRepository) backgrounds(ctx context.Context, gameID string) (map[string]models.ImageEntry, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx,
		`SELECT cache_key, prompt, image_name, url FROM background_cache WHERE game_id = ?`, gameID)
	if err != nil {
		return nil, errors.Wrap(err, "query background cache")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Error("could not close rows", errors.SlogError(errors.Wrap(err, "close rows")))
		}
	}()
	cache := make(map[string]models.ImageEntry)
	for rows.Next() {
		var (
			key   string
			entry models.ImageEntry
		)
		if err = rows.Scan(&key, &entry.Prompt, &entry.ImageName, &entry.URL); err != nil {
			return nil, errors.Wrap(err, "scan background")
		}
		cache[key] = entry
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return cache, nil
}

// GetBackground looks up one background cache entry.
func (r *GameRepository) GetBackground(
	ctx context.Context,
	gameID string,
	cacheKey string,
) (models.ImageEntry, bool, error) {
	var entry models.ImageEntry
	err := r.db.ReadOnly.QueryRowContext(ctx,
		`SELECT prompt, image_name, url FROM background_cache WHERE game_id = ? AND cache_key = ?`,
		gameID, cacheKey).Scan(&entry.Prompt, &entry.ImageName, &entry.URL)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ImageEntry{}, false, nil
	}
	if err != nil {
		return models.ImageEntry{}, false, errors.Wrap(err, "read background", slog.String("cache_key", cacheKey))
	}
	return entry, true, nil
}

// PutBackground stores entry unless the key already has one and returns the entry that is stored afterwards.
// Returns ErrNotFound when the game does not exist.
func (r *GameRepository) PutBackground(
	ctx context.Context,
	gameID string,
	cacheKey string,
	entry models.ImageEntry,
) (models.ImageEntry, error) {
	var stored models.ImageEntry
	stmt := `INSERT INTO background_cache (game_id, cache_key, prompt, image_name, url, created_at)
VALUES (:game_id, :cache_key, :prompt, :image_name, :url, :now)
ON CONFLICT (game_id, cache_key) DO UPDATE SET game_id = excluded.game_id
RETURNING prompt, image_name, url`
	err := r.db.ReadWrite.QueryRowContext(ctx, stmt,
		sql.Named("game_id", gameID),
		sql.Named("cache_key", cacheKey),
		sql.Named("prompt", entry.Prompt),
		sql.Named("image_name", entry.ImageName),
		sql.Named("url", entry.URL),
		sql.Named("now", r.timestamp()),
	).Scan(&stored.Prompt, &stored.ImageName, &stored.URL)
	if isConstraint(err, sqlite3.ErrConstraintForeignKey) {
		return models.ImageEntry{}, errors.Wrap(ErrNotFound, "insert background", slog.String("game_id", gameID))
	}
	if err != nil {
		return models.ImageEntry{}, errors.Wrap(err, "insert background", slog.String("cache_key", cacheKey))
	}
	return stored, nil
}

// ListLevels returns the level snapshots of a game ordered by level number.
func (r *GameRepository) ListLevels(ctx context.Context, gameID string) ([]models.LevelRecord, error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `SELECT game_id, level_number, role, content, created_at
FROM levels WHERE game_id = ? ORDER BY level_number`, gameID)
	if err != nil {
		return nil, errors.Wrap(err, "query levels")
	}
	defer func() {
		if err = rows.Close(); err != nil {
			r.logger.Error("could not close rows", errors.SlogError(errors.Wrap(err, "close rows")))
		}
	}()
	var levels []models.LevelRecord
	for rows.Next() {
		var (
			level              models.LevelRecord
			content, createdAt string
		)
		if err = rows.Scan(&level.GameID, &level.LevelNumber, &level.Role, &content, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan level")
		}
		if err = json.Unmarshal([]byte(content), &level.Content); err != nil {
			return nil, errors.Wrap(err, "unmarshal level content", slog.Int("level_number", level.LevelNumber))
		}
		if level.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.Wrap(err, "parse created_at")
		}
		levels = append(levels, level)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return levels, nil
}

func insertLevel(ctx context.Context, tx *sql.Tx, level models.LevelRecord, now string) error {
	content, err := json.Marshal(level.Content)
	if err != nil {
		return errors.Wrap(err, "marshal level content")
	}
	attrs := []slog.Attr{slog.String("game_id", level.GameID), slog.Int("level_number", level.LevelNumber)}
	stmt := `INSERT INTO levels (game_id, level_number, role, content, created_at)
VALUES (:game_id, :level_number, :role, :content, :now)`
	_, err = tx.ExecContext(ctx, stmt,
		sql.Named("game_id", level.GameID),
		sql.Named("level_number", level.LevelNumber),
		sql.Named("role", string(level.Role)),
		sql.Named("content", string(content)),
		sql.Named("now", now),
	)
	if isConstraint(err, sqlite3.ErrConstraintPrimaryKey) {
		return errors.Wrap(ErrLevelExists, "insert level", attrs...)
	}
	if err != nil {
		return errors.Wrap(err, "insert level", attrs...)
	}
	return nil
}

func marshalHistory(history []models.ChoiceRecord) (string, error) {
	if history == nil {
		history = []models.ChoiceRecord{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return "", errors.Wrap(err, "marshal choices history")
	}
	return string(b), nil
}

func isConstraint(err error, code sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == code
}

func (r *GameRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.ReadWrite.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.LogAttrs(ctx, slog.LevelError, "failed to rollback transaction",
					errors.SlogError(errors.Wrap(rbErr, "rollback")))
			}
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
