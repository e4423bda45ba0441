// Package store mirrors arena state to Postgres and serves cached
// comparisons from it.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"graphicarena/server/arena"
	"graphicarena/server/rating"
)

//go:embed schema.sql
var schema embed.FS

type DB struct{ *pgxpool.Pool }

func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &DB{p}, nil
}

func (db *DB) Close()                         { db.Pool.Close() }
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, string(sqlBytes))
	return err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

/* -----------------------------
   Arena mirror
------------------------------*/

// Upsert a model by slug and return its id.
func upsertModel(ctx context.Context, q querier, slug string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
        INSERT INTO models(slug, name, provider)
        VALUES ($1, $1, $2)
        ON CONFLICT (slug) DO UPDATE
          SET active = TRUE
        RETURNING id
    `, slug, arena.Provider(slug)).Scan(&id)
	return id, err
}

// Ensure a template row exists and return its id.
func ensureTemplate(ctx context.Context, q querier, slug string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, `
        INSERT INTO templates(slug, title)
        VALUES ($1, $1)
        ON CONFLICT (slug) DO UPDATE
          SET enabled = templates.enabled
        RETURNING id
    `, slug).Scan(&id)
	return id, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RecordMatch writes the match with its two generations. A match that was
// already mirrored is left untouched.
func (db *DB) RecordMatch(ctx context.Context, rec arena.MatchRecord) error {
	m := rec.Match
	if m.Left == nil || m.Right == nil {
		return fmt.Errorf("match %s has no contestants", m.ID)
	}

	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	tplID, err := ensureTemplate(ctx, tx, m.Template)
	if err != nil {
		return fmt.Errorf("template: %w", err)
	}
	leftID, err := upsertModel(ctx, tx, m.Left.Model)
	if err != nil {
		return fmt.Errorf("left model: %w", err)
	}
	rightID, err := upsertModel(ctx, tx, m.Right.Model)
	if err != nil {
		return fmt.Errorf("right model: %w", err)
	}

	var matchID int64
	err = tx.QueryRow(ctx, `
        INSERT INTO matches(external_id, prompt, template_id, left_model_id, right_model_id, cached_id, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (external_id) DO NOTHING
        RETURNING id
    `, m.ID, m.Prompt, tplID, leftID, rightID, nullable(m.CachedID), m.CreatedAt).Scan(&matchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	gens := []struct {
		side    string
		modelID int64
		code    string
		errText string
	}{
		{"left", leftID, m.Left.Code, rec.LeftError},
		{"right", rightID, m.Right.Code, rec.RightError},
	}
	for _, g := range gens {
		if _, err := tx.Exec(ctx, `
            INSERT INTO generations(match_id, model_id, side, code, error)
            VALUES ($1,$2,$3,$4,$5)
        `, matchID, g.modelID, g.side, g.code, nullable(g.errText)); err != nil {
			return fmt.Errorf("%s generation: %w", g.side, err)
		}
	}
	return tx.Commit(ctx)
}

// RecordVote writes the vote and the post-vote ratings of both models.
func (db *DB) RecordVote(ctx context.Context, rec arena.VoteRecord) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // safe if already committed

	winnerID, err := upsertModel(ctx, tx, rec.Winner.Model)
	if err != nil {
		return fmt.Errorf("winner model: %w", err)
	}
	loserID, err := upsertModel(ctx, tx, rec.Loser.Model)
	if err != nil {
		return fmt.Errorf("loser model: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        INSERT INTO votes(match_id, match_external_id, winner_model_id, loser_model_id, side, winner_delta, loser_delta)
        VALUES ((SELECT id FROM matches WHERE external_id = $1), $1, $2, $3, $4, $5, $6)
    `, rec.MatchID, winnerID, loserID, rec.Side, rec.WinnerDelta, rec.LoserDelta); err != nil {
		return fmt.Errorf("vote: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE matches SET status = 'voted' WHERE external_id = $1`, rec.MatchID); err != nil {
		return fmt.Errorf("match status: %w", err)
	}

	for _, r := range []struct {
		id  int64
		row rating.Rating
	}{{winnerID, rec.Winner}, {loserID, rec.Loser}} {
		if err := upsertRating(ctx, tx, r.id, r.row); err != nil {
			return fmt.Errorf("rating %s: %w", r.row.Model, err)
		}
	}
	return tx.Commit(ctx)
}

// Persist the in-memory rating row as the durable value. A snapshot with
// fewer games than the stored row is older and is ignored.
func upsertRating(ctx context.Context, q querier, modelID int64, r rating.Rating) error {
	_, err := q.Exec(ctx, `
        INSERT INTO elo_ratings(model_id, rating, games, wins, g_rating, g_rd, g_sigma)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (model_id) DO UPDATE
          SET rating = EXCLUDED.rating,
              games = EXCLUDED.games,
              wins = EXCLUDED.wins,
              g_rating = EXCLUDED.g_rating,
              g_rd = EXCLUDED.g_rd,
              g_sigma = EXCLUDED.g_sigma,
              updated_at = now()
        WHERE elo_ratings.games < EXCLUDED.games
    `, modelID, r.Rating, r.Games, r.Wins, r.Glicko.Rating, r.Glicko.RD, r.Glicko.Volatility)
	return err
}

// LoadRatings returns every persisted rating row for warm start.
func (db *DB) LoadRatings(ctx context.Context) ([]rating.Rating, error) {
	rows, err := db.Query(ctx, `
        SELECT m.slug, e.rating, e.games, e.wins, e.g_rating, e.g_rd, e.g_sigma
          FROM elo_ratings e
          JOIN models m ON m.id = e.model_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rating.Rating
	for rows.Next() {
		var r rating.Rating
		if err := rows.Scan(&r.Model, &r.Rating, &r.Games, &r.Wins,
			&r.Glicko.Rating, &r.Glicko.RD, &r.Glicko.Volatility); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

/* -----------------------------
   Cached comparisons
------------------------------*/

func (db *DB) ListCachedPrompts(ctx context.Context, limit int) ([]arena.CachedSummary, error) {
	rows, err := db.Query(ctx, `
        SELECT p.id, p.prompt, COUNT(s.id) FILTER (WHERE s.enabled)::int
          FROM cached_prompts p
          LEFT JOIN cached_snippets s ON s.cached_id = p.id
         WHERE p.enabled
         GROUP BY p.id, p.prompt, p.created_at
         ORDER BY p.created_at DESC
         LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.CachedSummary
	for rows.Next() {
		var s arena.CachedSummary
		if err := rows.Scan(&s.ID, &s.Prompt, &s.SnippetCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) CachedPrompt(ctx context.Context, id string) (string, error) {
	var prompt string
	err := db.QueryRow(ctx, `SELECT prompt FROM cached_prompts WHERE id = $1`, id).Scan(&prompt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", arena.ErrNotFound
	}
	return prompt, err
}

func (db *DB) EnabledSnippets(ctx context.Context, id string, limit int) ([]arena.Snippet, error) {
	rows, err := db.Query(ctx, `
        SELECT id, model, code
          FROM cached_snippets
         WHERE cached_id = $1 AND enabled
         LIMIT $2
    `, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.Snippet
	for rows.Next() {
		s := arena.Snippet{Enabled: true}
		if err := rows.Scan(&s.ID, &s.Model, &s.Code); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (db *DB) ListLegacyComparisons(ctx context.Context, limit int) ([]arena.LegacyComparison, error) {
	rows, err := db.Query(ctx, `
        SELECT id, prompt, left_model, left_code, right_model, right_code, enabled
          FROM cached_comparisons
         WHERE enabled
         ORDER BY id
         LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []arena.LegacyComparison
	for rows.Next() {
		var c arena.LegacyComparison
		if err := rows.Scan(&c.ID, &c.Prompt, &c.LeftModel, &c.LeftCode, &c.RightModel, &c.RightCode, &c.Enabled); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) LegacyComparison(ctx context.Context, id string) (arena.LegacyComparison, error) {
	var c arena.LegacyComparison
	err := db.QueryRow(ctx, `
        SELECT id, prompt, left_model, left_code, right_model, right_code, enabled
          FROM cached_comparisons
         WHERE id = $1
    `, id).Scan(&c.ID, &c.Prompt, &c.LeftModel, &c.LeftCode, &c.RightModel, &c.RightCode, &c.Enabled)
	if errors.Is(err, pgx.ErrNoRows) {
		return arena.LegacyComparison{}, arena.ErrNotFound
	}
	return c, err
}

var (
	_ arena.Recorder     = (*DB)(nil)
	_ arena.SnippetStore = (*DB)(nil)
	_ arena.LegacyStore  = (*DB)(nil)
)
