package main

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"graphicarena/server/arena"
	"graphicarena/server/metrics"
	"graphicarena/server/rating"
)

const (
	sessionCookie = "ga_session"
	sessionMaxAge = 30 * 24 * time.Hour
)

type api struct {
	svc *arena.Service
}

func Router(svc *arena.Service, m *metrics.Manager, allowedOrigins []string) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(m.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin(allowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Generation waits on the model calls and carries its own timeout.
		r.Post("/match", a.createMatch)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))
			r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"ok": true, "matches": svc.Matches().Len()})
			})
			r.Get("/models", a.listModels)
			r.Post("/vote", a.vote)
			r.Get("/leaderboard", a.leaderboard)
			r.Get("/cached-comparisons", a.listCached)
			r.Get("/cached-comparisons/{id}", a.getCached)
			r.Post("/cached-comparisons/{id}/start", a.startCached)
		})
	})
	return r
}

// allowOrigin matches the configured list. A "*" entry echoes the caller's
// origin, since credentialed responses cannot carry a literal wildcard.
func allowOrigin(allowed []string) func(*http.Request, string) bool {
	return func(_ *http.Request, origin string) bool {
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

/* -----------------------------
   Handlers
------------------------------*/

type codeOnly struct {
	Code string `json:"code"`
}

func (a *api) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.svc.Models(r.Context())
	if err != nil {
		writeError(w, err, http.StatusBadGateway)
		return
	}
	type Pricing struct {
		InputPerMTok  *float64 `json:"inputPerMTok"`
		OutputPerMTok *float64 `json:"outputPerMTok"`
	}
	type Model struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		Pricing Pricing `json:"pricing"`
	}
	out := make([]Model, 0, len(models))
	for _, m := range models {
		out = append(out, Model{
			ID:      m.ID,
			Name:    m.Name,
			Pricing: Pricing{InputPerMTok: m.Pricing.InputPerMTok, OutputPerMTok: m.Pricing.OutputPerMTok},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (a *api) createMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt   string `json:"prompt"`
		Template string `json:"template"`
		Smart    bool   `json:"smart"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}

	res, err := a.svc.GenerateMatch(r.Context(), arena.GenerateRequest{
		Prompt:    body.Prompt,
		Template:  body.Template,
		Smart:     body.Smart,
		SessionID: sessionID(w, r),
	})
	if err != nil {
		writeError(w, err, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        res.MatchID,
		"template":  res.Template,
		"left":      codeOnly{Code: res.LeftCode},
		"right":     codeOnly{Code: res.RightCode},
		"remaining": res.Remaining,
	})
}

func (a *api) vote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MatchID string `json:"matchId"`
		Winner  string `json:"winner"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	res, err := a.svc.Vote(r.Context(), body.MatchID, body.Winner)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reveal": map[string]string{"leftModel": res.LeftModel, "rightModel": res.RightModel},
		"elo":    map[string]float64{"winnerDelta": res.WinnerDelta, "loserDelta": res.LoserDelta},
	})
}

type leaderboardRow struct {
	Model     string  `json:"model"`
	Provider  string  `json:"provider"`
	Rating    int     `json:"rating"`
	Games     int     `json:"games"`
	Wins      int     `json:"wins"`
	WinCILow  float64 `json:"win_ci_low"`
	WinCIHigh float64 `json:"win_ci_high"`
	Glicko    float64 `json:"glicko"`
	GlickoRD  float64 `json:"glicko_rd"`
}

func toLeaderboardRow(r rating.Rating) leaderboardRow {
	lo, hi := r.WinCI()
	return leaderboardRow{
		Model:     r.Model,
		Provider:  arena.Provider(r.Model),
		Rating:    r.Rating,
		Games:     r.Games,
		Wins:      r.Wins,
		WinCILow:  round(lo, 4),
		WinCIHigh: round(hi, 4),
		Glicko:    round(r.Glicko.Rating, 1),
		GlickoRD:  round(r.Glicko.RD, 1),
	}
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	rows := a.svc.Leaderboard()
	out := make([]leaderboardRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toLeaderboardRow(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (a *api) listCached(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": a.svc.ListCached(r.Context())})
}

func (a *api) getCached(w http.ResponseWriter, r *http.Request) {
	pair, err := a.svc.ResolveCached(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]string{
		"id":          pair.ID,
		"prompt":      pair.Prompt,
		"left_model":  pair.Left.Model,
		"left_code":   pair.Left.Code,
		"right_model": pair.Right.Model,
		"right_code":  pair.Right.Code,
		"source":      string(pair.Tier),
	}})
}

func (a *api) startCached(w http.ResponseWriter, r *http.Request) {
	res, err := a.svc.StartCached(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     res.MatchID,
		"prompt": res.Prompt,
		"left":   codeOnly{Code: res.LeftCode},
		"right":  codeOnly{Code: res.RightCode},
	})
}

/* -----------------------------
   Helpers
------------------------------*/

// sessionID returns the caller's session token, minting one when absent.
func sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// writeError maps arena errors to HTTP statuses. Anything unrecognized gets
// fallback and is logged.
func writeError(w http.ResponseWriter, err error, fallback int) {
	var qe *arena.QuotaExceededError
	switch {
	case errors.As(err, &qe):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     err.Error(),
			"limit":     qe.Limit,
			"remaining": 0,
		})
		return
	case errors.Is(err, arena.ErrMissingCredential):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing OPENROUTER_API_KEY"})
		return
	}

	status := fallback
	switch {
	case errors.Is(err, arena.ErrInsufficientCandidates):
		status = http.StatusServiceUnavailable
	case errors.Is(err, arena.ErrMatchNotFound), errors.Is(err, arena.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, arena.ErrMatchIncomplete), errors.Is(err, arena.ErrInvalidSide):
		status = http.StatusBadRequest
	case errors.Is(err, arena.ErrAlreadyVoted):
		status = http.StatusConflict
	default:
		log.Printf("request failed: %v", err)
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
