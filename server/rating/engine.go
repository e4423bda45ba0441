// Package rating keeps per-model Elo ratings for pairwise arena votes.
//
// Stored Elo ratings are always integers: each vote rounds the winner and
// the loser independently, so total rating mass drifts by at most one point
// per vote. Reported deltas are the unrounded values.
package rating

import (
	"errors"
	"math"
	"sort"
	"sync"
)

// ErrSameModel is returned when a vote names the same model on both sides.
var ErrSameModel = errors.New("winner and loser are the same model")

// Rating is a snapshot of one model's standing.
type Rating struct {
	Model  string
	Rating int
	Games  int
	Wins   int
	Glicko Glicko2
}

// WinCI returns the Wilson 95% interval of the model's win rate.
func (r Rating) WinCI() (low, hi float64) {
	return WilsonCI95(r.Wins, r.Games)
}

// Outcome is the result of applying one vote.
type Outcome struct {
	WinnerDelta float64
	LoserDelta  float64
	Winner      Rating
	Loser       Rating
}

// Engine owns the rating table. All methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	k       float64
	start   int
	tau     float64
	ratings map[string]*Rating
}

// Option configures an Engine.
type Option func(*Engine)

// WithK overrides the K-factor.
func WithK(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.k = k
		}
	}
}

// WithStart overrides the rating assigned on first reference.
func WithStart(start int) Option {
	return func(e *Engine) { e.start = start }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		k:       DefaultK,
		start:   int(DefaultRating),
		tau:     DefaultTau,
		ratings: make(map[string]*Rating),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// K returns the configured K-factor.
func (e *Engine) K() float64 { return e.k }

// caller must hold e.mu
func (e *Engine) row(model string) *Rating {
	r, ok := e.ratings[model]
	if !ok {
		r = &Rating{Model: model, Rating: e.start, Glicko: NewGlicko2()}
		e.ratings[model] = r
	}
	return r
}

// Get returns the model's rating, creating the default row on first use.
func (e *Engine) Get(model string) Rating {
	e.mu.Lock()
	defer e.mu.Unlock()
	return *e.row(model)
}

// RecordOutcome applies a decisive vote. Ratings are rounded when stored
// while the returned deltas are not.
func (e *Engine) RecordOutcome(winner, loser string) (Outcome, error) {
	if winner == loser {
		return Outcome{}, ErrSameModel
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	w := e.row(winner)
	l := e.row(loser)

	dW, dL := Deltas(float64(w.Rating), float64(l.Rating), e.k)
	w.Rating = int(math.Round(float64(w.Rating) + dW))
	l.Rating = int(math.Round(float64(l.Rating) + dL))
	w.Games++
	l.Games++
	w.Wins++

	gw, gl := w.Glicko, l.Glicko
	w.Glicko = gw.Update(gl, 1, e.tau)
	l.Glicko = gl.Update(gw, 0, e.tau)

	return Outcome{WinnerDelta: dW, LoserDelta: dL, Winner: *w, Loser: *l}, nil
}

// Seed loads persisted rows, replacing any in-memory state for those models.
func (e *Engine) Seed(rows []Rating) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range rows {
		if r.Model == "" {
			continue
		}
		if r.Games < 0 {
			r.Games = 0
		}
		if r.Wins < 0 || r.Wins > r.Games {
			r.Wins = 0
		}
		if r.Glicko == (Glicko2{}) {
			r.Glicko = NewGlicko2()
		}
		cp := r
		e.ratings[r.Model] = &cp
	}
}

// Leaderboard returns up to limit rows ordered by rating (ties: more games
// first, then model id). A non-positive limit returns every row.
func (e *Engine) Leaderboard(limit int) []Rating {
	e.mu.Lock()
	out := make([]Rating, 0, len(e.ratings))
	for _, r := range e.ratings {
		out = append(out, *r)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		if out[i].Games != out[j].Games {
			return out[i].Games > out[j].Games
		}
		return out[i].Model < out[j].Model
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
