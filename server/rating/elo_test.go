package rating

import (
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpectSymmetric(t *testing.T) {
	ea, eb := Expect(1500, 1500)
	assert.InDelta(t, 0.5, ea, 1e-12)
	assert.InDelta(t, 0.5, eb, 1e-12)

	ea, eb = Expect(1900, 1500)
	assert.InDelta(t, 1.0, ea+eb, 1e-12)
	assert.Greater(t, ea, 0.9)
}

func TestRecordOutcomeEvenRatings(t *testing.T) {
	e := NewEngine()
	out, err := e.RecordOutcome("anthropic/claude", "google/gemini")
	require.NoError(t, err)

	assert.InDelta(t, 12.0, out.WinnerDelta, 1e-9)
	assert.InDelta(t, -12.0, out.LoserDelta, 1e-9)
	assert.Equal(t, 1512, out.Winner.Rating)
	assert.Equal(t, 1488, out.Loser.Rating)
	assert.Equal(t, 1, out.Winner.Games)
	assert.Equal(t, 1, out.Loser.Games)
	assert.Equal(t, 1, out.Winner.Wins)
	assert.Equal(t, 0, out.Loser.Wins)
}

func TestRecordOutcomeReportsUnroundedDeltas(t *testing.T) {
	e := NewEngine()
	_, err := e.RecordOutcome("a/x", "b/y")
	require.NoError(t, err)

	// 1512 vs 1488: the deltas are no longer whole numbers.
	out, err := e.RecordOutcome("b/y", "a/x")
	require.NoError(t, err)
	wantW, wantL := Deltas(1488, 1512, DefaultK)
	assert.InDelta(t, wantW, out.WinnerDelta, 1e-12)
	assert.InDelta(t, wantL, out.LoserDelta, 1e-12)
	assert.NotEqual(t, math.Trunc(out.WinnerDelta), out.WinnerDelta)
	assert.Equal(t, int(math.Round(1488+wantW)), out.Winner.Rating)
	assert.Equal(t, int(math.Round(1512+wantL)), out.Loser.Rating)
}

func TestRecordOutcomeMonotonic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		rw := 800 + rng.IntN(1600)
		rl := 800 + rng.IntN(1600)
		e := NewEngine()
		e.Seed([]Rating{{Model: "w/1", Rating: rw}, {Model: "l/1", Rating: rl}})

		out, err := e.RecordOutcome("w/1", "l/1")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Winner.Rating, rw, "winner %d vs %d", rw, rl)
		assert.LessOrEqual(t, out.Loser.Rating, rl, "loser %d vs %d", rw, rl)
		assert.GreaterOrEqual(t, out.WinnerDelta, 0.0)
		assert.LessOrEqual(t, out.LoserDelta, 0.0)
	}
}

func TestRecordOutcomeSameModel(t *testing.T) {
	e := NewEngine()
	_, err := e.RecordOutcome("a/x", "a/x")
	assert.ErrorIs(t, err, ErrSameModel)
	assert.Empty(t, e.Leaderboard(0))
}

func TestLeaderboardOrderAndCap(t *testing.T) {
	e := NewEngine()
	e.Seed([]Rating{
		{Model: "a/low", Rating: 1400, Games: 3},
		{Model: "b/high", Rating: 1600, Games: 1},
		{Model: "c/tie", Rating: 1500, Games: 2},
		{Model: "d/tie", Rating: 1500, Games: 5},
	})

	rows := e.Leaderboard(0)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"b/high", "d/tie", "c/tie", "a/low"},
		[]string{rows[0].Model, rows[1].Model, rows[2].Model, rows[3].Model})

	assert.Len(t, e.Leaderboard(2), 2)
}

func TestGetCreatesDefault(t *testing.T) {
	e := NewEngine(WithK(32), WithStart(1200))
	r := e.Get("openai/gpt")
	assert.Equal(t, 1200, r.Rating)
	assert.Equal(t, 0, r.Games)
	assert.Equal(t, 32.0, e.K())
	assert.Len(t, e.Leaderboard(0), 1)
}

func TestGlickoMovesWithResult(t *testing.T) {
	a, b := NewGlicko2(), NewGlicko2()
	a2 := a.Update(b, 1, DefaultTau)
	b2 := b.Update(a, 0, DefaultTau)

	assert.Greater(t, a2.Rating, a.Rating)
	assert.Less(t, b2.Rating, b.Rating)
	assert.Less(t, a2.RD, a.RD)
	assert.InDelta(t, 0.06, a2.Volatility, 0.01)
}

func TestWilsonCI95(t *testing.T) {
	lo, hi := WilsonCI95(0, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = WilsonCI95(50, 100)
	assert.Less(t, lo, 0.5)
	assert.Greater(t, hi, 0.5)
	assert.InDelta(t, 1.0, lo+hi, 1e-9)
}

func TestRecordOutcomeConcurrentSamePair(t *testing.T) {
	e := NewEngine()
	const votes = 200
	var wg sync.WaitGroup
	for i := 0; i < votes; i++ {
		w, l := "a/x", "b/y"
		if i%3 == 0 {
			w, l = l, w
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.RecordOutcome(w, l)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	a, b := e.Get("a/x"), e.Get("b/y")
	assert.Equal(t, votes, a.Games)
	assert.Equal(t, votes, b.Games)
	assert.Equal(t, votes, a.Wins+b.Wins)
	assert.Equal(t, votes/3+1, b.Wins)
}
