package rating

import "math"

const (
	// DefaultRating is the rating a model starts from on first reference.
	DefaultRating = 1500.0
	// DefaultK is the maximum number of points exchanged per vote.
	DefaultK = 24.0
)

// Expect returns the expected scores of a and b under the logistic Elo curve.
func Expect(ra, rb float64) (ea, eb float64) {
	ea = 1.0 / (1.0 + math.Pow(10, (rb-ra)/400.0))
	return ea, 1.0 - ea
}

// Deltas returns the unrounded rating changes for a decisive result where
// the model rated rw beat the model rated rl.
func Deltas(rw, rl, k float64) (dW, dL float64) {
	ew, el := Expect(rw, rl)
	dW = k * (1 - ew)
	dL = k * (0 - el)
	return dW, dL
}
