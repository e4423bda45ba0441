package rating

import "math"

// --- Glicko-2 constants & helpers (paper values) ---
const (
	g2Scale = 173.7178 // rating scale between r<->mu
	pi2     = math.Pi * math.Pi

	// DefaultTau constrains volatility change between rating periods.
	DefaultTau = 0.5
)

// Glicko2 holds the public “1500-scale” values (not mu/phi).
type Glicko2 struct {
	Rating     float64 // r   (default 1500)
	RD         float64 // RD  (default 350)
	Volatility float64 // sigma (default 0.06)
}

// NewGlicko2 returns a fresh player at the standard defaults.
func NewGlicko2() Glicko2 {
	return Glicko2{Rating: DefaultRating, RD: 350, Volatility: 0.06}
}

// --- internal conversions r/RD <-> mu/phi ---
func toMuPhi(r, rd float64) (mu, phi float64)   { return (r - 1500.0) / g2Scale, rd / g2Scale }
func fromMuPhi(mu, phi float64) (r, rd float64) { return mu*g2Scale + 1500.0, phi * g2Scale }

// g(phi_j) and E(mu, mu_j, phi_j)
func g(phi float64) float64 { return 1.0 / math.Sqrt(1.0+3.0*phi*phi/pi2) }
func gExp(mu, muj, phij float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phij)*(mu-muj)))
}

// Update applies a one-game rating period against opp and returns the new
// state. s is 1 for a win and 0 for a loss; opp must be the opponent as it
// was before this game.
func (a Glicko2) Update(opp Glicko2, s, tau float64) Glicko2 {
	muA, phiA := toMuPhi(a.Rating, a.RD)
	muB, phiB := toMuPhi(opp.Rating, opp.RD)

	gB := g(phiB)
	e := gExp(muA, muB, phiB)
	v := 1.0 / (gB * gB * e * (1.0 - e))
	delta := v * gB * (s - e)

	// Solve for the new volatility (sigma') via the Illinois root finder.
	a2 := math.Log(a.Volatility * a.Volatility)
	f := func(x float64) float64 {
		ex := math.Exp(x)
		num := ex * (delta*delta - phiA*phiA - v - ex)
		den := 2.0 * (phiA*phiA + v + ex) * (phiA*phiA + v + ex)
		return (num / den) - (x-a2)/(tau*tau)
	}

	A := a2
	var B float64
	if delta*delta > phiA*phiA+v {
		B = math.Log(delta*delta - phiA*phiA - v)
	} else {
		k := 1.0
		for f(a2-k*tau) < 0 && k < 1e6 {
			k++
		}
		B = a2 - k*tau
	}
	fA := f(A)
	fB := f(B)
	for it := 0; it < 100 && math.Abs(B-A) > 1e-6; it++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := f(C)
		if math.IsNaN(fC) || math.IsInf(fC, 0) {
			break
		}
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}

	newVol := math.Exp(A / 2.0)
	phiStar := math.Sqrt(phiA*phiA + newVol*newVol)
	phiNew := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muNew := muA + (phiNew*phiNew)*gB*(s-e)

	out := Glicko2{Volatility: newVol}
	out.Rating, out.RD = fromMuPhi(muNew, phiNew)
	return out
}
