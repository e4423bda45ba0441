package arena

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CachedMatchPrefix marks ids of matches started from a cached comparison.
const CachedMatchPrefix = "cached_"

// Side is one contestant of a match.
type Side struct {
	Model string `json:"model"`
	Code  string `json:"code"`
}

// Match is a single pairwise comparison.
type Match struct {
	ID        string
	Template  string
	Prompt    string
	Left      *Side
	Right     *Side
	Revealed  bool
	CachedID  string
	CreatedAt time.Time
}

// IsCached reports whether the match was started from a cached comparison.
func (m Match) IsCached() bool { return m.CachedID != "" }

func (m Match) clone() Match {
	cp := m
	if m.Left != nil {
		l := *m.Left
		cp.Left = &l
	}
	if m.Right != nil {
		r := *m.Right
		cp.Right = &r
	}
	return cp
}

// Reveal is the disclosure returned by a successful reveal.
type Reveal struct {
	LeftModel  string
	RightModel string
	// First is true only for the call that flipped the match to revealed.
	First bool
}

// MatchStore owns match lifecycle. It is safe for concurrent use.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*Match
	now     func() time.Time
}

func NewMatchStore() *MatchStore {
	return &MatchStore{matches: make(map[string]*Match), now: time.Now}
}

// Create stores a live match and returns it.
func (s *MatchStore) Create(template, prompt string, left, right *Side) Match {
	return s.insert(uuid.NewString(), "", template, prompt, left, right)
}

// CreateCached stores a match started from cached comparison cachedID.
func (s *MatchStore) CreateCached(cachedID, template, prompt string, left, right *Side) Match {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return s.insert(CachedMatchPrefix+cachedID+"_"+token[:16], cachedID, template, prompt, left, right)
}

func (s *MatchStore) insert(id, cachedID, template, prompt string, left, right *Side) Match {
	m := Match{
		ID:        id,
		Template:  template,
		Prompt:    prompt,
		Left:      left,
		Right:     right,
		CachedID:  cachedID,
		CreatedAt: s.now(),
	}
	m = m.clone()

	s.mu.Lock()
	s.matches[id] = &m
	s.mu.Unlock()
	return m.clone()
}

func (s *MatchStore) Get(id string) (Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return Match{}, ErrMatchNotFound
	}
	return m.clone(), nil
}

// Reveal marks the match revealed and returns both models. Revealing an
// already revealed match succeeds with First set to false.
func (s *MatchStore) Reveal(id string) (Reveal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return Reveal{}, ErrMatchNotFound
	}
	if m.Left == nil || m.Right == nil {
		return Reveal{}, ErrMatchIncomplete
	}
	first := !m.Revealed
	m.Revealed = true
	return Reveal{LeftModel: m.Left.Model, RightModel: m.Right.Model, First: first}, nil
}

// Len returns the number of stored matches.
func (s *MatchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}
