// Package arena pairs models on a prompt, collects votes and keeps the
// rating table. Persistence is a best-effort mirror: the in-memory state
// owned by Service is authoritative for every response.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"graphicarena/server/rating"
)

// Message is one chat turn sent to a model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelProvider is the model inference backend.
type ModelProvider interface {
	ListModels(ctx context.Context) ([]CatalogModel, error)
	Complete(ctx context.Context, model string, messages []Message) (string, error)
}

// MatchRecord is what gets mirrored when a match is created.
type MatchRecord struct {
	Match      Match
	LeftError  string
	RightError string
}

// VoteRecord is what gets mirrored when a vote is applied.
type VoteRecord struct {
	MatchID     string
	Side        string
	Winner      rating.Rating
	Loser       rating.Rating
	WinnerDelta float64
	LoserDelta  float64
}

// Recorder mirrors arena events to durable storage.
type Recorder interface {
	RecordMatch(ctx context.Context, rec MatchRecord) error
	RecordVote(ctx context.Context, rec VoteRecord) error
}

// Observer receives arena events for metrics.
type Observer interface {
	MatchCreated(kind string)
	VoteRecorded(first bool)
	ProviderFailure(model string)
	QuotaRejected()
	CachedResolved(tier string)
	PersistFailed(op string)
}

type nopObserver struct{}

func (nopObserver) MatchCreated(string)    {}
func (nopObserver) VoteRecorded(bool)      {}
func (nopObserver) ProviderFailure(string) {}
func (nopObserver) QuotaRejected()         {}
func (nopObserver) CachedResolved(string)  {}
func (nopObserver) PersistFailed(string)   {}

// Config holds the tunables of a Service.
type Config struct {
	PromptLimit       int
	MaxPerMTok        *float64
	AllowRevote       bool
	GenerationTimeout time.Duration
	PersistTimeout    time.Duration
	LeaderboardLimit  int
}

func (c *Config) applyDefaults() {
	if c.PromptLimit <= 0 {
		c.PromptLimit = DefaultPromptLimit
	}
	if c.GenerationTimeout <= 0 {
		c.GenerationTimeout = 90 * time.Second
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
	if c.LeaderboardLimit <= 0 {
		c.LeaderboardLimit = 50
	}
}

// Deps are the collaborators of a Service. Every field is optional: a nil
// Provider makes generation fail with ErrMissingCredential, a nil Recorder
// disables mirroring, and nil stores drop their resolver tier.
type Deps struct {
	Provider ModelProvider
	Recorder Recorder
	Observer Observer
	Quota    QuotaBackend
	Ratings  *rating.Engine
	Rand     Rand
	Snippets SnippetStore
	Legacy   LegacyStore
	Seed     []LegacyComparison
}

// Service is the match and rating engine.
type Service struct {
	cfg      Config
	provider ModelProvider
	recorder Recorder
	obs      Observer

	matches  *MatchStore
	ratings  *rating.Engine
	quota    *QuotaTracker
	sampler  *Sampler
	resolver *Resolver

	voteMu  sync.Mutex
	mirrorQ chan mirrorJob
	pending sync.WaitGroup
}

// mirrorQueueSize bounds writes waiting on the recorder. Beyond it writes
// are dropped and counted as persist failures.
const mirrorQueueSize = 1024

type mirrorJob struct {
	op string
	fn func(ctx context.Context) error
}

func New(cfg Config, deps Deps) *Service {
	cfg.applyDefaults()
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Ratings == nil {
		deps.Ratings = rating.NewEngine()
	}
	if deps.Rand == nil {
		deps.Rand = NewRand(0)
	}
	s := &Service{
		cfg:      cfg,
		provider: deps.Provider,
		recorder: deps.Recorder,
		obs:      deps.Observer,
		matches:  NewMatchStore(),
		ratings:  deps.Ratings,
		quota:    NewQuotaTracker(cfg.PromptLimit, deps.Quota),
		sampler:  NewSampler(deps.Rand),
		resolver: NewResolver(deps.Rand, deps.Snippets, deps.Legacy, deps.Seed),
	}
	if s.recorder != nil {
		s.mirrorQ = make(chan mirrorJob, mirrorQueueSize)
		go s.runMirror()
	}
	return s
}

// Matches exposes the match store.
func (s *Service) Matches() *MatchStore { return s.matches }

// GenerationTimeout is the per-side model call budget.
func (s *Service) GenerationTimeout() time.Duration { return s.cfg.GenerationTimeout }

// Wait blocks until pending mirror writes have finished.
func (s *Service) Wait() { s.pending.Wait() }

// GenerateRequest is a live generation request.
type GenerateRequest struct {
	Prompt    string
	Template  string
	Smart     bool
	SessionID string
}

// GenerateResult is returned to the voter; models stay hidden until the vote.
type GenerateResult struct {
	MatchID   string
	Template  string
	LeftCode  string
	RightCode string
	Remaining int
}

// Models returns the provider catalog.
func (s *Service) Models(ctx context.Context) ([]CatalogModel, error) {
	if s.provider == nil {
		return nil, ErrMissingCredential
	}
	return s.provider.ListModels(ctx)
}

// GenerateMatch pairs two models on the prompt and stores the match.
// A side whose model call fails gets PlaceholderCode instead.
func (s *Service) GenerateMatch(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if s.provider == nil {
		return GenerateResult{}, ErrMissingCredential
	}
	adm := s.quota.Admit(ctx, req.SessionID, req.Prompt)
	if !adm.Allowed {
		s.obs.QuotaRejected()
		return GenerateResult{}, &QuotaExceededError{Limit: adm.Limit}
	}

	catalog, err := s.provider.ListModels(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("list models: %w", err)
	}
	ids, err := FilterCandidates(catalog, FilterOptions{MaxPerMTok: s.cfg.MaxPerMTok, Smart: req.Smart})
	if err != nil {
		return GenerateResult{}, err
	}
	leftModel, rightModel, err := s.sampler.Pair(ids)
	if err != nil {
		return GenerateResult{}, err
	}

	template := strings.TrimSpace(req.Template)
	if template == "" {
		template = DefaultTemplate
	}
	messages := []Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: UserPrompt(template, req.Prompt)},
	}

	var (
		left, right       Side
		leftErr, rightErr error
		g                 errgroup.Group
	)
	g.Go(func() error {
		left, leftErr = s.generate(ctx, leftModel, messages)
		return nil
	})
	g.Go(func() error {
		right, rightErr = s.generate(ctx, rightModel, messages)
		return nil
	})
	_ = g.Wait()

	m := s.matches.Create(template, req.Prompt, &left, &right)
	s.obs.MatchCreated("live")

	rec := MatchRecord{Match: m, LeftError: errText(leftErr), RightError: errText(rightErr)}
	s.mirror("RecordMatch", func(ctx context.Context) error { return s.recorder.RecordMatch(ctx, rec) })

	return GenerateResult{
		MatchID:   m.ID,
		Template:  m.Template,
		LeftCode:  left.Code,
		RightCode: right.Code,
		Remaining: adm.Remaining,
	}, nil
}

// generate never fails: errors degrade the side to PlaceholderCode and are
// returned only for the mirror.
func (s *Service) generate(ctx context.Context, model string, messages []Message) (Side, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	raw, err := s.provider.Complete(ctx, model, messages)
	if err == nil {
		if code := ExtractCode(raw); code != "" {
			return Side{Model: model, Code: code}, nil
		}
		err = errors.New("empty completion")
	}
	log.Printf("generation for %s failed (using placeholder): %v", model, err)
	s.obs.ProviderFailure(model)
	return Side{Model: model, Code: PlaceholderCode}, err
}

// VoteResult reveals the models and the rating change.
type VoteResult struct {
	LeftModel   string
	RightModel  string
	WinnerDelta float64
	LoserDelta  float64
	Winner      rating.Rating
	Loser       rating.Rating
}

// Vote records side ("left" or "right") as the winner of the match.
func (s *Service) Vote(ctx context.Context, matchID, side string) (VoteResult, error) {
	side = strings.ToLower(strings.TrimSpace(side))
	if side != "left" && side != "right" {
		return VoteResult{}, ErrInvalidSide
	}
	rev, err := s.matches.Reveal(matchID)
	if err != nil {
		return VoteResult{}, err
	}
	if !rev.First && !s.cfg.AllowRevote {
		return VoteResult{}, ErrAlreadyVoted
	}

	winner, loser := rev.LeftModel, rev.RightModel
	if side == "right" {
		winner, loser = loser, winner
	}
	res := VoteResult{LeftModel: rev.LeftModel, RightModel: rev.RightModel}

	// voteMu keeps queued rating snapshots in the order they were applied.
	s.voteMu.Lock()
	defer s.voteMu.Unlock()

	out, err := s.ratings.RecordOutcome(winner, loser)
	if err != nil {
		log.Printf("rating update for match %s skipped: %v", matchID, err)
		res.Winner, res.Loser = s.ratings.Get(winner), s.ratings.Get(loser)
		s.obs.VoteRecorded(rev.First)
		return res, nil
	}
	res.WinnerDelta, res.LoserDelta = out.WinnerDelta, out.LoserDelta
	res.Winner, res.Loser = out.Winner, out.Loser
	s.obs.VoteRecorded(rev.First)

	rec := VoteRecord{
		MatchID:     matchID,
		Side:        side,
		Winner:      out.Winner,
		Loser:       out.Loser,
		WinnerDelta: out.WinnerDelta,
		LoserDelta:  out.LoserDelta,
	}
	s.mirror("RecordVote", func(ctx context.Context) error { return s.recorder.RecordVote(ctx, rec) })
	return res, nil
}

// Leaderboard returns the top rated models.
func (s *Service) Leaderboard() []rating.Rating {
	return s.ratings.Leaderboard(s.cfg.LeaderboardLimit)
}

// ListCached lists cached comparisons from the first tier that has any.
func (s *Service) ListCached(ctx context.Context) []CachedSummary {
	return s.resolver.List(ctx)
}

// ResolveCached resolves a cached comparison without starting a match.
func (s *Service) ResolveCached(ctx context.Context, id string) (CachedPair, error) {
	return s.resolver.Resolve(ctx, id)
}

// StartResult is returned when a cached comparison becomes a match.
type StartResult struct {
	MatchID   string
	Prompt    string
	LeftCode  string
	RightCode string
}

// StartCached turns cached comparison id into a votable match.
func (s *Service) StartCached(ctx context.Context, id string) (StartResult, error) {
	pair, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		return StartResult{}, err
	}
	s.obs.CachedResolved(string(pair.Tier))

	left, right := pair.Left, pair.Right
	m := s.matches.CreateCached(id, "code", pair.Prompt, &left, &right)
	s.obs.MatchCreated("cached")

	rec := MatchRecord{Match: m}
	s.mirror("RecordMatch", func(ctx context.Context) error { return s.recorder.RecordMatch(ctx, rec) })

	return StartResult{MatchID: m.ID, Prompt: m.Prompt, LeftCode: left.Code, RightCode: right.Code}, nil
}

// mirror queues fn for the single mirror worker when a recorder is
// configured. Writes reach the recorder in the order they were queued, so a
// match is recorded before its votes. Failures are logged and counted,
// never returned.
func (s *Service) mirror(op string, fn func(ctx context.Context) error) {
	if s.recorder == nil {
		return
	}
	s.pending.Add(1)
	select {
	case s.mirrorQ <- mirrorJob{op: op, fn: fn}:
	default:
		s.pending.Done()
		log.Printf("%s dropped: mirror queue full", op)
		s.obs.PersistFailed(op)
	}
}

func (s *Service) runMirror() {
	for job := range s.mirrorQ {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PersistTimeout)
		if err := job.fn(ctx); err != nil {
			log.Printf("%s failed: %v", job.op, err)
			s.obs.PersistFailed(job.op)
		}
		cancel()
		s.pending.Done()
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
