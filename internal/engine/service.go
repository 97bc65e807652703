// Package engine is the application service in front of the pure core. It
// loads a learner's history and state, runs the analyzer, classifier and
// state machine, and persists the results. Operations on one learner are
// serialized; different learners run in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/numbersense/internal/analysis"
	"github.com/abhisek/numbersense/internal/cache"
	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/intervention"
	"github.com/abhisek/numbersense/internal/logging"
	"github.com/abhisek/numbersense/internal/narrative"
	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
	"github.com/abhisek/numbersense/internal/store"
	"github.com/abhisek/numbersense/internal/support"
)

// Repo is the persistence port. *store.Store implements it.
type Repo interface {
	RecentOutcomes(ctx context.Context, userID string, limit int) ([]outcome.TaskOutcome, error)
	SessionCount(ctx context.Context, userID string) (int, error)
	TaskCount(ctx context.Context, userID string) (int, error)
	LoadState(ctx context.Context, userID string) (*progression.State, error)
	RecordSubmission(ctx context.Context, userID string, o outcome.TaskOutcome, sub store.Submission) error
	CommitState(ctx context.Context, userID string, sub store.Submission) error
	LoadSkills(ctx context.Context, userID string) (risk.SkillSnapshot, error)
	SetSkills(ctx context.Context, userID string, skills risk.SkillSnapshot, now time.Time) error
	LevelEvents(ctx context.Context, userID string, opts store.QueryOpts) ([]store.LevelEvent, error)
	AppendRiskReport(ctx context.Context, userID string, p *risk.Profile) error
	ListLearners(ctx context.Context) ([]string, error)
}

// Narrator writes the optional caregiver summary.
type Narrator interface {
	Narrate(ctx context.Context, p *risk.Profile) (narrative.Narration, error)
}

var (
	// ErrInvalidUser is returned for an empty learner ID.
	ErrInvalidUser = errors.New("engine: learner id is required")
	// ErrInvalidOutcome wraps outcome validation failures.
	ErrInvalidOutcome = errors.New("engine: invalid outcome")
	// ErrInvalidSkills wraps skill snapshot validation failures.
	ErrInvalidSkills = errors.New("engine: invalid skill snapshot")
	// ErrNarrativeUnavailable is returned by Narrate when no narrator is
	// configured.
	ErrNarrativeUnavailable = errors.New("engine: narrative is not configured")
)

// conflictRetries bounds how often a submission is replayed after another
// process wrote the same learner's state.
const conflictRetries = 3

// Options are the optional collaborators of a Service.
type Options struct {
	Cache    cache.ProfileCache
	Narrator Narrator
	Catalog  *intervention.Catalog
	Logger   *logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// RecordReports appends every computed profile to the report log.
	RecordReports bool
	// BatchConcurrency bounds BatchRiskProfiles. Default 4.
	BatchConcurrency int
}

// Service runs engine operations against a Repo.
type Service struct {
	cfg      config.Engine
	repo     Repo
	machine  *progression.Machine
	taggers  []outcome.Tagger
	catalog  intervention.Catalog
	cache    cache.ProfileCache
	narrator Narrator
	log      *logging.Logger
	now      func() time.Time
	locks    *keyedMutex

	recordReports bool
	batchLimit    int
}

// NewService validates cfg and wires the service.
func NewService(cfg config.Engine, repo Repo, opts Options) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("engine: repo is required")
	}

	s := &Service{
		cfg:           cfg,
		repo:          repo,
		machine:       progression.NewMachine(cfg),
		taggers:       outcome.DefaultTaggers(cfg.Analysis),
		catalog:       intervention.DefaultCatalog(),
		cache:         opts.Cache,
		narrator:      opts.Narrator,
		log:           opts.Logger,
		now:           opts.Now,
		locks:         newKeyedMutex(),
		recordReports: opts.RecordReports,
		batchLimit:    opts.BatchConcurrency,
	}
	if opts.Catalog != nil {
		if err := opts.Catalog.Validate(); err != nil {
			return nil, err
		}
		s.catalog = *opts.Catalog
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.batchLimit <= 0 {
		s.batchLimit = 4
	}
	return s, nil
}

// Config returns the configuration the service was built with.
func (s *Service) Config() config.Engine {
	return s.cfg
}

func checkUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	return nil
}

// SubmitOutcome validates and records one outcome, runs the progression
// policies and returns the new state with the transition it caused, if any.
// A missing ID or timestamp is filled in and an empty error type on a wrong
// answer is classified.
func (s *Service) SubmitOutcome(ctx context.Context, userID string, o outcome.TaskOutcome) (*progression.State, *progression.Transition, error) {
	if err := checkUser(userID); err != nil {
		return nil, nil, err
	}
	if err := o.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidOutcome, err)
	}
	now := s.now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = now
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	log := s.log.With("user_id", userID)

	var (
		next *progression.State
		tr   *progression.Transition
	)
	for attempt := 0; ; attempt++ {
		prev, err := s.repo.LoadState(ctx, userID)
		if err != nil {
			return nil, nil, fmt.Errorf("load state: %w", err)
		}

		tagged := o
		tagged.ErrorType = outcome.Tag(s.taggers, &outcome.TagInput{
			Outcome:        o,
			RecentAccuracy: s.recentAccuracy(prev),
		})

		next, tr, err = s.machine.Apply(prev, tagged, now)
		if err != nil {
			return nil, nil, err
		}

		err = s.repo.RecordSubmission(ctx, userID, tagged, store.Submission{State: next, Transition: tr})
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrConflict) || attempt+1 >= conflictRetries {
			return nil, nil, fmt.Errorf("record submission: %w", err)
		}
		log.Warn("state conflict, replaying submission", "attempt", attempt+1)
	}

	if tr != nil && tr.Trigger != progression.TriggerFirstAttempt {
		log.Info("level transition", "from", tr.From, "to", tr.To, "trigger", string(tr.Trigger),
			"stage_changed", tr.StageChanged())
	}
	s.invalidate(ctx, userID)
	return next, tr, nil
}

// recentAccuracy is the success rate over the current level's recent
// window, falling back to lifetime accuracy on a fresh level.
func (s *Service) recentAccuracy(st *progression.State) float64 {
	if st == nil {
		return 0
	}
	if rec := st.Current(); rec != nil {
		if rate, n := rec.RecentRate(s.cfg.Progression.MasteryWindow); n > 0 {
			return rate
		}
	}
	return st.Accuracy()
}

// ComputeRiskProfile analyzes the learner's recent window and returns a
// classified profile with recommendations. Insufficient data is not an
// error: the profile comes back low-risk with zero confidence.
func (s *Service) ComputeRiskProfile(ctx context.Context, userID string) (*risk.Profile, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	log := s.log.With("user_id", userID)

	if p, err := s.cache.Get(ctx, userID); err == nil {
		return p, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		log.Warn("risk cache read failed", "error", err)
	}

	// Held until the profile is cached so a concurrent submission cannot
	// invalidate before a stale profile is written.
	unlock := s.locks.Lock(userID)
	defer unlock()

	window, err := s.repo.RecentOutcomes(ctx, userID, s.cfg.Analysis.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	skills, err := s.repo.LoadSkills(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}
	sessions, err := s.repo.SessionCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	tasks, err := s.repo.TaskCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	st, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	result := analysis.Analyze(window, s.cfg.Analysis)
	p := risk.Classify(risk.Input{
		Analysis:     result,
		Skills:       skills,
		SessionCount: sessions,
		TaskCount:    tasks,
	}, s.cfg.Risk)
	p.Recommendations = intervention.Generate(p.Indicators, st, s.catalog)
	p.ID = uuid.NewString()
	p.UserID = userID
	p.GeneratedAt = s.now()

	log.Debug("risk profile computed", "level", string(p.Level), "confidence", p.Confidence,
		"indicators", len(p.Indicators), "tasks", result.TaskCount)

	if s.recordReports {
		if err := s.repo.AppendRiskReport(ctx, userID, &p); err != nil {
			log.Warn("failed to record risk report", "error", err)
		}
	}
	if err := s.cache.Set(ctx, userID, &p); err != nil {
		log.Warn("risk cache write failed", "error", err)
	}
	return &p, nil
}

// Narrate returns a copy of p with a caregiver narrative. A narrator
// failure is logged and the copy comes back without one.
func (s *Service) Narrate(ctx context.Context, p *risk.Profile) (*risk.Profile, error) {
	if s.narrator == nil {
		return nil, ErrNarrativeUnavailable
	}
	out := *p
	n, err := s.narrator.Narrate(ctx, p)
	if err != nil {
		s.log.With("user_id", p.UserID).Warn("narrative unavailable", "error", err)
		return &out, nil
	}
	out.Narrative = n.String()
	return &out, nil
}

// ComputeSupportLevel returns the learner's representation support state.
// A learner with no history starts at maximum support.
func (s *Service) ComputeSupportLevel(ctx context.Context, userID string) (support.State, error) {
	if err := checkUser(userID); err != nil {
		return support.State{}, err
	}
	st, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return support.State{}, fmt.Errorf("load state: %w", err)
	}
	if st == nil {
		return s.machine.Support().Initial(), nil
	}
	return st.Support, nil
}

// RequestSupport raises the learner's support level by one.
func (s *Service) RequestSupport(ctx context.Context, userID string) (support.State, error) {
	if err := checkUser(userID); err != nil {
		return support.State{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	prev, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return support.State{}, fmt.Errorf("load state: %w", err)
	}
	next, err := s.machine.RequestSupport(prev, s.now())
	if err != nil {
		return support.State{}, err
	}
	if err := s.repo.CommitState(ctx, userID, store.Submission{State: next}); err != nil {
		return support.State{}, fmt.Errorf("save state: %w", err)
	}
	s.log.With("user_id", userID).Info("support requested", "level", next.Support.Level)
	return next.Support, nil
}

// ResetLevel moves the learner to level n. Administrative: it is the only
// way to move down when auto-regression is off.
func (s *Service) ResetLevel(ctx context.Context, userID string, n int) (*progression.State, *progression.Transition, error) {
	if err := checkUser(userID); err != nil {
		return nil, nil, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	prev, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	next, tr, err := s.machine.ResetToLevel(prev, n, s.now())
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.CommitState(ctx, userID, store.Submission{State: next, Transition: tr}); err != nil {
		return nil, nil, fmt.Errorf("save state: %w", err)
	}
	s.log.With("user_id", userID).Info("level reset", "from", tr.From, "to", tr.To)
	s.invalidate(ctx, userID)
	return next, tr, nil
}

// SetSkills records prerequisite skill levels reported by the skill
// tracker. Levels must be within [0, MaxSkillLevel].
func (s *Service) SetSkills(ctx context.Context, userID string, skills risk.SkillSnapshot) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	for name, level := range skills {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: empty skill name", ErrInvalidSkills)
		}
		if level < 0 || level > s.cfg.Risk.MaxSkillLevel {
			return fmt.Errorf("%w: %s level %d outside [0, %d]",
				ErrInvalidSkills, name, level, s.cfg.Risk.MaxSkillLevel)
		}
	}
	if err := s.repo.SetSkills(ctx, userID, skills, s.now()); err != nil {
		return fmt.Errorf("save skills: %w", err)
	}
	s.invalidate(ctx, userID)
	return nil
}

// LevelHistory returns the learner's state and transition log. The state
// is nil for a learner with no submissions.
func (s *Service) LevelHistory(ctx context.Context, userID string) (*progression.State, []store.LevelEvent, error) {
	if err := checkUser(userID); err != nil {
		return nil, nil, err
	}
	st, err := s.repo.LoadState(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}
	events, err := s.repo.LevelEvents(ctx, userID, store.QueryOpts{})
	if err != nil {
		return nil, nil, fmt.Errorf("load level events: %w", err)
	}
	return st, events, nil
}

// StageOf maps a level to its stage under the service's configuration.
func (s *Service) StageOf(level int) int {
	return s.machine.StageOf(level)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.log.With("user_id", userID).Warn("risk cache invalidation failed", "error", err)
	}
}
