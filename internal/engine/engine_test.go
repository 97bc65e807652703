package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/abhisek/numbersense/internal/cache"
	"github.com/abhisek/numbersense/internal/config"
	"github.com/abhisek/numbersense/internal/narrative"
	"github.com/abhisek/numbersense/internal/outcome"
	"github.com/abhisek/numbersense/internal/progression"
	"github.com/abhisek/numbersense/internal/risk"
	"github.com/abhisek/numbersense/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeRepo is an in-memory Repo with the store's version semantics.
type fakeRepo struct {
	mu       sync.Mutex
	outcomes map[string][]outcome.TaskOutcome
	states   map[string]*progression.State
	skills   map[string]risk.SkillSnapshot
	events   map[string][]store.LevelEvent
	reports  map[string][]risk.Profile
	seq      int64

	// conflicts makes the next n state writes fail with ErrConflict.
	conflicts int
	// broken makes RecentOutcomes fail for the listed learners.
	broken map[string]bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		outcomes: make(map[string][]outcome.TaskOutcome),
		states:   make(map[string]*progression.State),
		skills:   make(map[string]risk.SkillSnapshot),
		events:   make(map[string][]store.LevelEvent),
		reports:  make(map[string][]risk.Profile),
		broken:   make(map[string]bool),
	}
}

func (r *fakeRepo) RecentOutcomes(_ context.Context, userID string, limit int) ([]outcome.TaskOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken[userID] {
		return nil, errors.New("disk on fire")
	}
	all := r.outcomes[userID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]outcome.TaskOutcome(nil), all...), nil
}

func (r *fakeRepo) SessionCount(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	for _, o := range r.outcomes[userID] {
		if o.SessionID != "" {
			seen[o.SessionID] = true
		}
	}
	return len(seen), nil
}

func (r *fakeRepo) TaskCount(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes[userID]), nil
}

func (r *fakeRepo) LoadState(_ context.Context, userID string) (*progression.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[userID].Clone(), nil
}

func (r *fakeRepo) RecordSubmission(_ context.Context, userID string, o outcome.TaskOutcome, sub store.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.commitLocked(userID, sub); err != nil {
		return err
	}
	r.outcomes[userID] = append(r.outcomes[userID], o)
	return nil
}

func (r *fakeRepo) CommitState(_ context.Context, userID string, sub store.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitLocked(userID, sub)
}

func (r *fakeRepo) commitLocked(userID string, sub store.Submission) error {
	if r.conflicts > 0 {
		r.conflicts--
		return store.ErrConflict
	}
	var current int64
	if st := r.states[userID]; st != nil {
		current = st.Version
	}
	if sub.State.Version != current {
		return store.ErrConflict
	}
	saved := sub.State.Clone()
	saved.Version = current + 1
	r.states[userID] = saved
	sub.State.Version = saved.Version

	if tr := sub.Transition; tr != nil {
		r.seq++
		r.events[userID] = append(r.events[userID], store.LevelEvent{
			Sequence: r.seq, UserID: userID, From: tr.From, To: tr.To,
			Trigger: tr.Trigger, Timestamp: tr.At,
		})
	}
	return nil
}

func (r *fakeRepo) LoadSkills(_ context.Context, userID string) (risk.SkillSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skills[userID], nil
}

func (r *fakeRepo) SetSkills(_ context.Context, userID string, skills risk.SkillSnapshot, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[userID] = skills
	return nil
}

func (r *fakeRepo) LevelEvents(_ context.Context, userID string, _ store.QueryOpts) ([]store.LevelEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.LevelEvent(nil), r.events[userID]...), nil
}

func (r *fakeRepo) AppendRiskReport(_ context.Context, userID string, p *risk.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[userID] = append(r.reports[userID], *p)
	return nil
}

func (r *fakeRepo) ListLearners(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.states))
	for id := range r.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *fakeRepo) stored(userID string) []outcome.TaskOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outcome.TaskOutcome(nil), r.outcomes[userID]...)
}

func newTestService(t *testing.T, repo Repo, opts Options) *Service {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	s, err := NewService(config.Default(), repo, opts)
	require.NoError(t, err)
	return s
}

func addTask(correct bool, strategy outcome.Strategy) outcome.TaskOutcome {
	o := outcome.TaskOutcome{
		Operation:     outcome.OpAdd,
		Operand1:      3,
		Operand2:      4,
		CorrectAnswer: 7,
		StudentAnswer: 7,
		Correct:       true,
		ElapsedMs:     2500,
		Strategy:      strategy,
	}
	if !correct {
		o.StudentAnswer = 8
		o.Correct = false
	}
	return o
}

func submitN(t *testing.T, s *Service, userID string, n int, correct bool) *progression.State {
	t.Helper()
	var st *progression.State
	for i := 0; i < n; i++ {
		var err error
		st, _, err = s.SubmitOutcome(context.Background(), userID, addTask(correct, outcome.StrategyRecall))
		require.NoError(t, err)
	}
	return st
}

func TestSubmitOutcome_FirstAttempt(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	st, tr, err := s.SubmitOutcome(context.Background(), "u1", addTask(true, outcome.StrategyRecall))
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, progression.TriggerFirstAttempt, tr.Trigger)
	assert.Equal(t, 1, st.TotalSolved)
	assert.Equal(t, int64(1), st.Version)

	got := repo.stored("u1")
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID, "missing ID should be assigned")
	assert.Equal(t, fixedNow, got[0].Timestamp)

	_, events, err := s.LevelHistory(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, progression.TriggerFirstAttempt, events[0].Trigger)
}

func TestSubmitOutcome_TagsWrongAnswer(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	o := addTask(false, outcome.StrategyCountingOn)
	o.ID = "given"
	_, _, err := s.SubmitOutcome(context.Background(), "u1", o)
	require.NoError(t, err)

	got := repo.stored("u1")
	require.Len(t, got, 1)
	assert.Equal(t, "given", got[0].ID)
	assert.Equal(t, outcome.ErrorOffByOne, got[0].ErrorType)
}

func TestSubmitOutcome_Rejects(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	bad := addTask(true, outcome.StrategyRecall)
	bad.CorrectAnswer = 8

	_, _, err := s.SubmitOutcome(context.Background(), "u1", bad)
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, _, err = s.SubmitOutcome(context.Background(), "  ", addTask(true, outcome.StrategyRecall))
	assert.ErrorIs(t, err, ErrInvalidUser)

	assert.Empty(t, repo.stored("u1"), "rejected outcomes must not be stored")
}

func TestSubmitOutcome_ConflictReplay(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	repo.conflicts = conflictRetries - 1
	st, _, err := s.SubmitOutcome(context.Background(), "u1", addTask(true, outcome.StrategyRecall))
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalSolved)
	assert.Len(t, repo.stored("u1"), 1)

	repo.conflicts = conflictRetries
	_, _, err = s.SubmitOutcome(context.Background(), "u1", addTask(true, outcome.StrategyRecall))
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Len(t, repo.stored("u1"), 1)
}

func TestSubmitOutcome_MasteryAdvances(t *testing.T) {
	s := newTestService(t, newFakeRepo(), Options{})

	st := submitN(t, s, "u1", 9, true)
	assert.Equal(t, 1, st.CurrentLevel)

	st, tr, err := s.SubmitOutcome(context.Background(), "u1", addTask(true, outcome.StrategyRecall))
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, progression.TriggerMastered, tr.Trigger)
	assert.Equal(t, 2, st.CurrentLevel)
	assert.True(t, st.Record(1).IsMastered())
}

func TestSubmitOutcome_ConcurrentSameLearner(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	const workers, each = 10, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, _, err := s.SubmitOutcome(context.Background(), "shared", addTask(i%2 == 0, outcome.StrategyRecall)); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("submit: %v", err)
	}

	st, err := repo.LoadState(context.Background(), "shared")
	require.NoError(t, err)
	assert.Equal(t, workers*each, st.TotalSolved)
	assert.Len(t, repo.stored("shared"), workers*each)
	assert.Equal(t, 0, s.locks.size())
}

func TestComputeRiskProfile_PersistentCounting(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{})

	for i := 0; i < 15; i++ {
		o := addTask(true, outcome.StrategyCountingOn)
		o.SessionID = fmt.Sprintf("s%d", i%12)
		_, _, err := s.SubmitOutcome(context.Background(), "u1", o)
		require.NoError(t, err)
	}

	p, err := s.ComputeRiskProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, p.Has(risk.CriterionPersistentCounting), "indicators: %+v", p.Indicators)
	assert.GreaterOrEqual(t, p.Level.Rank(), risk.LevelModerate.Rank())
	assert.NotEmpty(t, p.Recommendations)
	assert.Equal(t, "u1", p.UserID)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, fixedNow, p.GeneratedAt)
	assert.Equal(t, 12, p.SessionCount)
	assert.InDelta(t, 0.6, p.Confidence, 1e-9)
}

func TestComputeRiskProfile_NoHistory(t *testing.T) {
	s := newTestService(t, newFakeRepo(), Options{})

	p, err := s.ComputeRiskProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, risk.LevelLow, p.Level)
	assert.Zero(t, p.Confidence)
	assert.Empty(t, p.Indicators)
	assert.Empty(t, p.Recommendations)

	_, err = s.ComputeRiskProfile(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidUser)
}

func TestComputeRiskProfile_CacheInvalidatedByWrites(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{Cache: cache.NewMemory(0)})
	ctx := context.Background()

	submitN(t, s, "u1", 3, true)
	first, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	again, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID, "second read should be served from cache")

	submitN(t, s, "u1", 1, false)
	fresh, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, fresh.ID)
	assert.Equal(t, 4, fresh.SampleSize)

	require.NoError(t, s.SetSkills(ctx, "u1", risk.SkillSnapshot{"counting": 2}))
	afterSkills, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, afterSkills.Has(risk.CriterionWeakPrerequisites))
}

// racingRepo starts a submission for the same learner while the window
// is being read.
type racingRepo struct {
	*fakeRepo
	once   sync.Once
	submit func()
	done   chan struct{}
}

func (r *racingRepo) RecentOutcomes(ctx context.Context, userID string, limit int) ([]outcome.TaskOutcome, error) {
	out, err := r.fakeRepo.RecentOutcomes(ctx, userID, limit)
	r.once.Do(func() {
		go func() {
			defer close(r.done)
			r.submit()
		}()
		time.Sleep(20 * time.Millisecond)
	})
	return out, err
}

func TestComputeRiskProfile_ConcurrentSubmitNotCachedStale(t *testing.T) {
	repo := &racingRepo{fakeRepo: newFakeRepo(), done: make(chan struct{})}
	s := newTestService(t, repo, Options{Cache: cache.NewMemory(0)})
	ctx := context.Background()

	submitN(t, s, "u1", 1, true)
	repo.submit = func() {
		if _, _, err := s.SubmitOutcome(ctx, "u1", addTask(true, outcome.StrategyRecall)); err != nil {
			t.Errorf("concurrent submit: %v", err)
		}
	}

	_, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	<-repo.done

	p, err := s.ComputeRiskProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.SampleSize)
	assert.Len(t, repo.stored("u1"), 2)
}

func TestComputeRiskProfile_RecordReports(t *testing.T) {
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{RecordReports: true})

	p, err := s.ComputeRiskProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, repo.reports["u1"], 1)
	assert.Equal(t, p.ID, repo.reports["u1"][0].ID)
}

type stubNarrator struct {
	n   narrative.Narration
	err error
}

func (s stubNarrator) Narrate(context.Context, *risk.Profile) (narrative.Narration, error) {
	return s.n, s.err
}

func TestNarrate(t *testing.T) {
	ctx := context.Background()
	p := &risk.Profile{UserID: "u1", Level: risk.LevelModerate}

	t.Run("attaches narrative to a copy", func(t *testing.T) {
		s := newTestService(t, newFakeRepo(), Options{
			Narrator: stubNarrator{n: narrative.Narration{Summary: "Counting a lot.", NextStep: "Use dot cards."}},
		})
		got, err := s.Narrate(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, "Counting a lot. Use dot cards.", got.Narrative)
		assert.Empty(t, p.Narrative, "input profile must not be modified")
	})

	t.Run("degrades on failure", func(t *testing.T) {
		s := newTestService(t, newFakeRepo(), Options{Narrator: stubNarrator{err: errors.New("rate limited")}})
		got, err := s.Narrate(ctx, p)
		require.NoError(t, err)
		assert.Empty(t, got.Narrative)
		assert.Equal(t, risk.LevelModerate, got.Level)
	})

	t.Run("not configured", func(t *testing.T) {
		s := newTestService(t, newFakeRepo(), Options{})
		_, err := s.Narrate(ctx, p)
		assert.ErrorIs(t, err, ErrNarrativeUnavailable)
	})
}

func TestSupport(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newFakeRepo(), Options{})
	maxLevel := s.Config().Support.MaxLevel

	st, err := s.ComputeSupportLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxLevel, st.Level, "new learners start with full support")

	st, err = s.RequestSupport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxLevel, st.Level, "support is capped at the maximum")

	submitN(t, s, "u1", s.Config().Support.StreakForSupportDrop, true)
	st, err = s.ComputeSupportLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxLevel-1, st.Level)

	st, err = s.RequestSupport(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, maxLevel, st.Level)
	assert.Zero(t, st.ConsecutiveCorrect)

	persisted, err := s.ComputeSupportLevel(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, st, persisted)
}

func TestResetLevel(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newFakeRepo(), Options{})

	st := submitN(t, s, "u1", 10, true)
	require.Equal(t, 2, st.CurrentLevel)

	_, _, err := s.ResetLevel(ctx, "u1", 5)
	assert.ErrorIs(t, err, progression.ErrInvalidState)

	st, tr, err := s.ResetLevel(ctx, "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentLevel)
	assert.Equal(t, progression.TriggerAdminReset, tr.Trigger)
	assert.Equal(t, 2, tr.From)

	_, events, err := s.LevelHistory(ctx, "u1")
	require.NoError(t, err)
	var triggers []progression.Trigger
	for _, e := range events {
		triggers = append(triggers, e.Trigger)
	}
	assert.Equal(t, []progression.Trigger{
		progression.TriggerFirstAttempt, progression.TriggerMastered, progression.TriggerAdminReset,
	}, triggers)
}

func TestSetSkills_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, newFakeRepo(), Options{})

	tests := []struct {
		name   string
		skills risk.SkillSnapshot
	}{
		{"above max", risk.SkillSnapshot{"counting": 11}},
		{"negative", risk.SkillSnapshot{"counting": -1}},
		{"empty name", risk.SkillSnapshot{"": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, s.SetSkills(ctx, "u1", tt.skills), ErrInvalidSkills)
		})
	}
	assert.NoError(t, s.SetSkills(ctx, "u1", risk.SkillSnapshot{"counting": 10, "subitizing": 0}))
}

func TestBatchRiskProfiles(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	s := newTestService(t, repo, Options{BatchConcurrency: 2})

	submitN(t, s, "b", 2, true)
	submitN(t, s, "a", 3, false)
	repo.broken["bad"] = true

	results, err := s.BatchRiskProfiles(ctx, []string{"b", "bad", "a"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "b", results[0].UserID)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 2, results[0].Profile.SampleSize)
	assert.Equal(t, "bad", results[1].UserID)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Profile)
	assert.Equal(t, 3, results[2].Profile.SampleSize)

	all, err := s.BatchRiskProfiles(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].UserID)
	assert.Equal(t, "b", all[1].UserID)
}

func TestBatchRiskProfiles_Cancelled(t *testing.T) {
	s := newTestService(t, newFakeRepo(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.BatchRiskProfiles(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewService_RejectsBadConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Progression.MasteryThreshold = 1.5
	_, err := NewService(cfg, newFakeRepo(), Options{})
	assert.Error(t, err)

	_, err = NewService(config.Default(), nil, Options{})
	assert.Error(t, err)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	var (
		wg      sync.WaitGroup
		counter int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("x")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, k.size())

	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Equal(t, 0, k.size())
}
