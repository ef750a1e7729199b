package evolution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct {
	saves   atomic.Int32
	saveErr error
	loadErr error
	record  *BestSolutionRecord
}

func (s *stubStore) Save(_ context.Context, r *BestSolutionRecord) error {
	s.saves.Add(1)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.record = r
	return nil
}

func (s *stubStore) Load(context.Context) (*BestSolutionRecord, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.record == nil {
		return nil, ErrNotFound
	}
	return s.record, nil
}

func newTestService(store Store, scorer Scorer) *Service {
	defaults := DefaultConfig()
	defaults.Seed = 42
	return NewService(store, scorer, defaults)
}

func TestService_GetBestBeforeRun(t *testing.T) {
	svc := newTestService(NewMemoryStore(), constantScorer(0.5))

	record, err := svc.GetBest(context.Background())
	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "no evolved strategy found")
}

func TestService_RunPersistsBest(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, constantScorer(0.5))
	obs := &recordingObserver{}
	svc.AddObserver(obs)

	record, err := svc.Run(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, 0.5, record.Fitness)
	assert.Equal(t, RecordSchemaVersion, record.SchemaVersion)
	assert.NotEmpty(t, record.RunID)
	assert.Equal(t, 1, record.Generations)
	assert.Equal(t, 5, record.PopSize)
	assert.Len(t, record.GenerationStats, 2)
	assert.Len(t, record.Genes, NumGenes)
	assert.GreaterOrEqual(t, record.DecodedStrategy.MACDSlow, record.DecodedStrategy.MACDFast)

	genes, err := ParseGeneVector(record.Genes)
	require.NoError(t, err)
	assert.Equal(t, Decode(genes), record.DecodedStrategy)

	best, err := svc.GetBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, record.RunID, best.RunID)
	assert.Equal(t, record.DecodedStrategy, best.DecodedStrategy)

	require.Len(t, obs.records, 1)
	assert.Equal(t, record.RunID, obs.records[0].RunID)
	assert.Len(t, obs.reports, 2)
}

func TestService_LastRunWins(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, constantScorer(0.9))

	first, err := svc.Run(context.Background(), 1, 4)
	require.NoError(t, err)

	second, err := svc.Run(context.Background(), 2, 3)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	best, err := svc.GetBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, second.RunID, best.RunID)
	assert.Equal(t, 3, best.PopSize)
}

// runOverlapObserver tracks runs that reported a generation but have not
// completed yet
type runOverlapObserver struct {
	mu            sync.Mutex
	open          map[string]bool
	maxOpen       int
	lastCompleted string
}

func (o *runOverlapObserver) GenerationCompleted(_ context.Context, r GenerationReport) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open[r.RunID] = true
	o.maxOpen = max(o.maxOpen, len(o.open))
}

func (o *runOverlapObserver) RunCompleted(_ context.Context, r *BestSolutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.open, r.RunID)
	o.lastCompleted = r.RunID
}

func TestService_ConcurrentRunsAreSerialized(t *testing.T) {
	var activeEvals, maxEvals atomic.Int32
	scorer := ScorerFunc(func(context.Context, DecodedStrategy) (float64, error) {
		n := activeEvals.Add(1)
		defer activeEvals.Add(-1)
		for {
			cur := maxEvals.Load()
			if n <= cur || maxEvals.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return 0.5, nil
	})

	store := NewMemoryStore()
	svc := newTestService(store, scorer)
	obs := &runOverlapObserver{open: make(map[string]bool)}
	svc.AddObserver(obs)

	const runs = 4
	records := make([]*BestSolutionRecord, runs)
	errs := make([]error, runs)

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = svc.Run(context.Background(), 3, 6)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool)
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, records[i])
		ids[records[i].RunID] = true
	}
	assert.Len(t, ids, runs)

	assert.Equal(t, 1, obs.maxOpen)
	assert.Empty(t, obs.open)
	// One engine's workers at most
	assert.LessOrEqual(t, maxEvals.Load(), int32(svc.Defaults().Workers))

	best, err := svc.GetBest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, obs.lastCompleted, best.RunID)
}

func TestService_InvalidConfigurationDoesNotTouchStore(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, constantScorer(0.5))

	_, err := svc.Run(context.Background(), 10, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, int32(0), store.saves.Load())

	_, err = svc.Run(context.Background(), 0, 10)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, int32(0), store.saves.Load())
}

func TestService_FailingScorerStillCompletes(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, ScorerFunc(func(context.Context, DecodedStrategy) (float64, error) {
		return 0, errors.New("exchange offline")
	}))

	record, err := svc.Run(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, record.Fitness)

	for _, s := range record.GenerationStats {
		assert.Equal(t, s.Evaluations, s.Failures)
	}
}

func TestService_PersistenceFailure(t *testing.T) {
	store := &stubStore{saveErr: errors.New("disk full")}
	svc := newTestService(store, constantScorer(0.5))

	record, err := svc.Run(context.Background(), 1, 5)
	assert.Nil(t, record)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, int32(1), store.saves.Load())
}

func TestService_LoadFailure(t *testing.T) {
	store := &stubStore{loadErr: errors.New("connection refused")}
	svc := newTestService(store, constantScorer(0.5))

	_, err := svc.GetBest(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestService_IncompatibleRecord(t *testing.T) {
	store := &stubStore{record: &BestSolutionRecord{SchemaVersion: "2.0.0"}}
	svc := newTestService(store, constantScorer(0.5))

	_, err := svc.GetBest(context.Background())
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestService_CancelledRunPersistsNothing(t *testing.T) {
	store := &stubStore{}
	svc := newTestService(store, constantScorer(0.5))

	ctx, cancel := context.WithCancel(context.Background())
	svc.AddObserver(&recordingObserver{onGen: func(GenerationReport) { cancel() }})

	_, err := svc.Run(ctx, 5, 5)
	assert.ErrorIs(t, err, ErrRunCancelled)
	assert.Equal(t, int32(0), store.saves.Load())
}
