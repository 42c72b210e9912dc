package bootstrap

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gocure/adapters/rng"
	"gocure/domain/cure"
	"gocure/domain/dataset"
	"gocure/domain/formula"
	"gocure/internal/bridge"
	"gocure/internal/design"
	"gocure/internal/testkit"
	"gocure/ports"
)

func combinedFixture(t *testing.T, n int, seed int64) *dataset.Combined {
	t.Helper()
	ds := testkit.SyntheticCureData(testkit.DefaultCureDataConfig(n, seed))
	survSpec := formula.MustParse("Surv(time, status) ~ age + group")
	cureSpec := formula.MustParse("~ age + group")

	outcome, err := design.Outcome(survSpec, ds)
	require.NoError(t, err)
	survMat, err := design.Predictors(survSpec, ds)
	require.NoError(t, err)
	cureMat, err := design.Predictors(cureSpec, ds)
	require.NoError(t, err)

	combined, err := bridge.Combine(outcome, survMat, cureMat)
	require.NoError(t, err)
	return combined
}

func pointFit(t *testing.T, data *dataset.Combined) *cure.RawFit {
	t.Helper()
	fit, err := (&testkit.FakeFitEngine{}).Fit(context.Background(), ports.FitRequest{
		SurvivalFormula: data.SurvivalFormula,
		CureFormula:     data.CureFormula,
		Data:            data,
	})
	require.NoError(t, err)
	return fit
}

func TestRun_ZeroReplicatesIsUndefined(t *testing.T) {
	data := combinedFixture(t, 60, 1)
	point := pointFit(t, data)
	engine := NewEngine(&testkit.FakeFitEngine{}, rng.NewAdapter())

	inf, err := engine.Run(context.Background(), data, point, Config{Replicates: 0, Seed: 7})
	require.NoError(t, err)

	assert.Equal(t, 0, inf.Requested)
	assert.Empty(t, inf.Replicates)
	require.Len(t, inf.Survival, len(point.Beta.Names))
	for _, s := range inf.Survival {
		assert.False(t, s.Defined(), "term %s should be undefined", s.Term)
		assert.True(t, math.IsNaN(s.StdErr))
		assert.True(t, math.IsNaN(s.P))
	}
}

func TestRun_AggregatesConvergedReplicates(t *testing.T) {
	data := combinedFixture(t, 120, 2)
	point := pointFit(t, data)
	engine := NewEngine(&testkit.FakeFitEngine{}, rng.NewAdapter())

	inf, err := engine.Run(context.Background(), data, point, Config{
		Replicates: 40, Seed: 7, Workers: 4,
	})
	require.NoError(t, err)

	assert.Equal(t, 40, inf.Requested)
	assert.Equal(t, 40, inf.Converged)
	assert.Equal(t, 0, inf.Failed)

	require.Equal(t, len(point.Beta.Names), len(inf.Survival))
	for _, s := range inf.Survival {
		require.True(t, s.Defined(), "term %s", s.Term)
		assert.GreaterOrEqual(t, s.Variance, 0.0)
		assert.InDelta(t, math.Sqrt(s.Variance), s.StdErr, 1e-12)
		assert.GreaterOrEqual(t, s.P, 0.0)
		assert.LessOrEqual(t, s.P, 1.0)
		assert.Equal(t, 40, s.Converged)
	}
}

func TestRun_Deterministic(t *testing.T) {
	data := combinedFixture(t, 80, 3)
	point := pointFit(t, data)
	engine := NewEngine(&testkit.FakeFitEngine{}, rng.NewAdapter())
	cfg := Config{Replicates: 20, Seed: 11, Workers: 4}

	a, err := engine.Run(context.Background(), data, point, cfg)
	require.NoError(t, err)
	b, err := engine.Run(context.Background(), data, point, cfg)
	require.NoError(t, err)

	for i := range a.Survival {
		assert.Equal(t, a.Survival[i].Variance, b.Survival[i].Variance,
			"term %s", a.Survival[i].Term)
	}
	for i := range a.Cure {
		assert.Equal(t, a.Cure[i].Variance, b.Cure[i].Variance,
			"term %s", a.Cure[i].Term)
	}
}

// recordingEngine captures per-replicate stratum sizes.
type recordingEngine struct {
	inner ports.FitEngine
	mu    sync.Mutex
	rows  []int
	event []int
}

func (r *recordingEngine) Fit(ctx context.Context, req ports.FitRequest) (*cure.RawFit, error) {
	events := 0
	for _, d := range req.Data.Status() {
		if d != 0 {
			events++
		}
	}
	r.mu.Lock()
	r.rows = append(r.rows, req.Data.Rows())
	r.event = append(r.event, events)
	r.mu.Unlock()
	return r.inner.Fit(ctx, req)
}

func TestRun_PreservesStratumSizes(t *testing.T) {
	data := combinedFixture(t, 100, 4)
	point := pointFit(t, data)

	wantEvents := 0
	for _, d := range data.Status() {
		if d != 0 {
			wantEvents++
		}
	}

	rec := &recordingEngine{inner: &testkit.FakeFitEngine{}}
	engine := NewEngine(rec, rng.NewAdapter())
	_, err := engine.Run(context.Background(), data, point, Config{
		Replicates: 15, Seed: 5, Workers: 3,
	})
	require.NoError(t, err)

	require.Len(t, rec.rows, 15)
	for i := range rec.rows {
		assert.Equal(t, data.Rows(), rec.rows[i], "replicate %d row count", i)
		assert.Equal(t, wantEvents, rec.event[i], "replicate %d event count", i)
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	data := combinedFixture(t, 100, 6)
	point := pointFit(t, data)

	flaky := &testkit.FlakyFitEngine{Inner: &testkit.FakeFitEngine{}, FailEvery: 5}
	engine := NewEngine(flaky, rng.NewAdapter())

	inf, err := engine.Run(context.Background(), data, point, Config{
		Replicates: 50, Seed: 9, Workers: 4,
	})
	require.NoError(t, err, "a failing replicate must never fail the run")

	assert.Equal(t, 10, inf.Failed)
	assert.Equal(t, 40, inf.Converged)
	assert.Equal(t, inf.Requested, inf.Failed+inf.Converged)

	// Statistics come from the converged replicates only.
	for _, s := range inf.Survival {
		require.True(t, s.Defined(), "term %s", s.Term)
		assert.Equal(t, 40, s.Converged)
	}
}

func TestRun_AllReplicatesFailing(t *testing.T) {
	data := combinedFixture(t, 60, 8)
	point := pointFit(t, data)
	engine := NewEngine(&testkit.FailingFitEngine{}, rng.NewAdapter())

	inf, err := engine.Run(context.Background(), data, point, Config{
		Replicates: 10, Seed: 3, Workers: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, inf.Failed)
	assert.Equal(t, 0, inf.Converged)
	for _, s := range append(inf.Survival, inf.Cure...) {
		assert.False(t, s.Defined(), "term %s should be undefined", s.Term)
	}
}

func TestZAndP(t *testing.T) {
	t.Run("zero over zero", func(t *testing.T) {
		z, p := zAndP(0, 0)
		assert.Equal(t, 0.0, z)
		assert.Equal(t, 1.0, p)
	})
	t.Run("nonzero over zero", func(t *testing.T) {
		z, p := zAndP(1.5, 0)
		assert.True(t, math.IsInf(z, 1))
		assert.Equal(t, 0.0, p)
	})
	t.Run("symmetric", func(t *testing.T) {
		_, pPos := zAndP(2, 1)
		_, pNeg := zAndP(-2, 1)
		assert.InDelta(t, pPos, pNeg, 1e-12)
		assert.Greater(t, pPos, 0.0)
		assert.Less(t, pPos, 1.0)
	})
	t.Run("null estimate", func(t *testing.T) {
		z, p := zAndP(0, 1)
		assert.Equal(t, 0.0, z)
		assert.Equal(t, 1.0, p)
	})
}
