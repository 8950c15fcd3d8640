package correlate

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/pkg/models"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l.WithField("component", "test")
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestResolveWorkdirMatchWins(t *testing.T) {
	// One candidate matches by working directory, another only by start
	// time. The workdir match must win regardless of candidate order.
	byWD := models.ProcessIdentity{PID: 200, WorkingDirectory: "/home/u/proj", StartTime: t0.Add(-5 * time.Minute)}
	byStart := models.ProcessIdentity{PID: 100, WorkingDirectory: "/home/u/other", StartTime: t0}

	for name, candidates := range map[string][]models.ProcessIdentity{
		"wd candidate first": {byWD, byStart},
		"wd candidate last":  {byStart, byWD},
	} {
		t.Run(name, func(t *testing.T) {
			c := New(testLogger())
			ev := Evidence{SessionID: "s1", WorkingDirectory: "/home/u/proj"}
			m, err := c.Resolve(ev, candidates, t0)
			require.NoError(t, err)
			assert.Equal(t, 200, m.PID)
			assert.Equal(t, MethodWorkdir, m.Method)
			assert.Equal(t, 0.95, m.Confidence)
		})
	}
}

func TestResolveStability(t *testing.T) {
	c := New(testLogger())
	candidates := []models.ProcessIdentity{
		{PID: 100, WorkingDirectory: "/home/u/a"},
		{PID: 200, WorkingDirectory: "/home/u/b"},
	}

	first, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/a"}, candidates, t0)
	require.NoError(t, err)
	assert.Equal(t, 100, first.PID)

	// Stronger evidence for a different pid arrives later; the mapping
	// must not move while pid 100 is live.
	again, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/b"}, candidates, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 100, again.PID)
	assert.Equal(t, first.EstablishedAt, again.EstablishedAt)
}

func TestResolveStalePidYieldsMiss(t *testing.T) {
	c := New(testLogger())
	candidates := []models.ProcessIdentity{{PID: 100, WorkingDirectory: "/home/u/a"}}

	_, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/a"}, candidates, t0)
	require.NoError(t, err)

	// pid 100 dies; a later event for the same session id must not reuse
	// the stale pid.
	_, err = c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/a"}, nil, t0.Add(time.Minute))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeCorrelationMiss))
	assert.Nil(t, c.Mapping("s1"))
}

func TestResolveFirstWriterWins(t *testing.T) {
	c := New(testLogger())
	candidates := []models.ProcessIdentity{
		{PID: 100, WorkingDirectory: "/home/u/proj"},
		{PID: 200, WorkingDirectory: "/tmp/elsewhere"},
	}

	m1, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/proj"}, candidates, t0)
	require.NoError(t, err)
	assert.Equal(t, 100, m1.PID)

	// Second session wants the same pid; it falls through to the
	// remaining unmapped candidate.
	m2, err := c.Resolve(Evidence{SessionID: "s2", WorkingDirectory: "/home/u/proj"}, candidates, t0)
	require.NoError(t, err)
	assert.Equal(t, 200, m2.PID)
	assert.Equal(t, MethodFallback, m2.Method)
	assert.Equal(t, FallbackConfidence, m2.Confidence)
}

func TestResolveFallbackLowestPid(t *testing.T) {
	c := New(testLogger())
	// No signal anywhere: no working directories, no start times.
	candidates := []models.ProcessIdentity{{PID: 300}, {PID: 100}, {PID: 200}}

	m, err := c.Resolve(Evidence{SessionID: "s1"}, candidates, t0)
	require.NoError(t, err)
	assert.Equal(t, 100, m.PID)
	assert.Equal(t, MethodFallback, m.Method)
}

func TestResolveNoCandidates(t *testing.T) {
	c := New(testLogger())
	_, err := c.Resolve(Evidence{SessionID: "s1"}, nil, t0)
	assert.True(t, errors.Is(err, errors.ErrCodeCorrelationMiss))
}

func TestResolveStartTimeWindow(t *testing.T) {
	c := New(testLogger())
	candidates := []models.ProcessIdentity{
		{PID: 100, StartTime: t0.Add(-2 * time.Second)},
		{PID: 200, StartTime: t0.Add(-10 * time.Minute)},
	}

	m, err := c.Resolve(Evidence{SessionID: "s1"}, candidates, t0)
	require.NoError(t, err)
	assert.Equal(t, 100, m.PID)
	assert.Equal(t, MethodStartTime, m.Method)
	assert.Greater(t, m.Confidence, 0.5)
	assert.LessOrEqual(t, m.Confidence, 0.9)
}

func TestFirstObservedPinned(t *testing.T) {
	c := New(testLogger())

	// The session id is first seen at t0 with no candidates available.
	_, err := c.Resolve(Evidence{SessionID: "s1"}, nil, t0)
	require.Error(t, err)

	// A process started near t0 shows up much later; start-time scoring
	// must use the original observation time, not the retry time.
	candidates := []models.ProcessIdentity{{PID: 100, StartTime: t0.Add(-time.Second)}}
	m, err := c.Resolve(Evidence{SessionID: "s1"}, candidates, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, MethodStartTime, m.Method)
}

func TestReleaseDead(t *testing.T) {
	c := New(testLogger())
	candidates := []models.ProcessIdentity{
		{PID: 100, WorkingDirectory: "/home/u/a"},
		{PID: 200, WorkingDirectory: "/home/u/b"},
	}
	_, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/a"}, candidates, t0)
	require.NoError(t, err)
	_, err = c.Resolve(Evidence{SessionID: "s2", WorkingDirectory: "/home/u/b"}, candidates, t0)
	require.NoError(t, err)

	released := c.ReleaseDead(map[int]bool{200: true})
	assert.Equal(t, []string{"s1"}, released)
	assert.Nil(t, c.Mapping("s1"))
	require.NotNil(t, c.Mapping("s2"))

	_, ok := c.SessionFor(100)
	assert.False(t, ok)
}

func TestAdoptByWorkingDirectory(t *testing.T) {
	c := New(testLogger())
	old := []models.ProcessIdentity{{PID: 100, WorkingDirectory: "/home/u/proj"}}

	_, err := c.Resolve(Evidence{SessionID: "s1", WorkingDirectory: "/home/u/proj"}, old, t0)
	require.NoError(t, err)

	// The original process dies and a new one appears in the same
	// working directory with no accompanying hook event.
	c.ReleaseDead(map[int]bool{})
	fresh := []models.ProcessIdentity{{PID: 300, WorkingDirectory: "/home/u/proj"}}

	adopted := c.AdoptByWorkingDirectory(fresh, t0.Add(time.Minute))
	require.Len(t, adopted, 1)
	assert.Equal(t, "s1", adopted[0].SessionID)
	assert.Equal(t, 300, adopted[0].PID)
	assert.Equal(t, MethodWorkdir, adopted[0].Method)

	// Adoption carries the same confidence a direct workdir match scores.
	score := workdirScorer{}.Score(fresh[0], Evidence{WorkingDirectory: "/home/u/proj"})
	assert.Equal(t, score, adopted[0].Confidence)

	// Mapped sessions are not re-adopted.
	assert.Empty(t, c.AdoptByWorkingDirectory(fresh, t0.Add(2*time.Minute)))
}
