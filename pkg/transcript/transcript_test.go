package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestUsageSummation(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assistant","model":"claude-sonnet-4","usage":{"input_tokens":100,"output_tokens":50,"cache_read_input_tokens":400}}}`,
		`{"type":"assistant","message":{"role":"assistant","usage":{"input_tokens":20,"output_tokens":5,"cache_creation_input_tokens":30}}}`,
	)

	s := NewStore(nil)
	u, err := s.Usage(path)
	require.NoError(t, err)

	assert.Equal(t, int64(120), u.InputTokens)
	assert.Equal(t, int64(55), u.OutputTokens)
	// cache sub-counts are tracked separately, never in the totals
	assert.Equal(t, int64(400), u.CacheReadTokens)
	assert.Equal(t, int64(30), u.CacheCreationTokens)
	assert.Equal(t, "claude-sonnet-4", u.Model)

	rate := DefaultRates().For(u.Model)
	want := 120.0/1e6*rate.InputPerMTok + 55.0/1e6*rate.OutputPerMTok
	assert.InDelta(t, want, s.Cost(u), 1e-12)
}

func TestTaskDescriptionPrefersSummary(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"please fix the login bug"}}`,
		`{"type":"summary","summary":"Fixing login redirect loop"}`,
	)

	s := NewStore(nil)
	task, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "Fixing login redirect loop", task)
}

func TestTaskDescriptionFallsBackToUserMessage(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"first request"}}`,
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"  refactor   the <system-reminder>x</system-reminder> parser  "}]}}`,
	)

	s := NewStore(nil)
	task, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "refactor the x parser", task)
}

func TestTaskDescriptionTruncated(t *testing.T) {
	long := strings.Repeat("word ", 40)
	path := writeTranscript(t,
		`{"type":"summary","summary":"`+long+`"}`,
	)

	s := NewStore(nil)
	task, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(task)), maxTaskLength+1)
	assert.True(t, strings.HasSuffix(task, "…"))
}

func TestMetadataRecord(t *testing.T) {
	path := writeTranscript(t,
		`{"sessionId":"S9","cwd":"/home/dev/project"}`,
		`{"type":"summary","summary":"touching up docs"}`,
	)

	s := NewStore(nil)
	e, err := s.Lookup(path)
	require.NoError(t, err)
	assert.Equal(t, "S9", e.SessionID)
	assert.Equal(t, "/home/dev/project", e.Cwd)
}

func TestUnparsableRecordsAreSkipped(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"summary","summary":"good record"}`,
		`{this is not json`,
		`{"type":"assistant","message":{"role":"assistant","usage":{"input_tokens":7,"output_tokens":3}}}`,
	)

	s := NewStore(nil)
	e, err := s.Lookup(path)
	require.NoError(t, err)
	assert.Equal(t, "good record", e.TaskDescription)
	assert.Equal(t, int64(7), e.Usage.InputTokens)
}

func TestCachePersistsUntilClear(t *testing.T) {
	path := writeTranscript(t, `{"type":"summary","summary":"before"}`)

	s := NewStore(nil)
	first, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "before", first)

	// Rewrite the file; the cached entry must still be served.
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"summary","summary":"after"}`+"\n"), 0644))
	second, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "before", second)

	// After an explicit clear the next call re-parses.
	s.Clear()
	third, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "after", third)
}

func TestInvalidateSingleEntry(t *testing.T) {
	path := writeTranscript(t, `{"type":"summary","summary":"v1"}`)

	s := NewStore(nil)
	_, err := s.Lookup(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"type":"summary","summary":"v2"}`+"\n"), 0644))
	s.Invalidate(path)

	task, err := s.TaskDescription(path)
	require.NoError(t, err)
	assert.Equal(t, "v2", task)
}

func TestMissingTranscript(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Lookup(filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
