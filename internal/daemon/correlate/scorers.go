package correlate

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/grovetools/canopy/pkg/models"
	"github.com/grovetools/canopy/util/pathutil"
)

// Evidence is everything known about a logical session id at resolution
// time, gathered from the hook event and the transcript.
type Evidence struct {
	SessionID        string
	TranscriptPath   string
	WorkingDirectory string    // from the transcript's metadata record, may be empty
	FirstObserved    time.Time // when this session id was first seen by the daemon
}

// SignalScorer scores one candidate process against session evidence.
// Scorers are pure: they read their inputs and return a confidence in
// [0,1], zero meaning "no signal".
type SignalScorer interface {
	Method() string
	Score(cand models.ProcessIdentity, ev Evidence) float64
}

const (
	MethodWorkdir   = "workdir"
	MethodStartTime = "start_time"
	MethodLabel     = "label"
	MethodFallback  = "fallback"
)

// workdirConfidence is assigned wherever a working-directory match
// binds a session, both at scoring time and on wd-index adoption.
const workdirConfidence = 0.95

// workdirScorer matches the transcript's recorded working directory
// against the candidate's. An exact match after normalization is the
// strongest signal available.
type workdirScorer struct{}

func (workdirScorer) Method() string { return MethodWorkdir }

func (workdirScorer) Score(cand models.ProcessIdentity, ev Evidence) float64 {
	if ev.WorkingDirectory == "" || cand.WorkingDirectory == "" {
		return 0
	}
	if normalizeDir(ev.WorkingDirectory) == normalizeDir(cand.WorkingDirectory) {
		return workdirConfidence
	}
	return 0
}

const startTimeWindow = 30 * time.Second

// startTimeScorer correlates when the session id was first observed with
// the candidate's process start time. Confidence decays linearly from 0.9
// to a 0.5 floor across the window; candidates outside it are excluded.
type startTimeScorer struct{}

func (startTimeScorer) Method() string { return MethodStartTime }

func (startTimeScorer) Score(cand models.ProcessIdentity, ev Evidence) float64 {
	if cand.StartTime.IsZero() || ev.FirstObserved.IsZero() {
		return 0
	}
	delta := ev.FirstObserved.Sub(cand.StartTime)
	if delta < 0 {
		delta = -delta
	}
	if delta > startTimeWindow {
		return 0
	}
	frac := float64(delta) / float64(startTimeWindow)
	return 0.9 - frac*(0.9-0.5)
}

// labelScorer compares a label derived from the transcript path against
// the candidate's working-directory basename. Labels are fuzzy, so the
// result is scaled down relative to the other signals.
type labelScorer struct {
	sim Similarity
}

func (labelScorer) Method() string { return MethodLabel }

func (s labelScorer) Score(cand models.ProcessIdentity, ev Evidence) float64 {
	evLabel := transcriptLabel(ev.TranscriptPath)
	candLabel := candidateLabel(cand)
	if evLabel == "" || candLabel == "" {
		return 0
	}
	return s.sim.Score(evLabel, candLabel) * 0.7
}

// transcriptLabel derives a session label from the transcript file name,
// stripped of its extension.
func transcriptLabel(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// candidateLabel derives a label for a discovered process from its
// working directory.
func candidateLabel(cand models.ProcessIdentity) string {
	if cand.WorkingDirectory == "" {
		return ""
	}
	return filepath.Base(cand.WorkingDirectory)
}

// normalizeDir canonicalizes a directory so paths from different
// sources compare equal.
func normalizeDir(dir string) string {
	return pathutil.NormalizeForLookup(dir)
}

func defaultScorers() []SignalScorer {
	return []SignalScorer{
		workdirScorer{},
		startTimeScorer{},
		labelScorer{sim: OverlapSimilarity{}},
	}
}
