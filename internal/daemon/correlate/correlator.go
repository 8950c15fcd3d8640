// Package correlate binds logical session ids to discovered OS processes.
//
// The two streams share no common key, so binding is heuristic: each
// candidate process is scored by a set of independent signals and the
// single best score wins. Once established, a mapping is stable for as
// long as its pid stays live, regardless of later evidence.
package correlate

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/pkg/models"
)

// FallbackConfidence is assigned when no signal matched and an arbitrary
// unmapped candidate is chosen instead of reporting a miss.
const FallbackConfidence = 0.1

// Correlator owns the session-id to pid mapping table. It is not
// thread-safe: all calls must come from the engine's single consumer
// goroutine.
type Correlator struct {
	logger  *logrus.Entry
	scorers []SignalScorer

	mappings  map[string]*models.SessionMapping // by logical session id
	byPid     map[int]string                    // pid -> logical session id
	firstSeen map[string]time.Time              // session id -> first observation
	wdIndex   map[string]string                 // normalized working directory -> session id
}

// New creates a Correlator with the default signal scorers.
func New(logger *logrus.Entry) *Correlator {
	return &Correlator{
		logger:    logger,
		scorers:   defaultScorers(),
		mappings:  make(map[string]*models.SessionMapping),
		byPid:     make(map[int]string),
		firstSeen: make(map[string]time.Time),
		wdIndex:   make(map[string]string),
	}
}

// Resolve binds the session id in ev to a candidate pid, or returns the
// existing mapping when one is still live. Candidates must be the current
// process table. Returns a CorrelationMiss error when no unmapped
// candidate exists.
func (c *Correlator) Resolve(ev Evidence, candidates []models.ProcessIdentity, now time.Time) (*models.SessionMapping, error) {
	if _, ok := c.firstSeen[ev.SessionID]; !ok {
		c.firstSeen[ev.SessionID] = now
	}
	ev.FirstObserved = c.firstSeen[ev.SessionID]

	live := make(map[int]bool, len(candidates))
	for _, cand := range candidates {
		live[cand.PID] = true
	}

	// Stability: an existing mapping with a live pid is returned
	// unchanged, whatever new evidence says.
	if m, ok := c.mappings[ev.SessionID]; ok {
		if live[m.PID] {
			return m, nil
		}
		c.release(ev.SessionID)
	}

	// Candidates already claimed by another live session id are off the
	// table: at most one session id per pid, first writer wins.
	open := make([]models.ProcessIdentity, 0, len(candidates))
	for _, cand := range candidates {
		if _, claimed := c.byPid[cand.PID]; !claimed {
			open = append(open, cand)
		}
	}
	if len(open) == 0 {
		return nil, errors.CorrelationMiss(ev.SessionID)
	}

	var (
		bestScore  float64
		bestMethod string
		bestCand   models.ProcessIdentity
	)
	for _, cand := range open {
		for _, scorer := range c.scorers {
			score := scorer.Score(cand, ev)
			if score > bestScore || (score == bestScore && score > 0 && cand.PID < bestCand.PID) {
				bestScore = score
				bestMethod = scorer.Method()
				bestCand = cand
			}
		}
	}

	if bestScore <= 0 {
		// No signal at all. Favor liveness over a miss: take the lowest
		// unmapped pid at an explicit low confidence.
		sort.Slice(open, func(i, j int) bool { return open[i].PID < open[j].PID })
		bestCand = open[0]
		bestScore = FallbackConfidence
		bestMethod = MethodFallback
		c.logger.WithFields(logrus.Fields{
			"session_id": ev.SessionID,
			"pid":        bestCand.PID,
		}).Debug("No correlation signal, using fallback candidate")
	}

	return c.establish(ev.SessionID, bestCand, bestScore, bestMethod, now), nil
}

// AdoptByWorkingDirectory lets a discovery-only scan re-bind known
// session ids to new processes: any unmapped candidate whose working
// directory was previously associated with a currently-unmapped session
// id is adopted at working-directory confidence.
func (c *Correlator) AdoptByWorkingDirectory(candidates []models.ProcessIdentity, now time.Time) []*models.SessionMapping {
	var adopted []*models.SessionMapping
	for _, cand := range candidates {
		if _, claimed := c.byPid[cand.PID]; claimed {
			continue
		}
		if cand.WorkingDirectory == "" {
			continue
		}
		sessionID, ok := c.wdIndex[normalizeDir(cand.WorkingDirectory)]
		if !ok {
			continue
		}
		if _, mapped := c.mappings[sessionID]; mapped {
			continue
		}
		adopted = append(adopted, c.establish(sessionID, cand, workdirConfidence, MethodWorkdir, now))
	}
	return adopted
}

// ReleaseDead drops every mapping whose pid is absent from the live set.
// Returns the released session ids.
func (c *Correlator) ReleaseDead(livePids map[int]bool) []string {
	var released []string
	for sessionID, m := range c.mappings {
		if !livePids[m.PID] {
			c.release(sessionID)
			released = append(released, sessionID)
		}
	}
	return released
}

// Mapping returns the current mapping for a session id, or nil.
func (c *Correlator) Mapping(sessionID string) *models.SessionMapping {
	return c.mappings[sessionID]
}

// SessionFor returns the session id mapped to a pid, if any.
func (c *Correlator) SessionFor(pid int) (string, bool) {
	id, ok := c.byPid[pid]
	return id, ok
}

func (c *Correlator) establish(sessionID string, cand models.ProcessIdentity, confidence float64, method string, now time.Time) *models.SessionMapping {
	m := &models.SessionMapping{
		SessionID:     sessionID,
		PID:           cand.PID,
		Confidence:    confidence,
		Method:        method,
		EstablishedAt: now,
	}
	c.mappings[sessionID] = m
	c.byPid[cand.PID] = sessionID
	if cand.WorkingDirectory != "" {
		c.wdIndex[normalizeDir(cand.WorkingDirectory)] = sessionID
	}
	c.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"pid":        cand.PID,
		"method":     method,
		"confidence": confidence,
	}).Info("Session mapped")
	return m
}

func (c *Correlator) release(sessionID string) {
	if m, ok := c.mappings[sessionID]; ok {
		delete(c.byPid, m.PID)
		delete(c.mappings, sessionID)
	}
}
