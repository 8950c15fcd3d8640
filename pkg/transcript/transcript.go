// Package transcript reads append-only per-session JSONL logs and
// extracts task labels, token usage and the detected model. Results
// are cached by transcript file path; a logical session id is never a
// cache key because ids can be ambiguous or reused.
package transcript

import (
	"bufio"
	"encoding/json"
	"os"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/logging"
	"github.com/sirupsen/logrus"
)

// maxTaskLength bounds the published task description.
const maxTaskLength = 80

// lines in agent transcripts can carry whole file contents
const maxLineBytes = 1024 * 1024

// Usage holds token totals summed across one transcript file.
// Cache sub-counts are tracked but excluded from the totals, matching
// the external accounting convention.
type Usage struct {
	InputTokens         int64  `json:"input_tokens"`
	OutputTokens        int64  `json:"output_tokens"`
	CacheCreationTokens int64  `json:"cache_creation_tokens"`
	CacheReadTokens     int64  `json:"cache_read_tokens"`
	Model               string `json:"model,omitempty"`
}

// Entry is everything extracted from one transcript file.
type Entry struct {
	TaskDescription string `json:"task_description"`
	Usage           Usage  `json:"usage"`
	SessionID       string `json:"session_id,omitempty"`
	Cwd             string `json:"cwd,omitempty"`
}

// Store parses transcripts and caches results by absolute path.
// Entries persist until an explicit Invalidate or Clear; refresh is
// on-demand, so staleness is an accepted tradeoff, not an error.
type Store struct {
	mu     sync.Mutex
	cache  map[string]*Entry
	rates  RateTable
	logger *logrus.Entry
}

// NewStore creates a Store with the given pricing table. A nil table
// falls back to DefaultRates.
func NewStore(rates RateTable) *Store {
	if rates == nil {
		rates = DefaultRates()
	}
	return &Store{
		cache:  make(map[string]*Entry),
		rates:  rates,
		logger: logging.NewLogger("transcript"),
	}
}

// Lookup returns the cached entry for path, parsing the file on a miss.
func (s *Store) Lookup(path string) (*Entry, error) {
	s.mu.Lock()
	if e, ok := s.cache[path]; ok {
		s.mu.Unlock()
		return e, nil
	}
	s.mu.Unlock()

	e, err := s.parse(path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[path] = e
	s.mu.Unlock()
	return e, nil
}

// TaskDescription returns the task label for a transcript: the most
// recent explicit summary record, else the most recent user-authored
// message, cleaned and truncated.
func (s *Store) TaskDescription(path string) (string, error) {
	e, err := s.Lookup(path)
	if err != nil {
		return "", err
	}
	return e.TaskDescription, nil
}

// Usage returns the summed token usage for a transcript.
func (s *Store) Usage(path string) (Usage, error) {
	e, err := s.Lookup(path)
	if err != nil {
		return Usage{}, err
	}
	return e.Usage, nil
}

// Cwd returns the working directory recorded in transcript metadata.
func (s *Store) Cwd(path string) (string, error) {
	e, err := s.Lookup(path)
	if err != nil {
		return "", err
	}
	return e.Cwd, nil
}

// Cost prices a usage against the store's rate table, defaulting to
// the baseline tier when the model is unknown.
func (s *Store) Cost(u Usage) float64 {
	return s.rates.For(u.Model).Cost(u.InputTokens, u.OutputTokens)
}

// Invalidate drops one cached entry; the next lookup re-parses.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
}

// Clear drops all cached entries.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cache = make(map[string]*Entry)
	s.mu.Unlock()
}

// record is the permissive wire shape of one transcript line. Only the
// fields Canopy consumes are declared; unknown fields are ignored.
type record struct {
	Type      string `json:"type"`
	Summary   string `json:"summary"`
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
	Message   *struct {
		Role    string          `json:"role"`
		Model   string          `json:"model"`
		Content json.RawMessage `json:"content"`
		Usage   *struct {
			InputTokens         int64 `json:"input_tokens"`
			OutputTokens        int64 `json:"output_tokens"`
			CacheCreationInput  int64 `json:"cache_creation_input_tokens"`
			CacheReadInput      int64 `json:"cache_read_input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// parse scans the whole file once. Unparsable lines are skipped and
// counted; one bad record never aborts the rest of the file.
func (s *Store) parse(path string) (*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTranscriptNotFound, "cannot open transcript").
			WithDetail("path", path)
	}
	defer f.Close()

	entry := &Entry{}
	var lastSummary, lastUserText string
	skipped := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec record
		if err := json.Unmarshal(raw, &rec); err != nil {
			skipped++
			continue
		}

		if rec.SessionID != "" && entry.SessionID == "" {
			entry.SessionID = rec.SessionID
		}
		if rec.Cwd != "" && entry.Cwd == "" {
			entry.Cwd = rec.Cwd
		}

		if rec.Type == "summary" && rec.Summary != "" {
			lastSummary = rec.Summary
		}

		if rec.Message == nil {
			continue
		}

		if (rec.Type == "user" || rec.Type == "conversation") && rec.Message.Role == "user" {
			if text := contentText(rec.Message.Content); text != "" {
				lastUserText = text
			}
		}

		if rec.Message.Model != "" {
			entry.Usage.Model = rec.Message.Model
		}
		if u := rec.Message.Usage; u != nil {
			entry.Usage.InputTokens += u.InputTokens
			entry.Usage.OutputTokens += u.OutputTokens
			entry.Usage.CacheCreationTokens += u.CacheCreationInput
			entry.Usage.CacheReadTokens += u.CacheReadInput
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeParse, "reading transcript").
			WithDetail("path", path)
	}

	if skipped > 0 {
		s.logger.WithFields(logrus.Fields{"path": path, "skipped": skipped}).
			Debug("Skipped unparsable transcript records")
	}

	if lastSummary != "" {
		entry.TaskDescription = cleanTask(lastSummary)
	} else {
		entry.TaskDescription = cleanTask(lastUserText)
	}

	return entry, nil
}

// contentText extracts text from a message content value, which may be
// a plain string or an array of typed blocks.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Type == "text" && b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		return strings.Join(parts, " ")
	}

	return ""
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

// cleanTask strips XML-ish tags, collapses whitespace and truncates to
// the published label length.
func cleanTask(text string) string {
	text = tagRe.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxTaskLength {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:maxTaskLength])) + "…"
	}
	return text
}
