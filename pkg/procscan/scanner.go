// Package procscan implements best-effort discovery of live agent
// processes. A scan enumerates candidates via ps and resolves each
// working directory when the platform allows it; missing attributes
// produce partial records, never exclusion.
package procscan

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/grovetools/canopy/command"
	"github.com/grovetools/canopy/errors"
	"github.com/grovetools/canopy/logging"
	"github.com/grovetools/canopy/pkg/models"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Scanner enumerates live candidate processes. Implementations must be
// read-only and idempotent.
type Scanner interface {
	List(ctx context.Context) ([]models.ProcessIdentity, error)
}

// Options configures a PSScanner.
type Options struct {
	// ProcessName is matched as a word against each command line.
	// Defaults to "claude".
	ProcessName string
	// IgnoreDirs holds dockerignore-style patterns; processes whose
	// working directory matches are excluded from scans.
	IgnoreDirs []string
	// Executor runs the underlying system tools. Defaults to the real
	// os/exec implementation.
	Executor command.Executor
}

// PSScanner discovers processes by shelling out to ps, which is
// portable across macOS and Linux. On Linux the working directory is
// read from /proc; elsewhere it falls back to lsof.
type PSScanner struct {
	opts    Options
	matcher *patternmatcher.PatternMatcher
	logger  *logrus.Entry
}

// New creates a PSScanner.
func New(opts Options) (*PSScanner, error) {
	if opts.ProcessName == "" {
		opts.ProcessName = "claude"
	}
	if opts.Executor == nil {
		opts.Executor = &command.RealExecutor{}
	}

	var matcher *patternmatcher.PatternMatcher
	if len(opts.IgnoreDirs) > 0 {
		m, err := patternmatcher.New(opts.IgnoreDirs)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid ignore pattern")
		}
		matcher = m
	}

	return &PSScanner{
		opts:    opts,
		matcher: matcher,
		logger:  logging.NewLogger("procscan"),
	}, nil
}

// List returns the current candidate processes. A failed ps invocation
// returns a DISCOVERY_ERROR; per-process attribute failures degrade to
// partial records.
func (s *PSScanner) List(ctx context.Context) ([]models.ProcessIdentity, error) {
	out, err := command.Output(ctx, s.opts.Executor, "ps", "-axo", "pid=,lstart=,tty=,args=")
	if err != nil {
		return nil, errors.DiscoveryError(err)
	}

	now := time.Now()
	self := os.Getpid()
	var procs []models.ProcessIdentity

	for _, line := range strings.Split(string(out), "\n") {
		proc, ok := parsePSLine(line, now)
		if !ok {
			continue
		}
		if proc.PID == self {
			continue
		}
		if !commandMatches(proc.Command, s.opts.ProcessName) {
			continue
		}

		if wd, err := s.workingDirectory(ctx, proc.PID); err == nil {
			proc.WorkingDirectory = wd
		} else {
			s.logger.WithField("pid", proc.PID).WithError(err).Debug("Could not resolve working directory")
		}

		if s.ignored(proc.WorkingDirectory) {
			continue
		}

		procs = append(procs, proc)
	}

	return procs, nil
}

func (s *PSScanner) ignored(wd string) bool {
	if s.matcher == nil || wd == "" {
		return false
	}
	ok, err := s.matcher.MatchesOrParentMatches(wd)
	return err == nil && ok
}

// psTimeLayout matches ps lstart output after whitespace collapsing,
// e.g. "Mon Jan 2 15:04:05 2006".
const psTimeLayout = "Mon Jan 2 15:04:05 2006"

// parsePSLine parses one ps output line of the form
//
//	PID  Mon Jan  2 15:04:05 2006  TTY  COMMAND [ARGS...]
//
// Returns ok=false for blank or malformed lines.
func parsePSLine(line string, discoveredAt time.Time) (models.ProcessIdentity, bool) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return models.ProcessIdentity{}, false
	}

	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return models.ProcessIdentity{}, false
	}

	proc := models.ProcessIdentity{
		PID:          pid,
		Command:      strings.Join(fields[7:], " "),
		DiscoveredAt: discoveredAt,
	}

	// lstart occupies five fields; an unparsable start time is left
	// zero rather than dropping the process.
	if start, err := time.ParseInLocation(psTimeLayout, strings.Join(fields[1:6], " "), time.Local); err == nil {
		proc.StartTime = start
	}

	// ps prints "??" (BSD) or "?" (Linux) for processes without a
	// controlling terminal.
	if tty := fields[6]; tty != "??" && tty != "?" && tty != "-" {
		proc.TTY = tty
	}

	return proc, true
}

// commandMatches reports whether name appears as a path-aware word in
// the command line: "claude" matches "claude", "/usr/local/bin/claude"
// and "claude --resume", but not "claudette" or "grep claude".
func commandMatches(command, name string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	return filepath.Base(fields[0]) == name
}

// workingDirectory resolves the current working directory of a pid.
// Best-effort: /proc on Linux, lsof elsewhere.
func (s *PSScanner) workingDirectory(ctx context.Context, pid int) (string, error) {
	if runtime.GOOS == "linux" {
		wd, err := os.Readlink("/proc/" + strconv.Itoa(pid) + "/cwd")
		if err != nil {
			return "", errors.DiscoveryError(err)
		}
		return wd, nil
	}
	return lsofCwd(ctx, s.opts.Executor, pid)
}

// lsofCwd reads the cwd descriptor via lsof field output ("-Fn" emits
// one "n"-prefixed line per path).
func lsofCwd(ctx context.Context, e command.Executor, pid int) (string, error) {
	out, err := command.Output(ctx, e, "lsof", "-a", "-p", strconv.Itoa(pid), "-d", "cwd", "-Fn")
	if err != nil {
		return "", errors.DiscoveryError(err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if strings.HasPrefix(line, "n") && len(line) > 1 {
			return strings.TrimSpace(line[1:]), nil
		}
	}
	return "", errors.DiscoveryError(os.ErrNotExist)
}
