// Package auth moves an authenticated browser profile between a local archive
// and the app-private sandbox of the browser on an Android device.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/k-sakQA/Othello-for-Android/internal/observability"
	"github.com/k-sakQA/Othello-for-Android/internal/shell"
	"go.uber.org/zap"
)

// ErrorCode identifies session transfer failures.
type ErrorCode string

const (
	// ErrCodeCapabilityUnavailable: the privileged run-as probe against the app sandbox failed.
	ErrCodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"
	// ErrCodeSessionFileMissing: a push was requested with no local archive.
	ErrCodeSessionFileMissing ErrorCode = "SESSION_FILE_MISSING"
)

// Error is a coded session failure; errors.Is matches on Code.
type Error struct {
	Code    ErrorCode
	Message string
}

var (
	ErrCapabilityUnavailable = &Error{Code: ErrCodeCapabilityUnavailable}
	ErrSessionFileMissing    = &Error{Code: ErrCodeSessionFileMissing}
)

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Options addresses the device, the app whose profile is transferred and the
// local archive.
type Options struct {
	ADBPath     string
	Serial      string
	Package     string
	ProfileDir  string
	SessionPath string
}

// SessionManager transfers the profile archive. Concurrent pulls and pushes
// against the same SessionPath are not synchronized; callers must not overlap them.
type SessionManager struct {
	logger *zap.Logger
	runner shell.Runner
	opts   Options
}

// NewSessionManager creates a SessionManager that issues adb commands through runner.
func NewSessionManager(logger *zap.Logger, runner shell.Runner, opts Options) *SessionManager {
	if opts.ADBPath == "" {
		opts.ADBPath = "adb"
	}
	return &SessionManager{
		logger: logger.Named("auth_session"),
		runner: runner,
		opts:   opts,
	}
}

// SessionPath returns the local archive path.
func (m *SessionManager) SessionPath() string {
	return m.opts.SessionPath
}

// HasSession reports whether a local archive exists.
func (m *SessionManager) HasSession() bool {
	info, err := os.Stat(m.opts.SessionPath)
	return err == nil && info.Mode().IsRegular()
}

// ProbeCapability runs a harmless command inside the app sandbox. It never
// fails; any error means the capability is unavailable.
func (m *SessionManager) ProbeCapability(ctx context.Context) bool {
	res, err := m.runner.Run(ctx, m.adb("shell", "run-as", m.opts.Package, "ls"))
	if err != nil {
		m.logger.Debug("run-as probe failed", zap.String("package", m.opts.Package), zap.Error(err))
		return false
	}
	// Older adb builds exit 0 even when run-as refuses.
	if out := string(res.Stdout) + string(res.Stderr); strings.Contains(out, "run-as:") {
		m.logger.Debug("run-as probe refused", zap.String("output", strings.TrimSpace(out)))
		return false
	}
	return true
}

// Pull archives the device-side profile into the local session file,
// replacing any previous archive, and returns its path.
func (m *SessionManager) Pull(ctx context.Context) (string, error) {
	if !m.ProbeCapability(ctx) {
		observability.RecordSessionTransfer("pull", observability.OutcomeFailure)
		return "", &Error{Code: ErrCodeCapabilityUnavailable, Message: fmt.Sprintf("run-as is not permitted for %s", m.opts.Package)}
	}

	if err := m.pullArchive(ctx); err != nil {
		observability.RecordSessionTransfer("pull", observability.OutcomeFailure)
		return "", err
	}

	observability.RecordSessionTransfer("pull", observability.OutcomeSuccess)
	m.logger.Info("Session pulled", zap.String("path", m.opts.SessionPath))
	return m.opts.SessionPath, nil
}

func (m *SessionManager) pullArchive(ctx context.Context) error {
	dir := filepath.Dir(m.opts.SessionPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	// Stream into a sibling temp file so a failed pull leaves the previous archive intact.
	tmp, err := os.CreateTemp(dir, filepath.Base(m.opts.SessionPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temporary session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, runErr := m.runner.Run(ctx, shell.Command{
		Name:   m.opts.ADBPath,
		Args:   m.adbArgs("exec-out", "run-as", m.opts.Package, "tar", "-cf", "-", m.opts.ProfileDir),
		Stdout: tmp,
	})
	closeErr := tmp.Close()
	if runErr != nil {
		return fmt.Errorf("failed to archive %s on device: %w", m.opts.ProfileDir, runErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to write session file: %w", closeErr)
	}

	info, err := os.Stat(tmp.Name())
	if err != nil {
		return fmt.Errorf("failed to stat session file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("device returned an empty archive for %s", m.opts.ProfileDir)
	}

	if err := os.Rename(tmp.Name(), m.opts.SessionPath); err != nil {
		return fmt.Errorf("failed to move session file into place: %w", err)
	}
	return nil
}

// Push installs the local archive as the device-side profile. It requires the
// archive to exist and the capability probe to pass.
func (m *SessionManager) Push(ctx context.Context) error {
	if !m.HasSession() {
		observability.RecordSessionTransfer("push", observability.OutcomeFailure)
		return &Error{Code: ErrCodeSessionFileMissing, Message: m.opts.SessionPath}
	}
	if !m.ProbeCapability(ctx) {
		observability.RecordSessionTransfer("push", observability.OutcomeFailure)
		return &Error{Code: ErrCodeCapabilityUnavailable, Message: fmt.Sprintf("run-as is not permitted for %s", m.opts.Package)}
	}
	return m.push(ctx)
}

// Bootstrapper is the lenient pre-run session push the run loops depend on.
type Bootstrapper interface {
	PushIfPresent(ctx context.Context) (bool, error)
}

var _ Bootstrapper = (*SessionManager)(nil)

// PushIfPresent is the pre-run bootstrap. A missing archive or a failed probe
// skips the push and returns false without error; only a failure during the
// transfer itself is returned.
func (m *SessionManager) PushIfPresent(ctx context.Context) (bool, error) {
	if !m.HasSession() {
		m.logger.Debug("No local session; continuing unauthenticated", zap.String("path", m.opts.SessionPath))
		observability.RecordSessionTransfer("push", observability.OutcomeSkipped)
		return false, nil
	}
	if !m.ProbeCapability(ctx) {
		m.logger.Warn("Session file exists but run-as is unavailable; skipping session push",
			zap.String("path", m.opts.SessionPath),
			zap.String("package", m.opts.Package))
		observability.RecordSessionTransfer("push", observability.OutcomeSkipped)
		return false, nil
	}
	if err := m.push(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// push assumes both preconditions hold: stop the app, then swap the profile.
func (m *SessionManager) push(ctx context.Context) error {
	m.stopTarget(ctx)

	if err := m.replaceProfile(ctx); err != nil {
		observability.RecordSessionTransfer("push", observability.OutcomeFailure)
		return err
	}

	observability.RecordSessionTransfer("push", observability.OutcomeSuccess)
	m.logger.Info("Session pushed", zap.String("path", m.opts.SessionPath), zap.String("package", m.opts.Package))
	return nil
}

func (m *SessionManager) stopTarget(ctx context.Context) {
	if _, err := m.runner.Run(ctx, m.adb("shell", "am", "force-stop", m.opts.Package)); err != nil {
		m.logger.Warn("Failed to stop target app before session push", zap.String("package", m.opts.Package), zap.Error(err))
	}
}

// replaceProfile extracts the archive into an emptied staging directory and
// only then swaps it for the live profile.
func (m *SessionManager) replaceProfile(ctx context.Context) error {
	f, err := os.Open(m.opts.SessionPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Error{Code: ErrCodeSessionFileMissing, Message: m.opts.SessionPath}
		}
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	_, err = m.runner.Run(ctx, shell.Command{
		Name:  m.opts.ADBPath,
		Args:  m.adbArgs("exec-in", "run-as", m.opts.Package, "sh", "-c", shellQuote(replaceScript(m.opts.ProfileDir))),
		Stdin: f,
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s on device: %w", m.opts.ProfileDir, err)
	}
	return nil
}

func replaceScript(profile string) string {
	staging := profile + ".staging"
	return fmt.Sprintf(
		"rm -rf %[2]s && mkdir %[2]s && tar -xf - -C %[2]s && rm -rf %[1]s && mv %[2]s/%[1]s %[1]s && rm -rf %[2]s",
		profile, staging)
}

func (m *SessionManager) adb(args ...string) shell.Command {
	return shell.Command{Name: m.opts.ADBPath, Args: m.adbArgs(args...)}
}

func (m *SessionManager) adbArgs(args ...string) []string {
	if m.opts.Serial == "" {
		return args
	}
	return append([]string{"-s", m.opts.Serial}, args...)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
