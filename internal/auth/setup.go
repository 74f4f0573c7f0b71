package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
	"go.uber.org/zap"
)

// Prompter blocks until the operator confirms.
type Prompter interface {
	WaitForEnter(ctx context.Context, message string) error
}

// ConsolePrompter prints to Out and waits for a line on In.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer
}

// WaitForEnter returns when a line is read, when In is exhausted, or when ctx is done.
func (p *ConsolePrompter) WaitForEnter(ctx context.Context, message string) error {
	if _, err := fmt.Fprint(p.Out, message); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(p.In).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Setup walks an operator through a manual login and captures the resulting
// profile.
type Setup struct {
	logger  *zap.Logger
	device  schemas.Device
	prompt  Prompter
	session *SessionManager
}

// NewSetup wires the interactive login flow.
func NewSetup(logger *zap.Logger, device schemas.Device, prompt Prompter, session *SessionManager) *Setup {
	return &Setup{logger: logger.Named("auth_setup"), device: device, prompt: prompt, session: session}
}

// Run opens loginURL, waits for the operator to finish logging in, then pulls
// the profile and returns the archive path.
func (s *Setup) Run(ctx context.Context, loginURL string) (string, error) {
	if loginURL != "" {
		if err := s.device.OpenURL(ctx, loginURL); err != nil {
			return "", fmt.Errorf("failed to open login page: %w", err)
		}
	}
	s.logger.Info("Waiting for manual login", zap.String("url", loginURL))
	if err := s.prompt.WaitForEnter(ctx, "Log in on the device, then press Enter to save the session... "); err != nil {
		return "", fmt.Errorf("login confirmation aborted: %w", err)
	}
	return s.session.Pull(ctx)
}
