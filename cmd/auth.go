package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/k-sakQA/Othello-for-Android/internal/auth"
	"github.com/k-sakQA/Othello-for-Android/internal/config"
	"github.com/k-sakQA/Othello-for-Android/internal/observability"
)

// newAuthCmd groups the session transfer commands.
func newAuthCmd() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Captures and restores the authenticated browser profile",
	}
	authCmd.AddCommand(newAuthSetupCmd())
	authCmd.AddCommand(newAuthPullCmd())
	authCmd.AddCommand(newAuthPushCmd())
	authCmd.AddCommand(newAuthProbeCmd())
	return authCmd
}

// withSession builds the components a session command needs and runs fn.
func withSession(cmd *cobra.Command, needDevice bool, fn func(ctx context.Context, comps *components) error) error {
	ctx := cmd.Context()
	cfg, err := getConfigFromContext(ctx)
	if err != nil {
		return err
	}
	if cfg.Device.Backend != config.BackendADB {
		return fmt.Errorf("session transfer requires device.backend adb; the %s backend keeps its profile in device.browser.user_data_dir", cfg.Device.Backend)
	}
	comps, err := newComponents(ctx, cfg, observability.GetLogger(), componentOptions{device: needDevice, session: true})
	if err != nil {
		return err
	}
	defer comps.Close()
	return fn(ctx, comps)
}

func newAuthSetupCmd() *cobra.Command {
	var url string
	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Opens the login page, waits for a manual login, then pulls the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, true, func(ctx context.Context, comps *components) error {
				prompt := &auth.ConsolePrompter{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
				path, err := auth.NewSetup(comps.logger, comps.device, prompt, comps.session).Run(ctx, url)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session saved: %s\n", path)
				return nil
			})
		},
	}
	setupCmd.Flags().StringVar(&url, "url", "", "Login page to open")
	return setupCmd
}

func newAuthPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Archives the device browser profile into the local session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, comps *components) error {
				path, err := comps.session.Pull(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session saved: %s\n", path)
				return nil
			})
		},
	}
}

func newAuthPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Replaces the device browser profile with the local session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, comps *components) error {
				if err := comps.session.Push(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session restored from %s\n", comps.session.SessionPath())
				return nil
			})
		},
	}
}

func newAuthProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Checks whether the browser sandbox is reachable with run-as",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, false, func(ctx context.Context, comps *components) error {
				ok := comps.session.ProbeCapability(ctx)
				comps.logger.Debug("Probe finished", zap.Bool("available", ok))
				if !ok {
					return &auth.Error{Code: auth.ErrCodeCapabilityUnavailable, Message: "run-as is not permitted; the browser must be a debuggable build"}
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Session transfer is available")
				return nil
			})
		},
	}
}
