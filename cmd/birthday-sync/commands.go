package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"github.com/tartampluch/birthday-sync/internal/apperror"
	"github.com/tartampluch/birthday-sync/internal/config"
	"github.com/tartampluch/birthday-sync/internal/server"
)

// rootOptions holds the global flags and the settings loaded from them.
type rootOptions struct {
	configPath string
	debug      bool
	settings   config.Settings
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           config.BinaryName,
		Short:         config.CmdRootShort,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging(cmd.ErrOrStderr(), opts.debug)
			if cmd.Name() == config.CmdVersion {
				return nil
			}
			logStartupInfo()

			s, err := config.LoadSettings(opts.configPath)
			if err != nil {
				return err
			}
			opts.settings = s
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, config.FlagConfig, "", config.FlagDescConfig)
	cmd.PersistentFlags().BoolVar(&opts.debug, config.FlagDebug, false, config.FlagDescDebug)

	cmd.AddCommand(
		newRunCommand(opts),
		newSyncCommand(opts),
		newProbeCommand(opts),
		newPingCommand(opts),
		newFixNamesCommand(opts),
		newServeCommand(opts),
		newVersionCommand(),
	)
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdRun,
		Short: config.CmdRunShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.settings, true)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res := a.engine.RunToday(cmd.Context())
			a.purgeDedup(cmd.Context())
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var companyID int64
	cmd := &cobra.Command{
		Use:   config.CmdSync,
		Short: config.CmdSyncShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			integrationID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts.settings, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return writeJSON(cmd.OutOrStdout(), a.reconciler.SyncOne(cmd.Context(), companyID, integrationID))
		},
	}
	companyFlag(cmd, &companyID)
	return cmd
}

func newProbeCommand(opts *rootOptions) *cobra.Command {
	var companyID int64
	cmd := &cobra.Command{
		Use:   config.CmdProbe,
		Short: config.CmdProbeShort,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			integrationID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts.settings, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return writeJSON(cmd.OutOrStdout(), a.engine.RunIntegrationTest(cmd.Context(), companyID, integrationID, args[1]))
		},
	}
	companyFlag(cmd, &companyID)
	return cmd
}

func newPingCommand(opts *rootOptions) *cobra.Command {
	var companyID int64
	cmd := &cobra.Command{
		Use:   config.CmdPing,
		Short: config.CmdPingShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			integrationID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(opts.settings, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			return writeJSON(cmd.OutOrStdout(), a.reconciler.Ping(cmd.Context(), companyID, integrationID))
		},
	}
	companyFlag(cmd, &companyID)
	return cmd
}

func newFixNamesCommand(opts *rootOptions) *cobra.Command {
	var cursor int64
	var batch int
	cmd := &cobra.Command{
		Use:   config.CmdFixNames,
		Short: config.CmdFixShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.settings, false)
			if err != nil {
				return err
			}
			defer closeApp(a)

			res, runErr := a.fixer.Run(cmd.Context(), cursor, batch)
			// The result carries the resume cursor even when the pass failed.
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			return runErr
		},
	}
	cmd.Flags().Int64Var(&cursor, config.FlagCursor, 0, config.FlagDescCursor)
	cmd.Flags().IntVar(&batch, config.FlagBatch, config.DefaultNameFixBatch, config.FlagDescBatch)
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	var cycle bool
	cmd := &cobra.Command{
		Use:   config.CmdServe,
		Short: config.CmdServeShort,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(opts.settings, cycle)
			if err != nil {
				return err
			}
			defer closeApp(a)

			ctx := cmd.Context()
			srv := &server.Server{
				Addr:     opts.settings.ListenAddr,
				Calendar: a.calendar,
				Status:   a.engine,
				Clock:    a.clock,
			}

			var wg sync.WaitGroup
			if cycle {
				wg.Add(1)
				go func() {
					defer wg.Done()
					a.engine.RunToday(ctx)
					a.purgeDedup(ctx)
				}()
			}

			err = srv.Start(ctx)
			wg.Wait()
			return err
		},
	}
	cmd.Flags().BoolVar(&cycle, config.FlagCycle, false, config.FlagDescCycle)
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdVersion,
		Short: config.CmdVersionShort,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

func companyFlag(cmd *cobra.Command, target *int64) {
	cmd.Flags().Int64Var(target, config.FlagCompany, 0, config.FlagDescCompany)
	_ = cmd.MarkFlagRequired(config.FlagCompany)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.InvalidInput("integration", fmt.Sprintf("%s: %q", config.ErrInvalidArgument, raw))
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("%s: %w", config.ErrWriteResp, err)
	}
	return nil
}

func closeApp(a *app) {
	if err := a.Close(); err != nil {
		slog.Warn(config.MsgCloseFailed,
			config.LogKeyComponent, config.CompMain,
			config.LogKeyError, err,
		)
	}
}
