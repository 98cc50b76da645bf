package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newVisibilityCmd() *cobra.Command {
	var hold time.Duration
	cmd := &cobra.Command{
		Use:       "visibility on|off",
		Short:     "Make this adapter discoverable or hide it",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			visible := args[0] == "on"
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			ctx, cancel := interruptible(cmd.Context())
			defer cancel()

			s, err := openSession(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ctrl.SetVisibility(visible); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Adapter hci%d visibility %s\n", cfg.HCIDevice, args[0])

			if !visible || hold == 0 {
				return nil
			}
			fmt.Fprintf(out, "Staying visible for %v, Ctrl+C to stop\n", hold)
			select {
			case <-ctx.Done():
			case <-time.After(hold):
			}
			return s.ctrl.SetVisibility(false)
		},
	}
	cmd.Flags().DurationVar(&hold, "hold", 0, "Stay visible this long, then hide again")
	return cmd
}
