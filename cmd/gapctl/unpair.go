package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/classicgap/internal/device"
)

func newUnpairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpair ADDRESS",
		Short: "Delete the stored link key of a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := device.ParseAddress(args[0])
			if err != nil {
				return err
			}
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

			if err := s.ctrl.Unpair(device.New(addr)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Link key for %s removed\n", addr)
			return nil
		},
	}
}
