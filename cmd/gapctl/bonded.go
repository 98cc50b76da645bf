package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/srg/classicgap/internal/bondstore"
	"github.com/srg/classicgap/internal/device"
)

func newBondedCmd() *cobra.Command {
	var (
		store  string
		format string
		forget string
	)
	cmd := &cobra.Command{
		Use:   "bonded",
		Short: "List devices recorded as bonded",
		Long: `List the bond store (bond_store in the configuration, or --store).
Bonds are recorded when pairing succeeds and removed by unpair.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}
			if store == "" {
				store = cfg.BondStore
			}
			if store == "" {
				return errors.New("no bond store configured: set bond_store or pass --store")
			}
			cmd.SilenceUsage = true

			db, err := bondstore.Open(store)
			if err != nil {
				return err
			}
			defer db.Close()

			if forget != "" {
				addr, err := device.ParseAddress(forget)
				if err != nil {
					return err
				}
				if err := db.Delete(cmd.Context(), addr); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bond record for %s removed\n", addr)
				return nil
			}

			bonds, err := db.List(cmd.Context())
			if err != nil {
				return err
			}
			return writeBonds(cmd.OutOrStdout(), format, bonds)
		},
	}
	cmd.Flags().StringVar(&store, "store", "", "Bond store path (overrides bond_store)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().StringVar(&forget, "forget", "", "Remove the record of ADDRESS instead of listing")
	return cmd
}
