package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gapctl",
		Short: "Bluetooth Classic discovery and pairing tool",
		Long: `Bluetooth Classic (BR/EDR) command-line tool that drives a local HCI adapter:

- Discover nearby audio devices with names fetched in the background
- Pair with a device, answering PIN, passkey and numeric comparison prompts
  interactively, from flags or from a Lua agent script
- Remove link keys and list recorded bonds
- Toggle local visibility
- Replay scripted radio sessions without hardware`,
		Version: formatVersion(version) + " (" + commit + ", " + date + ")",
		// Silence Cobra's "Error:" prefix - main() prints clean errors
		SilenceErrors: true,
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newPairCmd())
	root.AddCommand(newUnpairCmd())
	root.AddCommand(newVisibilityCmd())
	root.AddCommand(newBondedCmd())
	root.AddCommand(newReplayCmd())

	flags := root.PersistentFlags()
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.Bool("verbose", false, "Debug logging when --log-level is not given")
	flags.StringP("config", "c", "", "YAML configuration file")
	flags.Int("hci", -1, "HCI device index (overrides hci_device)")

	return root
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}
