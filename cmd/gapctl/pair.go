package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/agent"
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/notify"
)

type pairOptions struct {
	scan       time.Duration
	timeout    time.Duration
	protection int
	pin        string
	accept     bool
	agent      string
}

func newPairCmd() *cobra.Command {
	opts := &pairOptions{}
	cmd := &cobra.Command{
		Use:   "pair ADDRESS",
		Short: "Bond with a device",
		Long: `Scan until ADDRESS shows up, then start dedicated bonding with it.

Authentication prompts are answered by the Lua agent (--agent or agent_script),
then by --pin / --accept, then interactively when stdin is a terminal.`,
		Example: `  gapctl pair 00:1A:7D:DA:71:13 --pin 0000
  gapctl pair 00:1A:7D:DA:71:13 --accept
  gapctl pair 00:1A:7D:DA:71:13 --agent examples/agent.lua`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPair(cmd, args[0], opts)
		},
	}

	cmd.Flags().DurationVar(&opts.scan, "scan", 30*time.Second, "How long to look for the device")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 60*time.Second, "How long to wait for the pairing result")
	cmd.Flags().IntVar(&opts.protection, "protection", -1, "Protection level, 0 none, 1 MITM (overrides protection_level)")
	cmd.Flags().StringVar(&opts.pin, "pin", "", "Answer PIN and passkey prompts with this value")
	cmd.Flags().BoolVar(&opts.accept, "accept", false, "Confirm numeric comparison prompts")
	cmd.Flags().StringVar(&opts.agent, "agent", "", "Lua agent script answering prompts")
	return cmd
}

func runPair(cmd *cobra.Command, address string, opts *pairOptions) error {
	addr, err := device.ParseAddress(address)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	protection := cfg.ProtectionLevel
	if opts.protection >= 0 {
		protection = uint8(opts.protection)
	}
	cmd.SilenceUsage = true

	ctx, cancel := interruptible(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	ans := &answerer{responder: s.ctrl, out: out, prompt: newTerminalPrompter(out)}
	if cmd.Flags().Changed("pin") {
		ans.pin = &opts.pin
	}
	if cmd.Flags().Changed("accept") {
		ans.accept = &opts.accept
	}

	script := opts.agent
	if script == "" {
		script = cfg.AgentScript
	}
	if script != "" {
		a, err := agent.Load(script, s.ctrl, logger)
		if err != nil {
			return err
		}
		if err := a.Start(ctx); err != nil {
			return err
		}
		defer a.Close()
		ans.agent = a
	}

	bar := progressFor(out, fmt.Sprintf("Looking for %s", addr), "inquiry", opts.scan)
	if bar == nil {
		fmt.Fprintf(out, "Looking for %s...\n", addr)
	}
	bar.Start(ctx)
	dev, err := discover(ctx, s, addr, opts.scan)
	bar.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pairing with %s (%s)\n", dev.DisplayName(), dev.Address)
	if err := s.ctrl.Pair(dev, protection); err != nil {
		return err
	}

	waitCtx, stop := context.WithTimeout(ctx, opts.timeout)
	defer stop()
	if err := awaitPairing(waitCtx, s.events.C(), addr, ans, out, logger); err != nil {
		if !errors.Is(err, context.Canceled) {
			writeTrail(out, s.trail())
		}
		return err
	}
	return nil
}

// discover scans until addr is in the registry.
func discover(ctx context.Context, s *session, addr device.Address, limit time.Duration) (device.Device, error) {
	for _, d := range s.ctrl.GetDevicesList() {
		if d.Address == addr {
			return d, nil
		}
	}

	if err := s.ctrl.Scan(); err != nil {
		return device.Device{}, err
	}
	defer s.ctrl.StopScan()

	scanCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	for {
		select {
		case <-scanCtx.Done():
			if ctx.Err() != nil {
				return device.Device{}, ctx.Err()
			}
			return device.Device{}, fmt.Errorf("%w: %s not seen within %v", ErrNotDiscovered, addr, limit)
		case n := <-s.events.C():
			list, ok := n.(notify.DeviceListChanged)
			if !ok {
				continue
			}
			for _, d := range list.Devices {
				if d.Address == addr {
					return d, nil
				}
			}
		}
	}
}

// awaitPairing answers prompts until the PairingResult for addr arrives.
func awaitPairing(ctx context.Context, events <-chan notify.Notification, addr device.Address, ans *answerer, out io.Writer, logger *logrus.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-events:
			switch n := n.(type) {
			case notify.AuthenticationRequested:
				if err := ans.handle(n); err != nil {
					// The handshake may still finish, the peer decides.
					logger.WithError(err).WithField("address", n.Device.Address).Warn("Answer rejected")
					fmt.Fprintf(out, "%s\n", failColor.Sprint(FormatUserError(err)))
				}
			case notify.PairingResult:
				if n.Device.Address != addr {
					continue
				}
				if ans.agent != nil {
					ans.agent.Publish(n)
				}
				fmt.Fprintln(out, describe(n))
				if !n.Success {
					return fmt.Errorf("%w: %s", ErrPairingFailed, addr)
				}
				return nil
			}
		}
	}
}

var _ agent.Responder = (*gap.Controller)(nil)
