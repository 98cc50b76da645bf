package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	classicgap "github.com/srg/classicgap"
	"github.com/srg/classicgap/gap"
	"github.com/srg/classicgap/internal/device"
	"github.com/srg/classicgap/internal/hci"
	"github.com/srg/classicgap/internal/notify"
	"github.com/srg/classicgap/internal/transport"
	"github.com/srg/classicgap/pkg/config"
)

// replayScript drives a controller against the recording transport.
type replayScript struct {
	Description      string         `yaml:"description"`
	InquiryLength    uint8          `yaml:"inquiry_length"`
	RequiredServices []string       `yaml:"required_services"`
	Reject           []replayReject `yaml:"reject"`
	Steps            []replayStep   `yaml:"steps"`
}

// replayReject makes the radio refuse an opcode with a status.
type replayReject struct {
	Opcode uint16 `yaml:"opcode"`
	Status uint8  `yaml:"status"`
}

// replayStep is either a radio event or a controller call, selected by Do.
type replayStep struct {
	Do          string  `yaml:"do"`
	State       string  `yaml:"state"`
	Address     string  `yaml:"address"`
	Name        *string `yaml:"name"`
	Class       uint32  `yaml:"class"`
	RSSI        *int8   `yaml:"rssi"`
	PSRM        uint8   `yaml:"psrm"`
	ClockOffset uint16  `yaml:"clock_offset"`
	Status      uint8   `yaml:"status"`
	Code        *uint32 `yaml:"code"`
	PIN         string  `yaml:"pin"`
	Accept      bool    `yaml:"accept"`
	Visible     bool    `yaml:"visible"`
	Protection  uint8   `yaml:"protection"`
	// Expect names the error kind a call must fail with.
	Expect string `yaml:"expect"`
}

// replayResult is what one step caused.
type replayResult struct {
	Step          int
	Label         string
	Err           error
	Commands      []hci.Command
	Notifications []notify.Notification
}

func parseReplay(data []byte) (*replayScript, error) {
	var script replayScript
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&script); err != nil {
		return nil, fmt.Errorf("parsing replay script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, errors.New("replay script has no steps")
	}
	return &script, nil
}

// options applies the script's discovery settings over base.
func (s *replayScript) options(base *gap.Options) (*gap.Options, error) {
	opts := *base
	if s.InquiryLength != 0 {
		opts.InquiryLength = s.InquiryLength
	}
	if len(s.RequiredServices) > 0 {
		cfg := config.Config{RequiredServices: s.RequiredServices}
		mask, err := cfg.ServiceMask()
		if err != nil {
			return nil, err
		}
		opts.RequiredServices = mask
	}
	return &opts, nil
}

// runReplay plays script step by step. Step 0 is the dispatcher
// registration. A step error aborts the replay only when the step itself is
// malformed or an expectation is not met; other call errors are reported in
// the step result.
func runReplay(script *replayScript, base *gap.Options, logger *logrus.Logger) ([]replayResult, error) {
	opts, err := script.options(base)
	if err != nil {
		return nil, err
	}

	radio := transport.NewRecorder(logger)
	for _, r := range script.Reject {
		radio.Reject(hci.Opcode(r.Opcode), hci.Status(r.Status))
	}

	var published []notify.Notification
	ctrl, err := gap.NewController(radio, notify.PublisherFunc(func(n notify.Notification) {
		published = append(published, n)
	}), logger, opts)
	if err != nil {
		return nil, err
	}

	collect := func(step int, label string, err error) replayResult {
		res := replayResult{Step: step, Label: label, Err: err, Commands: radio.Commands(), Notifications: published}
		radio.Reset()
		published = nil
		return res
	}

	results := []replayResult{collect(0, "register", ctrl.RegisterScan())}

	for i, step := range script.Steps {
		n := i + 1
		label, err := playStep(ctrl, radio, step)
		if label == "" {
			return results, fmt.Errorf("step %d: %w", n, err)
		}
		if step.Expect != "" {
			if !errors.Is(err, &gap.Error{Kind: gap.ErrorKind(step.Expect)}) {
				return results, fmt.Errorf("step %d (%s): expected %s error, got %v", n, label, step.Expect, err)
			}
		}
		results = append(results, collect(n, label, err))
	}
	return results, nil
}

// playStep runs one step. An empty label means the step is malformed.
func playStep(ctrl *gap.Controller, radio *transport.Recorder, step replayStep) (string, error) {
	var addr device.Address
	if step.Address != "" {
		var err error
		if addr, err = device.ParseAddress(step.Address); err != nil {
			return "", err
		}
	}
	label := step.Do
	if step.Address != "" {
		label += " " + step.Address
	}

	// known returns the registry entry, or a bare device the controller
	// will refuse.
	known := func() device.Device {
		for _, d := range ctrl.GetDevicesList() {
			if d.Address == addr {
				return d
			}
		}
		return device.New(addr)
	}

	switch step.Do {
	case "stack":
		st, err := hci.ParseStackState(step.State)
		if err != nil {
			return "", err
		}
		radio.Emit(hci.StackStateChanged{State: st})
		return "stack " + step.State, nil
	case "inquiry_result":
		ev := hci.InquiryResult{
			Address:                addr,
			ClassOfDevice:          device.ClassOfDevice(step.Class),
			PageScanRepetitionMode: step.PSRM,
			ClockOffset:            step.ClockOffset,
			RSSI:                   step.RSSI,
		}
		if step.Name != nil {
			ev.Name = []byte(*step.Name)
		}
		radio.Emit(ev)
	case "inquiry_complete":
		radio.Emit(hci.InquiryComplete{Status: hci.Status(step.Status)})
	case "remote_name":
		ev := hci.RemoteNameComplete{Address: addr, Status: hci.Status(step.Status)}
		if step.Name != nil {
			ev.Name = []byte(*step.Name)
		}
		radio.Emit(ev)
	case "pin_request":
		radio.Emit(hci.PinCodeRequest{Address: addr})
	case "passkey_request":
		radio.Emit(hci.UserPasskeyRequest{Address: addr})
	case "passkey_notification":
		if step.Code == nil {
			return "", errors.New("passkey_notification needs code")
		}
		radio.Emit(hci.UserPasskeyNotification{Address: addr, Passkey: *step.Code})
	case "confirmation_request":
		radio.Emit(hci.UserConfirmationRequest{Address: addr, NumericValue: step.Code})
	case "bonding_complete":
		radio.Emit(hci.DedicatedBondingCompleted{Address: addr, Status: hci.Status(step.Status)})
	case "pairing_complete":
		radio.Emit(hci.SimplePairingComplete{Address: addr, Status: hci.Status(step.Status)})

	case "scan":
		return label, ctrl.Scan()
	case "stop_scan":
		ctrl.StopScan()
	case "visibility":
		return fmt.Sprintf("visibility %t", step.Visible), ctrl.SetVisibility(step.Visible)
	case "pair":
		return label, ctrl.Pair(known(), step.Protection)
	case "unpair":
		return label, ctrl.Unpair(known())
	case "respond_pin":
		return label, ctrl.RespondPinCode(step.PIN, known())
	case "confirm":
		return label, ctrl.FinishCodeComparison(step.Accept, known())
	default:
		return "", fmt.Errorf("unknown step %q", step.Do)
	}
	return label, nil
}

func writeReplay(w io.Writer, description string, results []replayResult) {
	if description != "" {
		fmt.Fprintln(w, dimColor.Sprint(description))
	}
	for _, r := range results {
		fmt.Fprintf(w, "#%d %s\n", r.Step, r.Label)
		for _, c := range r.Commands {
			fmt.Fprintf(w, "   -> %s\n", c)
		}
		for _, n := range r.Notifications {
			fmt.Fprintf(w, "   <- %s\n", describe(n))
		}
		if r.Err != nil {
			fmt.Fprintf(w, "   !! %s\n", failColor.Sprint(r.Err))
		}
	}
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [FILE]",
		Short: "Play a scripted radio session without hardware",
		Long: `Drive a controller from a YAML list of radio events and API calls against a
recording radio, printing the HCI commands (->) and notifications (<-) each
step produced. Without FILE the built-in discovery and pairing script runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			data := []byte(classicgap.DefaultReplayScript)
			if len(args) == 1 {
				if data, err = os.ReadFile(args[0]); err != nil {
					return fmt.Errorf("reading replay script: %w", err)
				}
			}
			script, err := parseReplay(data)
			if err != nil {
				return err
			}
			opts, err := cfg.ControllerOptions()
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			results, err := runReplay(script, opts, logger)
			writeReplay(cmd.OutOrStdout(), script.Description, results)
			return err
		},
	}
}
