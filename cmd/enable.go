package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/ui"
)

var (
	enableMinutes uint64
	enableFor     time.Duration
	timedMinutes  uint64
)

func init() {
	enableCmd.Flags().Uint64VarP(&enableMinutes, "minutes", "m", 0, "end the session after this many minutes")
	enableCmd.Flags().DurationVar(&enableFor, "for", 0, "end the session after this long, e.g. 90m or 1h30m")
	rootCmd.AddCommand(enableCmd)

	timedCmd.Flags().Uint64VarP(&timedMinutes, "minutes", "m", 0, "end the session after this many minutes")
	_ = timedCmd.MarkFlagRequired("minutes")
	rootCmd.AddCommand(timedCmd)
}

var enableCmd = &cobra.Command{
	Use:   "enable [minutes]",
	Short: "Keep the machine awake until disabled, or for a number of minutes",
	Example: `  caffeine enable
  caffeine enable 30
  caffeine enable --for 1h30m`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		length, err := sessionLength(args, cmd.Flags().Changed("minutes"), enableMinutes, cmd.Flags().Changed("for"), enableFor)
		if err != nil {
			return err
		}
		return enable(cmd, length)
	},
}

var timedCmd = &cobra.Command{
	Use:   "timed",
	Short: "Keep the machine awake for a number of minutes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkMinutes(timedMinutes); err != nil {
			return err
		}
		return enable(cmd, session.Seconds(timedMinutes*60))
	},
}

// sessionLength picks the session duration in seconds from the one way
// it was given, if any. nil means unbounded.
func sessionLength(args []string, minutesSet bool, minutes uint64, forSet bool, d time.Duration) (*uint64, error) {
	given := len(args)
	if minutesSet {
		given++
	}
	if forSet {
		given++
	}
	switch {
	case given == 0:
		return nil, nil
	case given > 1:
		return nil, errors.New("give the session length only once")
	}

	switch {
	case len(args) == 1:
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number of minutes %q", args[0])
		}
		minutes = n
	case forSet:
		if d < time.Second {
			return nil, fmt.Errorf("session length %s is shorter than a second", d)
		}
		return session.Seconds(uint64(d / time.Second)), nil
	}
	if err := checkMinutes(minutes); err != nil {
		return nil, err
	}
	return session.Seconds(minutes * 60), nil
}

func checkMinutes(minutes uint64) error {
	switch {
	case minutes == 0:
		return errors.New("minutes must be at least 1")
	case minutes > session.MaxSeconds/60:
		return fmt.Errorf("%d minutes is too long, at most %d", minutes, session.MaxSeconds/60)
	}
	return nil
}

func enable(cmd *cobra.Command, length *uint64) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	sess, err := m.Start(cmd.Context(), length)
	if err != nil {
		return err
	}
	if sess.Duration == nil {
		ui.Success("☕ Caffeine enabled")
		return nil
	}
	total := time.Duration(*sess.Duration) * time.Second
	ui.Success("☕ Caffeine enabled for %s", ui.Bold(session.FormatClock(total)))
	return nil
}
