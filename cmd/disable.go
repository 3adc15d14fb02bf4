package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/ui"
)

func init() {
	rootCmd.AddCommand(disableCmd)
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "End the current session and let the machine idle again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return disable(cmd)
	},
}

func disable(cmd *cobra.Command) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	err = m.Stop(cmd.Context())
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		ui.Warn("😴 Caffeine is already disabled")
		return nil
	case err != nil:
		return err
	}
	ui.Success("😴 Caffeine disabled")
	return nil
}
