package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/scienceol/caffeine/internal/config"
	"github.com/scienceol/caffeine/internal/ui"
)

var (
	configPath string
	overrides  config.Config

	// cfg is resolved before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "caffeine",
	Short: "Keep your machine awake for a while, or until you say otherwise",
	Long: `Caffeine stops the desktop from going idle, dimming the screen or
suspending while a session is active.

A session either lasts until "caffeine disable" or, when started with a
number of minutes, ends on its own. Only one session exists at a time and
it survives the command that started it.

Run without arguments on a terminal to pick an action from a menu.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return cmd.Help()
		}
		return runMenu(cmd)
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configPath, "config", "", "config file (default ~/.caffeine/config.yaml)")
	f.StringVar(&overrides.StateFile, "state-file", "", "where the active session is recorded")
	f.StringVar(&overrides.Backend, "backend", "", "inhibitor backend: systemd-inhibit, caffeinate or screensaver")
	f.StringVar(&overrides.What, "what", "", "what to inhibit, e.g. idle or idle:sleep")
	f.StringVar(&overrides.Who, "who", "", "application name reported to the OS")
	f.StringVar(&overrides.Why, "why", "", "reason reported to the OS")
	f.StringVar(&overrides.InhibitCommand, "inhibit-command", "", "override the inhibitor binary")
	f.StringVar(&overrides.LogFile, "log-file", "", "log file for background helpers")
	f.BoolVarP(&overrides.Verbose, "verbose", "v", false, "show debug logs")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath, overrides)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%s", describe(err))
		os.Exit(1)
	}
}
