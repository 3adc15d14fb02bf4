package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/ui"
)

const (
	menuEnable = iota
	menuTimed
	menuDisable
	menuStatus
	menuClose
)

var menuOptions = []string{
	menuEnable:  "☕ Enable Caffeine",
	menuTimed:   "⏱️  Enable Caffeine for a while",
	menuDisable: "😴 Disable Caffeine",
	menuStatus:  "🗒️  Session status",
	menuClose:   "🚪 Close",
}

type preset struct {
	label   string
	minutes uint64
}

// A zero preset asks for the number of minutes.
var presets = []preset{
	{"5 minutes", 5},
	{"10 minutes", 10},
	{"15 minutes", 15},
	{"20 minutes", 20},
	{"30 minutes", 30},
	{"1 hour", 60},
	{"2 hours", 120},
	{"Other", 0},
}

func runMenu(cmd *cobra.Command) error {
	ui.Banner(version)
	ui.Separator()
	ui.Info("%s", ui.Dim("Type a number and press Enter, Ctrl-D to leave"))
	p := ui.NewPrompter(cmd.InOrStdin())

	choice, err := p.Select("What do you want to do?", menuOptions)
	if errors.Is(err, ui.ErrAborted) {
		return nil
	}
	if err != nil {
		return err
	}

	switch choice {
	case menuEnable:
		return enable(cmd, nil)
	case menuTimed:
		minutes, err := pickMinutes(p)
		if errors.Is(err, ui.ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := checkMinutes(minutes); err != nil {
			return err
		}
		return enable(cmd, session.Seconds(minutes*60))
	case menuDisable:
		return disable(cmd)
	case menuStatus:
		return status(cmd, false)
	}
	return nil
}

func pickMinutes(p *ui.Prompter) (uint64, error) {
	labels := make([]string, len(presets))
	for i, pr := range presets {
		labels[i] = pr.label
	}
	i, err := p.Select("For how long?", labels)
	if err != nil {
		return 0, err
	}
	if presets[i].minutes > 0 {
		return presets[i].minutes, nil
	}
	return p.Uint("Write the time in minutes:", "Please type a valid number")
}
