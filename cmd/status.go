package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scienceol/caffeine/internal/session"
	"github.com/scienceol/caffeine/internal/ui"
)

var statusJSON bool

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON on stdout")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a session is active and how long it has left",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return status(cmd, statusJSON)
	},
}

type statusReport struct {
	Active    bool    `json:"active"`
	ID        string  `json:"id,omitempty"`
	Handle    string  `json:"handle,omitempty"`
	StartTime uint64  `json:"start_time,omitempty"`
	Elapsed   int64   `json:"elapsed_seconds"`
	Remaining *int64  `json:"remaining_seconds,omitempty"`
	Total     *uint64 `json:"total_seconds,omitempty"`
}

func newStatusReport(v session.View, ok bool) statusReport {
	if !ok {
		return statusReport{}
	}
	r := statusReport{
		Active:    true,
		ID:        v.Session.ID,
		Handle:    v.Session.Handle.String(),
		StartTime: v.Session.StartTime,
		Elapsed:   int64(v.Elapsed.Seconds()),
	}
	if v.Session.Bounded() {
		remaining := int64(v.Remaining.Seconds())
		r.Remaining = &remaining
		r.Total = v.Session.Duration
	}
	return r
}

// statusLine is the one-line summary shown for a view.
func statusLine(v session.View, ok bool) string {
	if !ok {
		return "😴 Caffeine is disabled"
	}
	if !v.Session.Bounded() {
		return fmt.Sprintf("☕ Caffeine enabled for %s", session.FormatClock(v.Elapsed))
	}
	return fmt.Sprintf("☕ Caffeine enabled for %s, %s left of %s",
		session.FormatClock(v.Elapsed), session.FormatClock(v.Remaining), session.FormatClock(v.Total))
}

func status(cmd *cobra.Command, asJSON bool) error {
	m, err := newManager()
	if err != nil {
		return err
	}
	v, ok := m.Status()

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(newStatusReport(v, ok))
	}

	if !ok {
		ui.Info("%s", statusLine(v, ok))
		return nil
	}
	ui.Success("%s", statusLine(v, ok))
	if cfg.Verbose {
		ui.Separator()
		ui.KeyValue("Started", v.Session.Started().Format("2006-01-02 15:04:05"))
		ui.KeyValue("Handle", v.Session.Handle.String())
		ui.KeyValue("ID", v.Session.ID)
	}
	return nil
}
