package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recent focus sessions",
	RunE:  runSessions,
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent focus events",
	Long:  `Shows the append-only event log, newest first.`,
	RunE:  runEvents,
}

var (
	sessionsLimit int
	eventsLimit   int
)

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "Number of events to show")
}

func runSessions(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.RecentSessions(sessionsLimit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No focus sessions yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tFOCUS\tENDED\tSETTINGS")
	for _, s := range sessions {
		duration, ended := "-", "open"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
			ended = string(s.EndedReason)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dm/%ds\n",
			shortID(s.ID),
			humanize.Time(s.StartedAt),
			duration,
			formatSeconds(s.TotalSecondsInFocusMode),
			ended,
			s.ActivationMinutes, s.BufferSeconds)
	}
	return w.Flush()
}

func runEvents(cmd *cobra.Command, args []string) error {
	store, err := openStore(resolvePaths())
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.RecentEvents(eventsLimit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Println("No events recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tAPP\tDOMAIN\tENTITY\tDETAILS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			e.Kind,
			orDash(e.AppID),
			orDash(e.Domain),
			orDash(shortID(e.FocusEntityID)),
			e.Details)
	}
	return w.Flush()
}
