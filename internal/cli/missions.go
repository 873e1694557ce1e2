package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"swarmctl/internal/display"
	"swarmctl/internal/ledger"
	"swarmctl/internal/mission"
)

var missionsCmd = &cobra.Command{
	Use:   "missions",
	Short: "List missions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		a.connect(cmd.Context())
		snap := a.reg.Snapshot()
		a.println(display.FormatMissions(snap))
		a.println(display.FormatLedger(ledger.Compute(snap, a.cfg.DailyBudget)))
		return nil
	},
}

var showRaw string

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a mission's synthesis or one model's raw output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		a.connect(cmd.Context())
		m, err := a.lookup(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out, err := display.FormatMission(m, showRaw)
		if err != nil {
			return err
		}
		a.println(out)
		return nil
	},
}

var costsCmd = &cobra.Command{
	Use:   "costs [ID]",
	Short: "Show spend against the daily budget, optionally broken down for one mission",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		a.connect(cmd.Context())
		var selected *mission.Mission
		if len(args) == 1 {
			m, err := a.lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			selected = &m
		}
		snap := a.reg.Snapshot()
		a.println(display.FormatCosts(selected, snap, ledger.Compute(snap, a.cfg.DailyBudget)))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [ID]",
	Short: "Poll a mission (or every running mission) until it finishes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		a.connect(cmd.Context())
		if !a.client.Configured() {
			return fmt.Errorf("watch: %s", a.offline)
		}
		if len(args) == 1 {
			if _, ok := a.reg.Get(args[0]); !ok {
				if _, err := a.reg.Upsert(mission.Placeholder(args[0], "", "", mission.ProviderSwarm)); err != nil {
					return err
				}
			}
			return watchOne(cmd.Context(), a, args[0])
		}
		return watchAll(cmd.Context(), a)
	},
}

func init() {
	showCmd.Flags().StringVar(&showRaw, "raw", "", "print the raw output of this model instead of the synthesis")
}

// lookup finds id in the registry, falling back to a direct fetch.
func (a *app) lookup(ctx context.Context, id string) (mission.Mission, error) {
	if m, ok := a.reg.Get(id); ok {
		return m, nil
	}
	m, err := a.client.Mission(ctx, id)
	if err != nil {
		return mission.Mission{}, fmt.Errorf("mission %s: %w", id, err)
	}
	return m, nil
}

func watchOne(ctx context.Context, a *app, id string) error {
	if m, ok := a.reg.Get(id); ok && m.Status.Terminal() {
		return printResult(a, m)
	}
	a.tracker.Watch(id)
	a.printf("Watching mission %s (Ctrl+C stops watching; the mission keeps running) ...", id)
	m, err := a.waitTerminal(ctx, id)
	if err != nil {
		a.tracker.StopAll()
		if interrupted(err) {
			a.printf("Stopped watching %s.", id)
			return nil
		}
		return err
	}
	return printResult(a, m)
}

func watchAll(ctx context.Context, a *app) error {
	n := a.tracker.WatchRunning()
	if n == 0 {
		a.println("Nothing running.")
		return nil
	}
	a.printf("Watching %d running mission(s) ...", n)

	done := make(chan mission.Mission, n)
	unsubscribe := a.reg.Subscribe(func(m mission.Mission) {
		if m.Status.Terminal() {
			select {
			case done <- m:
			default:
			}
		}
	})
	defer unsubscribe()
	seen := make(map[string]bool, n)
	for len(seen) < n {
		select {
		case m := <-done:
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			a.printf("[Mission %s %s] %s", m.ID, display.Status(m.Status), m.Topic)
		case <-ctx.Done():
			a.tracker.StopAll()
			a.println("Stopped watching.")
			return nil
		}
	}
	a.println(display.FormatLedger(ledger.Compute(a.reg.Snapshot(), a.cfg.DailyBudget)))
	return nil
}

func printResult(a *app, m mission.Mission) error {
	out, err := display.FormatMission(m, "")
	if err != nil {
		return err
	}
	a.println(out)
	a.println(display.FormatLedger(ledger.Compute(a.reg.Snapshot(), a.cfg.DailyBudget)))
	return nil
}
