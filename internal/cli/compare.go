package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"swarmctl/internal/compare"
	"swarmctl/internal/display"
	"swarmctl/internal/mission"
)

var compareFlags struct {
	typ       string
	providers []string
}

var compareCmd = &cobra.Command{
	Use:   "compare TOPIC",
	Short: "Run one topic on every agent SDK and compare the results",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		a.connect(cmd.Context())
		if !a.client.Configured() {
			return fmt.Errorf("compare: %s", a.offline)
		}
		ctx := cmd.Context()

		t, err := parseTypeFlag(compareFlags.typ)
		if err != nil {
			return err
		}
		var providers []mission.Provider
		for _, name := range compareFlags.providers {
			p, err := mission.ParseProvider(name)
			if err != nil {
				return err
			}
			providers = append(providers, p)
		}

		runner, err := compare.NewRunner(a.client, a.group, providers...)
		if err != nil {
			return err
		}
		runner.OnChange(func(s compare.Slot) {
			switch s.Status {
			case mission.StatusComplete:
				a.printf("[Compare] %s complete ($%.2f)", s.Provider.Label(), s.Cost)
			case mission.StatusError:
				a.printf("[Compare] %s failed: %s", s.Provider.Label(), s.Err)
			}
		})

		topic := strings.Join(args, " ")
		a.printf("Launching %q on %d providers ...", topic, len(runner.Slots()))
		if err := runner.Run(ctx, topic, t); err != nil {
			return err
		}
		a.println(display.FormatComparison(runner.Slots(), runner.Progress()))

		select {
		case <-runner.Done():
		case <-ctx.Done():
			runner.Stop()
			a.println("Comparison abandoned; launched missions keep running.")
		}
		a.println(display.FormatComparison(runner.Slots(), runner.Progress()))
		a.println(display.FormatRunMetrics(runner.Metrics()))
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVarP(&compareFlags.typ, "type", "t", "research", "mission type: research or engineering")
	compareCmd.Flags().StringSliceVar(&compareFlags.providers, "providers", nil, "subset of providers (default: all SDK providers)")
}
