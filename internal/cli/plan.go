package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"swarmctl/internal/display"
	"swarmctl/internal/ledger"
	"swarmctl/internal/listener"
	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
	"swarmctl/internal/planner"
	"swarmctl/internal/suggest"
)

var planFlags struct {
	typ     string
	tier    string
	domain  string
	yes     bool
	noWatch bool
	check   bool
}

var planCmd = &cobra.Command{
	Use:   "plan [TOPIC]",
	Short: "Draft a mission plan, review it and launch it",
	Long: `Generate a plan for TOPIC, then review it interactively:
  refine <instruction>   ask the planner to revise the plan
  approve                launch the mission and watch it
  show                   print the plan again
  back                   discard the plan`,
	RunE: runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVarP(&planFlags.typ, "type", "t", "research", "mission type: research or engineering")
	f.StringVar(&planFlags.tier, "tier", "", "cost tier (see 'swarmctl tiers')")
	f.StringVar(&planFlags.domain, "domain", "", "domain pack for research: health_science, trading_finance")
	f.BoolVarP(&planFlags.yes, "yes", "y", false, "approve the generated plan without review")
	f.BoolVar(&planFlags.noWatch, "no-watch", false, "return as soon as the mission is launched")
	f.BoolVar(&planFlags.check, "check", false, "check the topic before planning")
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	a.connect(cmd.Context())
	ctx := cmd.Context()

	t, err := parseTypeFlag(planFlags.typ)
	if err != nil {
		return err
	}

	if err := listener.Init("review> ", "refine", "approve", "show", "back", "help"); err != nil {
		return fmt.Errorf("failed to init terminal input: %w", err)
	}
	defer listener.Close()

	topic := strings.Join(args, " ")
	if strings.TrimSpace(topic) == "" {
		listener.SetPrompt("topic> ")
		topic, err = listener.GetInput()
		if err != nil {
			return nil
		}
		listener.SetPrompt("review> ")
	}

	ctrl := planner.New(a.client, a.reg, a.tracker)
	if err := ctrl.Select(t); err != nil {
		return err
	}
	req := mission.PlanRequest{Type: t, Topic: topic, Tier: planFlags.tier, Domain: planFlags.domain}

	if planFlags.check && !checkTopic(ctx, a, req) {
		return nil
	}

	a.printf("Generating %s plan for %q ...", t, strings.TrimSpace(topic))
	plan, err := ctrl.GeneratePlan(ctx, req)
	if err != nil {
		return err
	}
	logger.Log.Printf("Plan %s for topic %q (FULL):\n%s", plan.ID, plan.Topic, display.FormatPlanFull(plan))
	a.println(display.FormatPlan(plan))

	var launched mission.Mission
	if planFlags.yes {
		launched, err = ctrl.ApproveAndExecute(ctx, plan.ID)
		if err != nil {
			return err
		}
	} else {
		var ok bool
		launched, ok = reviewLoop(ctx, a, ctrl)
		if !ok {
			return nil
		}
	}
	listener.Close()

	a.printf("[Plan ACCEPTED] Mission %s started", launched.ID)
	if planFlags.noWatch {
		return nil
	}
	return watchOne(ctx, a, launched.ID)
}

// reviewLoop handles refine/approve/back until a mission is launched or the
// plan is discarded.
func reviewLoop(ctx context.Context, a *app, ctrl *planner.Controller) (mission.Mission, bool) {
	for {
		line, err := listener.GetInput()
		if err != nil {
			ctrl.Cancel()
			a.println("Plan discarded.")
			return mission.Mission{}, false
		}
		verb, arg := listener.SplitCommand(line)
		st := ctrl.State()
		if st.Plan == nil {
			return mission.Mission{}, false
		}

		switch verb {
		case "":
		case "refine", "r":
			if arg == "" {
				listener.AsyncPrintln("Usage: refine <instruction>")
				continue
			}
			listener.AsyncPrintln("Refining ...")
			plan, err := ctrl.RefinePlan(ctx, st.Plan.ID, arg)
			if err != nil {
				listener.AsyncPrintln(fmt.Sprintf("[Refine FAILED] %v", err))
				continue
			}
			logger.Log.Printf("Plan %s refined (FULL):\n%s", plan.ID, display.FormatPlanFull(plan))
			listener.AsyncPrintln(display.FormatPlan(plan))
		case "approve", "a":
			est := st.Plan.BudgetEstimate
			if est <= 0 {
				est, _ = ledger.Estimate(st.Plan.Type, st.Plan.Tier)
			}
			l := ledger.Compute(a.reg.Snapshot(), a.cfg.DailyBudget)
			if est > l.Remaining && !listener.AskYesNo(fmt.Sprintf("Estimated %.2f exceeds the %.2f left today. Launch anyway?", est, l.Remaining)) {
				continue
			}
			m, err := ctrl.ApproveAndExecute(ctx, st.Plan.ID)
			if errors.Is(err, planner.ErrHandoffIncomplete) {
				return m, true
			}
			if err != nil {
				listener.AsyncPrintln(fmt.Sprintf("[Launch FAILED] %v (recorded as %s; 'approve' to retry)", err, m.ID))
				continue
			}
			return m, true
		case "show", "s":
			listener.AsyncPrintln(display.FormatPlan(st.Plan))
		case "back", "b", "exit", "quit":
			ctrl.Cancel()
			listener.AsyncPrintln(fmt.Sprintf("[Plan %s REJECTED]", st.Plan.ID))
			return mission.Mission{}, false
		default:
			listener.AsyncPrintln("Commands: refine <instruction>, approve, show, back")
		}
	}
}

// checkTopic asks the configured advisor about the topic and reports
// whether planning should go ahead.
func checkTopic(ctx context.Context, a *app, req mission.PlanRequest) bool {
	adv, err := advisor(a)
	if err != nil {
		a.printf("Topic check unavailable: %v", err)
		return true
	}
	domain, _ := mission.ResolveDomain(req.Type, req.Domain)
	res, err := adv.SuggestTopics(ctx, suggest.Query{Topic: req.Topic, Domain: domain, Type: req.Type})
	if err != nil {
		a.printf("Topic check failed: %v", err)
		return true
	}
	a.println(display.FormatSuggestions(res))
	if res.Quality == suggest.Good {
		return true
	}
	return listener.AskYesNo("Plan this topic anyway?")
}
