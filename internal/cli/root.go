package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"swarmctl/internal/config"
	"swarmctl/internal/display"
	"swarmctl/internal/logger"
	"swarmctl/internal/mission"
	"swarmctl/internal/poller"
	"swarmctl/internal/registry"
	"swarmctl/internal/swarmapi"
)

var (
	configPath string
	apiURL     string
)

var rootCmd = &cobra.Command{
	Use:   "swarmctl",
	Short: "Plan, launch and watch swarm missions",
	Long: `swarmctl drives a remote agent swarm: draft a mission plan, refine it,
approve it, and watch it run. It can also fan one topic out to several
agent SDKs and compare what comes back.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default swarmctl.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "swarm backend base URL (overrides SWARM_API_URL)")

	rootCmd.AddCommand(planCmd, compareCmd, missionsCmd, showCmd, costsCmd, watchCmd, suggestCmd, tiersCmd)
}

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// app is the per-invocation wiring shared by every command.
type app struct {
	cfg     config.Config
	client  *swarmapi.Client
	reg     *registry.Registry
	group   *poller.Group
	tracker *poller.Tracker
	outMu   sync.Mutex
	out     io.Writer
	// offline holds the reason the backend is unusable, empty when online.
	offline string
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("api-url") {
		cfg.APIURL = apiURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := logger.Init(cfg.LogFile); err != nil {
		return nil, fmt.Errorf("could not initialize logger: %w", err)
	}

	client, err := swarmapi.New(cfg.APIURL,
		swarmapi.WithToken(cfg.Token),
		swarmapi.WithTimeout(cfg.RequestTimeout),
	)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	group := poller.NewGroup(cmd.Context(), client, poller.Options{
		Interval:       cfg.PollInterval,
		RequestTimeout: cfg.RequestTimeout,
	})
	return &app{
		cfg:     cfg,
		client:  client,
		reg:     reg,
		group:   group,
		tracker: poller.NewTracker(group, reg),
		out:     cmd.OutOrStdout(),
	}, nil
}

// connect probes the backend and loads the mission list. Failure is never
// fatal: the app stays usable and prints an offline banner instead.
func (a *app) connect(ctx context.Context) {
	if !a.client.Configured() {
		a.goOffline("SWARM_API_URL is not set")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()
	if err := a.client.Probe(pctx); err != nil {
		logger.Log.Printf("[CLI] Backend probe failed: %v", err)
		a.goOffline(fmt.Sprintf("%s is unreachable", a.client.BaseURL()))
		return
	}

	missions, err := a.client.Missions(pctx)
	if err != nil {
		logger.Log.Printf("[CLI] Could not load missions: %v", err)
		a.printf("Could not load missions: %v", err)
		return
	}
	a.reg.LoadAll(missions)
	logger.Log.Printf("[CLI] Loaded %d missions from %s", a.reg.Len(), a.client.BaseURL())
}

func (a *app) goOffline(reason string) {
	a.offline = reason
	logger.Log.Printf("[CLI] Offline: %s", reason)
	a.println(display.OfflineBanner(reason))
}

// println is safe to call from poller callbacks.
func (a *app) println(s string) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, s)
}

func (a *app) printf(format string, args ...any) {
	a.println(fmt.Sprintf(format, args...))
}

// waitTerminal blocks until mission id is Complete or Error.
func (a *app) waitTerminal(ctx context.Context, id string) (mission.Mission, error) {
	ch := make(chan mission.Mission, 1)
	unsubscribe := a.reg.Subscribe(func(m mission.Mission) {
		if m.ID == id && m.Status.Terminal() {
			select {
			case ch <- m:
			default:
			}
		}
	})
	defer unsubscribe()
	if m, ok := a.reg.Get(id); ok && m.Status.Terminal() {
		return m, nil
	}
	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
		return mission.Mission{}, ctx.Err()
	}
}

// interrupted reports whether err only means the operator pressed Ctrl+C.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled)
}

func parseTypeFlag(s string) (mission.Type, error) {
	if s == "" {
		return mission.Research, nil
	}
	return mission.ParseType(s)
}
