package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"swarmctl/internal/display"
	"swarmctl/internal/llm_client"
	"swarmctl/internal/mission"
	"swarmctl/internal/suggest"
)

var suggestFlags struct {
	typ    string
	domain string
}

var suggestCmd = &cobra.Command{
	Use:   "suggest TOPIC",
	Short: "Check whether a topic is specific enough and propose sharper ones",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		if a.cfg.Suggest.Backend == "api" {
			a.connect(cmd.Context())
		}
		t, err := parseTypeFlag(suggestFlags.typ)
		if err != nil {
			return err
		}
		domain, err := mission.ResolveDomain(t, suggestFlags.domain)
		if err != nil {
			return err
		}
		adv, err := advisor(a)
		if err != nil {
			return err
		}
		res, err := adv.SuggestTopics(cmd.Context(), suggest.Query{Topic: strings.Join(args, " "), Domain: domain, Type: t})
		if err != nil {
			return err
		}
		a.println(display.FormatSuggestions(res))
		return nil
	},
}

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "List cost tiers and domain packs",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), display.FormatTiers())
	},
}

func init() {
	suggestCmd.Flags().StringVarP(&suggestFlags.typ, "type", "t", "research", "mission type: research or engineering")
	suggestCmd.Flags().StringVar(&suggestFlags.domain, "domain", "", "domain pack for research")
}

// advisor picks the topic advisor named by the suggest.backend setting.
func advisor(a *app) (suggest.Advisor, error) {
	if a.cfg.Suggest.Backend == "api" || a.cfg.Suggest.Backend == "" {
		return a.client, nil
	}
	p, err := llm_client.New(llm_client.Config{
		Backend:    a.cfg.Suggest.Backend,
		Model:      a.cfg.Suggest.Model,
		OllamaHost: a.cfg.Suggest.OllamaHost,
	})
	if err != nil {
		return nil, err
	}
	return suggest.NewLLMAdvisor(p, a.cfg.Suggest.Model), nil
}
