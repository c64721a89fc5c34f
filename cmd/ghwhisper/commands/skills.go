package commands

import (
	"fmt"
	"strings"

	"github.com/hupe1980/ghwhisper"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSkillsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "skills [message]",
		Short: "Show skill registry stats, or preview the modules selected for a message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			sel, err := ghwhisper.NewSkillSelector(cfg.Skills, newLogger(cfg).WithComponent("skill"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) > 0 {
				msg := strings.Join(args, " ")
				fmt.Fprintf(out, "selected: %s\n\n", strings.Join(sel.Select(msg), ", "))
				rendered, err := sel.Render(msg)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, rendered)
				return nil
			}

			enc := yaml.NewEncoder(out)
			defer enc.Close()
			enc.SetIndent(2)
			return enc.Encode(sel.Stats())
		},
	}
}
