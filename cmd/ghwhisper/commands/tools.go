package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/hupe1980/ghwhisper/config"
	"github.com/hupe1980/ghwhisper/tool/mcp"
	"github.com/spf13/cobra"
)

func newToolsCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools exposed by the GitHub MCP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if cfg.MCP.Token == "" {
				return fmt.Errorf("%w: %s", config.ErrMissingEnv, config.EnvGitHubPAT)
			}

			client := mcp.NewClient(func(o *mcp.Options) {
				o.URL = cfg.MCP.URL
				o.Token = cfg.MCP.Token
				o.Toolsets = cfg.MCP.Toolsets
				o.Readonly = cfg.MCP.Readonly
				o.Logger = newLogger(cfg).WithComponent("mcp")
			})
			defer client.Close()

			tools, err := client.ListTools(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, t := range tools {
				desc, _, _ := strings.Cut(t.Description, "\n")
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, desc)
			}
			fmt.Fprintf(tw, "\n%d tools\n", len(tools))
			return tw.Flush()
		},
	}
}
