package cli

import (
	"context"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gearlayout/pkg/document"
	"github.com/matzehuels/gearlayout/pkg/pipeline"
	"github.com/matzehuels/gearlayout/pkg/render/plan"
	"github.com/matzehuels/gearlayout/pkg/storage"
)

// completionFunc matches cobra's ValidArgsFunction and flag completion hooks.
type completionFunc = func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective)

// documentExtensions are offered when completing layout file arguments.
var documentExtensions = []string{"json", "yaml", "yml", "toml"}

// renderFormats are the artifact formats; json is a solution, not a drawing.
var renderFormats = []string{pipeline.FormatSVG, pipeline.FormatPNG, pipeline.FormatPDF, pipeline.FormatDOT}

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for gearlayout.

To load completions:

Bash:
  $ source <(gearlayout completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ gearlayout completion bash > /etc/bash_completion.d/gearlayout
  # macOS:
  $ gearlayout completion bash > $(brew --prefix)/etc/bash_completion.d/gearlayout

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ gearlayout completion zsh > "${fpath[1]}/_gearlayout"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ gearlayout completion fish | source

  # To load completions for each session, execute once:
  $ gearlayout completion fish > ~/.config/fish/completions/gearlayout.fish

PowerShell:
  PS> gearlayout completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> gearlayout completion powershell > gearlayout.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			}
			return nil
		},
	}

	return cmd
}

// registerCompletions attaches argument and flag-value completions to the
// layout commands under root.
func (c *CLI) registerCompletions(root *cobra.Command) {
	flagValues := map[string]map[string]completionFunc{
		"solve": {
			"format": completeValues(document.Formats),
		},
		"render": {
			"format": completeList(pipeline.ValidFormats),
			"viz":    completeValues(pipeline.ValidVizTypes),
			"view":   completeValues(plan.Views),
		},
		"watch": {
			"render": completeList(renderFormats),
		},
		"show": {
			"format": completeValues(document.Formats),
		},
	}

	var walk func(*cobra.Command)
	walk = func(cmd *cobra.Command) {
		switch cmd.CommandPath() {
		case appName + " solve", appName + " validate", appName + " render", appName + " step", appName + " watch":
			cmd.ValidArgsFunction = completeDocuments
		case appName + " history show":
			cmd.ValidArgsFunction = c.completeLayoutIDs
		}
		for name, fn := range flagValues[cmd.Name()] {
			if cmd.Flags().Lookup(name) != nil {
				_ = cmd.RegisterFlagCompletionFunc(name, fn)
			}
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(root)
}

// completeDocuments limits file completion to layout documents.
func completeDocuments(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return documentExtensions, cobra.ShellCompDirectiveFilterFileExt
}

// completeValues offers a fixed set of values.
func completeValues(values []string) completionFunc {
	return func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// completeList offers values for a comma-separated flag. Values already
// typed before the last comma are kept as a prefix and not offered again.
func completeList(values []string) completionFunc {
	return func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var prefix string
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix = toComplete[:i+1]
		}
		chosen := strings.Split(prefix, ",")
		out := make([]string, 0, len(values))
		for _, v := range values {
			if !slices.Contains(chosen, v) {
				out = append(out, prefix+v)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	}
}

// completeLayoutIDs offers ids from the history store. Completion never
// creates a SQLite database that does not exist yet.
func (c *CLI) completeLayoutIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg := c.config().Storage
	if cfg.Backend == "" || cfg.Backend == storage.BackendNone {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	if cfg.Backend == storage.BackendSQLite {
		if _, err := os.Stat(cfg.SQLitePath); err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var ids []string
	_ = c.withStore(ctx, func(st storage.Store) error {
		list, err := st.List(ctx, storage.DefaultListLimit)
		if err != nil {
			return err
		}
		for _, s := range list {
			desc := s.Status
			if s.Name != "" {
				desc = s.Name + " (" + s.Status + ")"
			}
			ids = append(ids, s.ID+"\t"+desc)
		}
		return nil
	})
	return ids, cobra.ShellCompDirectiveNoFileComp
}
