package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Output shell completion code for the specified shell",
	Long: `
Output shell completion code for the specified shell (bash, zsh, or fish). The
shell code must be evalutated to provide interactive completion of autoviews
commands.

Bash:

  $ source <(autoviews completion bash)

  # To load completions for each session, execute once:
  $ autoviews completion bash > /etc/bash_completion.d/autoviews

Zsh:

  # To load completions for each session, execute once:
  $ autoviews completion zsh > "${fpath[1]}/_autoviews"

fish:

  $ autoviews completion fish | source
`,
	ValidArgs: []string{"bash", "zsh", "fish"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return cmd.Usage()
		}
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return RootCmd.GenBashCompletion(out)
		case "zsh":
			return RootCmd.GenZshCompletion(out)
		case "fish":
			includeDescription := true
			return RootCmd.GenFishCompletion(out, includeDescription)
		}
		return errors.New("Unsupported shell")
	},
}

func init() {
	RootCmd.AddCommand(completionCmd)
}
