package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

var completionInstall bool

// shellCompletion describes how to generate and install completions for one
// shell. installPath is nil when the shell has no per-user location.
type shellCompletion struct {
	generate    func(w io.Writer) error
	loadHint    string
	installPath func(home string) string
	afterHint   func(target string) string
}

var shellCompletions = map[string]shellCompletion{
	"bash": {
		generate: func(w io.Writer) error { return rootCmd.GenBashCompletionV2(w, true) },
		loadHint: `eval "$(tledger completion bash)"`,
		installPath: func(home string) string {
			return filepath.Join(home, ".local", "share", "bash-completion", "completions", "tledger")
		},
		afterHint: func(target string) string {
			return "Restart your shell or run: source " + target
		},
	},
	"zsh": {
		generate: func(w io.Writer) error { return rootCmd.GenZshCompletion(w) },
		loadHint: `eval "$(tledger completion zsh)"`,
		installPath: func(home string) string {
			return filepath.Join(home, ".local", "share", "zsh", "site-functions", "_tledger")
		},
		afterHint: func(target string) string {
			return fmt.Sprintf("Ensure %s is in your fpath, then run: autoload -Uz compinit && compinit", filepath.Dir(target))
		},
	},
	"fish": {
		generate: func(w io.Writer) error { return rootCmd.GenFishCompletion(w, true) },
		loadHint: "tledger completion fish | source",
		installPath: func(home string) string {
			return filepath.Join(home, ".config", "fish", "completions", "tledger.fish")
		},
		afterHint: func(string) string {
			return "Completions will be available in new fish sessions automatically."
		},
	},
	"powershell": {
		generate: func(w io.Writer) error { return rootCmd.GenPowerShellCompletionWithDesc(w) },
		loadHint: "tledger completion powershell | Out-String | Invoke-Expression",
	},
}

func supportedShells() []string {
	shells := make([]string, 0, len(shellCompletions))
	for name := range shellCompletions {
		shells = append(shells, name)
	}
	sort.Strings(shells)
	return shells
}

var completionCmd = &cobra.Command{
	Use:   "completion <shell>",
	Short: "Set up shell completions for tledger",
	Long: `Set up shell tab-completions for tledger commands, flags and statuses.

Supported shells: bash, zsh, fish, powershell

Quick install (writes the script to a per-user completion directory):

  tledger completion bash --install
  tledger completion zsh --install
  tledger completion fish --install

Or print the completion script to stdout:

  tledger completion bash`,
	ValidArgs: []string{"bash", "fish", "powershell", "zsh"},
	Args:      cobra.MaximumNArgs(1),
	RunE:      runCompletion,
}

func runCompletion(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	shell, ok := shellCompletions[args[0]]
	if !ok {
		return fmt.Errorf("unsupported shell %q (supported: %s)", args[0], strings.Join(supportedShells(), ", "))
	}

	if completionInstall {
		return installCompletion(cmd, args[0], shell)
	}

	// Hints go to stderr so the script can be piped into eval.
	fmt.Fprintf(cmd.ErrOrStderr(), "# To load completions in your current session:\n#   %s\n", shell.loadHint)
	return shell.generate(cmd.OutOrStdout())
}

func installCompletion(cmd *cobra.Command, name string, shell shellCompletion) error {
	if shell.installPath == nil {
		return fmt.Errorf("automatic install is not supported for %s; run 'tledger completion %s' and add the output to your profile", name, name)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("detecting home directory: %w", err)
	}
	target := shell.installPath(home)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("creating completion directory: %w", err)
	}

	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating completion file %s: %w", target, err)
	}
	writeErr := shell.generate(f)
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing completion file %s: %w", target, closeErr)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s completions installed to %s\n", name, target)
	fmt.Fprintln(out, shell.afterHint(target))
	return nil
}

// completeStatusArg completes the status argument of "task status". Only the
// targets UpdateStatus accepts are offered.
func completeStatusArg(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 1 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{
		string(models.StatusInProgress) + "\tStart or resume work",
		string(models.StatusPaused) + "\tPause work (requires --reason)",
		string(models.StatusBlocked) + "\tWaiting on something external",
		string(models.StatusDone) + "\tComplete the task",
	}, cobra.ShellCompDirectiveNoFileComp
}

func init() {
	completionCmd.Flags().BoolVar(&completionInstall, "install", false,
		"Install completions into a per-user completion directory")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)

	taskStatusCmd.ValidArgsFunction = completeStatusArg
}
