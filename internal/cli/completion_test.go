package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCompletionCommand_Registration(t *testing.T) {
	found := false
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == "completion" {
			found = true
			break
		}
	}
	if !found {
		t.Error("completion command not registered on root")
	}
	if !rootCmd.CompletionOptions.DisableDefaultCmd {
		t.Error("expected Cobra default completion command to be disabled")
	}
}

func TestCompletionCommand_NoArgsShowsHelp(t *testing.T) {
	out, err := runRoot(t, "completion")
	if err != nil {
		t.Fatalf("completion with no args should show help, not error: %v", err)
	}
	if !strings.Contains(out, "Quick install") {
		t.Error("no-args output should show help with install instructions")
	}
}

func TestCompletionCommand_Scripts(t *testing.T) {
	tests := map[string]string{
		"bash":       "__start_tledger",
		"zsh":        "compdef",
		"fish":       "complete",
		"powershell": "Register-ArgumentCompleter",
	}
	for shell, marker := range tests {
		t.Run(shell, func(t *testing.T) {
			out, err := runRoot(t, "completion", shell)
			if err != nil {
				t.Fatalf("completion %s failed: %v", shell, err)
			}
			if !strings.Contains(out, marker) {
				t.Errorf("%s completion output should contain %q", shell, marker)
			}
		})
	}
}

func TestCompletionCommand_UnsupportedShell(t *testing.T) {
	if _, err := runRoot(t, "completion", "nushell"); err == nil {
		t.Error("expected error for unsupported shell")
	}
}

func TestCompletionCommand_Install(t *testing.T) {
	tests := []struct {
		shell  string
		target []string
		marker string
	}{
		{"bash", []string{".local", "share", "bash-completion", "completions", "tledger"}, "__start_tledger"},
		{"zsh", []string{".local", "share", "zsh", "site-functions", "_tledger"}, "compdef"},
		{"fish", []string{".config", "fish", "completions", "tledger.fish"}, "complete"},
	}
	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			home := t.TempDir()
			t.Setenv("HOME", home)
			t.Setenv("USERPROFILE", home)

			if _, err := runRoot(t, "completion", tt.shell, "--install"); err != nil {
				t.Fatalf("completion %s --install failed: %v", tt.shell, err)
			}

			target := filepath.Join(append([]string{home}, tt.target...)...)
			data, err := os.ReadFile(target)
			if err != nil {
				t.Fatalf("expected completion file at %s: %v", target, err)
			}
			if !strings.Contains(string(data), tt.marker) {
				t.Errorf("completion file should contain %q", tt.marker)
			}
		})
	}
}

func TestCompletionCommand_InstallPowershellFails(t *testing.T) {
	_, err := runRoot(t, "completion", "powershell", "--install")
	if err == nil {
		t.Fatal("expected error for powershell --install")
	}
	if !strings.Contains(err.Error(), "not supported") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompleteStatusArg(t *testing.T) {
	got, _ := completeStatusArg(nil, []string{"T-1"}, "")
	if len(got) != 4 {
		t.Fatalf("expected 4 status completions, got %v", got)
	}
	for _, c := range got {
		if strings.HasPrefix(c, "UNCLAIMED") || strings.HasPrefix(c, "CLAIMED") {
			t.Errorf("completion %q is not accepted by task status", c)
		}
	}

	if got, _ := completeStatusArg(nil, nil, ""); got != nil {
		t.Errorf("expected no completions for the task id position, got %v", got)
	}
}
