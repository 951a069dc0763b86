package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"deep-research/internal/app"
	"deep-research/internal/tui"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	repoURL = "https://github.com/deepresearch-cli/deepr"
)

func getBinaryPath() string {
	exe, _ := os.Executable()
	return exe
}

// applyEnvOverrides fills credentials from the environment when the config
// file leaves them empty. DEEPR_API_KEY wins over OPENAI_API_KEY; a value in
// the config file wins over both. DEEPR_BASE_URL always applies so a proxy
// can be pointed at without editing the file.
func applyEnvOverrides(cfg *app.Config) {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		if v := os.Getenv("DEEPR_API_KEY"); v != "" {
			cfg.OpenAIAPIKey = v
		} else if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.OpenAIAPIKey = v
		}
	}
	if v := os.Getenv("DEEPR_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
}

func generateCompletion(shell string) error {
	switch shell {
	case "bash":
		fmt.Println("# bash completion for deepr")
		fmt.Println("_deepr_completions() {")
		fmt.Println("    local cur prev opts")
		fmt.Println("    COMPREPLY=()")
		fmt.Println("    cur=\"${COMP_WORDS[COMP_CWORD]}\"")
		fmt.Println("    prev=\"${COMP_WORDS[COMP_CWORD-1]}\"")
		fmt.Println("    opts=\"run history show delete completion help version --mock --max-attempts --out --help\"")
		fmt.Println("    if [[ $COMP_CWORD -eq 1 ]]; then")
		fmt.Println("        COMPREPLY=( $(compgen -W \"${opts}\" -- \"${cur}\" )")
		fmt.Println("    fi")
		fmt.Println("    return 0")
		fmt.Println("}")
		fmt.Println("complete -F _deepr_completions deepr")
	case "zsh":
		fmt.Println("# zsh completion for deepr")
		fmt.Println("compdef _deepr deepr")
		fmt.Println("_deepr() {")
		fmt.Println("    _arguments -C \\")
		fmt.Println("        '(-h --help)'{-h,--help}'[show help]' \\")
		fmt.Println("        '(-v --version)'{-v,--version}'[print version]' \\")
		fmt.Println("        '(-m --mock)'{-m,--mock}'[use canned responses]' \\")
		fmt.Println("        '*::command:->command'")
		fmt.Println("    case $state in")
		fmt.Println("        command)")
		fmt.Println("            if (( CURRENT == 1 )); then")
		fmt.Println("                _describe -t commands 'deepr commands' commands")
		fmt.Println("            fi")
		fmt.Println("            ;;")
		fmt.Println("    esac")
		fmt.Println("}")
	case "fish":
		fmt.Println("# fish completion for deepr")
		fmt.Println("complete -c deepr -f -a '(run history show delete completion help version)'")
		fmt.Println("complete -c deepr -s h -l help -d 'Show help'")
		fmt.Println("complete -c deepr -s v -l version -d 'Print version'")
		fmt.Println("complete -c deepr -s m -l mock -d 'Use canned responses'")
		fmt.Println("complete -c deepr -s a -l max-attempts -d 'Cap the search loop'")
	default:
		return fmt.Errorf("unsupported shell: %s", shell)
	}
	return nil
}

// openForHistory builds an application around the run store alone. The mock
// gateway stands in so no credential is needed to browse history.
func openForHistory() (*app.Application, error) {
	cfg, err := app.LoadConfig(app.DefaultConfigPath())
	if err != nil {
		return nil, err
	}
	return app.NewApplication(cfg, true)
}

func main() {
	root := &cobra.Command{
		Use:     "deepr",
		Short:   "deepr - interactive deep research from the terminal",
		Long:    "deepr runs an interactive research workflow: clarifying questions,\na search plan, a bounded web-search loop, and a cited markdown report.\n\nUse without arguments for the TUI, or the 'run' subcommand for headless runs.\n\nFor more information, visit: " + repoURL,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Printf("deepr v%s\n", version)
				fmt.Printf("Repository: %s\n", repoURL)
				fmt.Printf("Installed at: %s\n", getBinaryPath())
				return nil
			}

			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			applyEnvOverrides(&cfg)

			mock, _ := cmd.Flags().GetBool("mock")
			if !mock && strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
				// First run: collect a key before the workflow starts. A
				// cancelled wizard drops to mock mode, which the TUI labels.
				wizard := tui.NewSetupWizard(&cfg)
				if _, err := tea.NewProgram(wizard).Run(); err != nil {
					return err
				}
				if wizard.Saved() {
					cfg = wizard.GetConfig()
				} else {
					fmt.Println("No API key configured; starting in mock mode.")
					mock = true
				}
			}

			application, err := app.NewApplication(cfg, mock)
			if err != nil {
				return err
			}
			defer application.Close()

			p := tea.NewProgram(tui.NewMainModel(application, mock))
			if _, err := p.Run(); err != nil {
				return err
			}
			return nil
		},
	}

	root.Flags().BoolP("mock", "m", false, "Use canned responses instead of the OpenAI API")
	root.Flags().BoolP("version", "v", false, "Print version information")

	runCmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Run the research workflow without the TUI",
		Long:  "Run the full workflow headlessly: clarifying questions are printed and\nanswers read from stdin, one per line; the report goes to stdout.\n\nExamples:\n  - deepr run \"Best espresso grinders under $500\"\n  - deepr run --max-attempts 6 \"Topic\" --out report.md\n  - deepr run --mock \"Anything\"",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			cfg, err := app.LoadConfig(app.DefaultConfigPath())
			if err != nil {
				return err
			}
			applyEnvOverrides(&cfg)
			if runMaxAttempts > 0 {
				cfg.MaxAttempts = runMaxAttempts
			}

			if !runMock && strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
				return fmt.Errorf("no API key configured. Set OPENAI_API_KEY or start deepr without arguments to run setup")
			}

			application, err := app.NewApplication(cfg, runMock)
			if err != nil {
				return err
			}
			defer application.Close()

			reader := bufio.NewReader(os.Stdin)

			topic := ""
			if len(args) > 0 {
				topic = args[0]
			} else {
				fmt.Print("Research topic: ")
				line, err := reader.ReadString('\n')
				if err != nil && strings.TrimSpace(line) == "" {
					return fmt.Errorf("error reading topic: %w", err)
				}
				topic = line
			}
			topic = strings.TrimSpace(topic)
			if topic == "" {
				return fmt.Errorf("no topic provided")
			}

			answerFunc := func(questions []string) ([]string, error) {
				fmt.Println("\nClarifying questions:")
				answers := make([]string, 0, len(questions))
				for _, q := range questions {
					fmt.Println(q)
					fmt.Print("> ")
					line, err := reader.ReadString('\n')
					if err != nil && strings.TrimSpace(line) == "" {
						return nil, fmt.Errorf("error reading answer: %w", err)
					}
					answers = append(answers, strings.TrimSpace(line))
				}
				fmt.Println()
				return answers, nil
			}

			sink := func(ev app.ResearchEvent) {
				switch ev.Kind {
				case app.EventPlanned:
					fmt.Printf("goal: %s\n", ev.Detail)
				case app.EventSearchStart:
					fmt.Printf("[attempt %d] searching: %s\n", ev.Attempt, ev.Query)
				case app.EventEvaluated:
					fmt.Printf("[attempt %d] evaluator says: %s\n", ev.Attempt, ev.Detail)
				case app.EventRegenerated:
					fmt.Printf("[attempt %d] %s\n", ev.Attempt, ev.Detail)
				}
			}

			start := time.Now()
			sess, result, err := application.ExecuteResearch(ctx, topic, answerFunc, sink)
			duration := time.Since(start)
			if err != nil {
				return err
			}

			fmt.Printf("\nResearch Complete\n")
			fmt.Printf("Duration: %v\n", duration)
			fmt.Printf("Attempts: %d\n", result.Attempts)
			fmt.Printf("Status: %s\n\n", result.Status)

			if result.Status == app.RunExhausted {
				fmt.Println("The evaluator never accepted a collected set; no report was written.")
				return nil
			}

			if runOut != "" {
				if err := os.WriteFile(runOut, []byte(sess.Report), 0o644); err != nil {
					return err
				}
				fmt.Printf("Report written to %s\n", runOut)
				return nil
			}
			fmt.Println(sess.Report)
			return nil
		},
	}

	runCmd.Flags().IntVarP(&runMaxAttempts, "max-attempts", "a", 0, "Override the attempt cap for this run")
	runCmd.Flags().BoolVarP(&runMock, "mock", "m", false, "Use canned responses instead of the OpenAI API")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "Write the report to a file instead of stdout")
	root.AddCommand(runCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List stored research runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openForHistory()
			if err != nil {
				return err
			}
			defer application.Close()

			runs, err := application.ListRuns(historyLimit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No stored runs.")
				return nil
			}
			for _, r := range runs {
				fmt.Printf("%s  %-9s  attempts:%d  %s  %s\n",
					r.ID, r.Status, r.Attempts, r.UpdatedAt.Format("2006-01-02 15:04"), r.Topic)
			}
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of runs to list")
	root.AddCommand(historyCmd)

	showCmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Print a stored run and its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openForHistory()
			if err != nil {
				return err
			}
			defer application.Close()

			sess, err := application.LoadRun(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Topic:    %s\n", sess.Topic)
			fmt.Printf("Status:   %s\n", sess.Status)
			fmt.Printf("Attempts: %d\n", sess.Attempt)
			if sess.Goal != "" {
				fmt.Printf("Goal:     %s\n", sess.Goal)
			}
			fmt.Println()
			if sess.Report != "" {
				fmt.Println(sess.Report)
			} else {
				fmt.Println("No report; the run did not converge.")
			}
			return nil
		},
	}
	root.AddCommand(showCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete [run-id]",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := openForHistory()
			if err != nil {
				return err
			}
			defer application.Close()

			if err := application.DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}
	root.AddCommand(deleteCmd)

	completionCmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion",
		Long:  "Generate shell completion script for deepr.\n\nExamples:\n  - deepr completion bash >> ~/.bashrc\n  - deepr completion zsh > ~/.zsh/completion/_deepr\n  - deepr completion fish > ~/.config/fish/completions/deepr.fish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateCompletion(args[0])
		},
	}
	root.AddCommand(completionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	runMaxAttempts int
	runMock        bool
	runOut         string
	historyLimit   int
)
