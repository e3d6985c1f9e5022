// writerskit is the command-line shell for the writing toolkit: it wires the
// Gemini transport, the resource registry, and the tool engine together and
// streams runs live to the terminal.
//
// Usage:
//
//	export GEMINI_API_KEY="your-api-key"
//	writerskit run proofreader --project ~/novels/rainbook
//	writerskit tui --project ~/novels/rainbook
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/history"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/models/gemini"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/outputs"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/project"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/registry"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/tokens"
	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/toolkit"
)

var (
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	thinkingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFDF5")).Background(lipgloss.Color("#25A065")).Padding(0, 1)
)

var projectDir string

// app bundles the wired core for one command invocation.
type app struct {
	settings project.Settings
	client   *gemini.Client
	registry *registry.Registry
	engine   *toolkit.Engine
	outputs  *outputs.Registry
}

func newApp(ctx context.Context) (*app, error) {
	settings, err := project.Load(projectDir)
	if err != nil {
		return nil, err
	}
	key, err := project.APIKey()
	if err != nil {
		return nil, err
	}
	client, err := gemini.New(ctx, key)
	if err != nil {
		return nil, err
	}

	reg := registry.New(client, settings.Model)
	outs := outputs.NewRegistry()
	eng := toolkit.NewEngine(settings, client, reg, tokens.NewAccountant(client, settings.Model), outs)

	return &app{settings: settings, client: client, registry: reg, engine: eng, outputs: outs}, nil
}

func (a *app) Close() {
	a.client.Close()
}

func setupLogging() error {
	f, err := os.OpenFile("writerskit.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "TRACE":
		logLevel = gemini.LevelTrace
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	}
	handler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
	return nil
}

func newRunCmd() *cobra.Command {
	var manuscript, outline, world, ideas string

	cmd := &cobra.Command{
		Use:   "run <tool>",
		Short: "Run one analysis or generation tool and stream its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			inputs := map[string]string{}
			if manuscript != "" {
				inputs[toolkit.RoleManuscript] = manuscript
			}
			if outline != "" {
				inputs[toolkit.RoleOutline] = outline
			}
			if world != "" {
				inputs[toolkit.RoleWorld] = world
			}
			if ideas != "" {
				inputs[toolkit.RoleIdeas] = ideas
			}

			started := time.Now()
			res, err := a.engine.Execute(ctx, args[0], toolkit.RunOptions{
				Inputs: inputs,
				Logf: func(format string, logArgs ...any) {
					line := fmt.Sprintf(format, logArgs...)
					if strings.HasPrefix(line, "Warning:") {
						fmt.Println(warnStyle.Render(line))
					} else {
						fmt.Println(statusStyle.Render(line))
					}
				},
				OnThinking: func(s string) {
					fmt.Print(thinkingStyle.Render(s))
				},
				OnAnswer: func(s string) {
					fmt.Print(s)
				},
			})
			fmt.Println()
			if res != nil {
				rec := history.Record{
					Tool:           args[0],
					Started:        started,
					ElapsedSeconds: res.Stats.Elapsed.Seconds(),
					Success:        res.Success,
					WordCount:      res.Stats.WordCount,
					PromptTokens:   res.Stats.PromptTokens,
					ResponseTokens: res.Stats.ResponseTokens,
					OutputFiles:    res.OutputFiles,
				}
				if herr := history.Open(a.settings.SaveDir).Append(rec); herr != nil {
					slog.Warn("Could not record run history", "error", herr)
				}
			}
			if err != nil {
				return err
			}
			if !res.Success {
				if res.ErrorType == toolkit.ErrorTypeMissingPrompt {
					// Already explained in the run log; exit nonzero
					// without a stack of wrapping.
					os.Exit(2)
				}
				return fmt.Errorf("run failed")
			}

			fmt.Printf("\n%s  words=%d  prompt_tokens=%d  response_tokens=%d  elapsed=%s\n",
				statusStyle.Render("Done."), res.Stats.WordCount, res.Stats.PromptTokens,
				res.Stats.ResponseTokens, res.Stats.Elapsed.Round(time.Second))
			for _, f := range res.OutputFiles {
				fmt.Println("  " + f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manuscript, "manuscript", "", "manuscript file (default manuscript.txt in the project)")
	cmd.Flags().StringVar(&outline, "outline", "", "outline file (default outline.txt)")
	cmd.Flags().StringVar(&world, "world", "", "world file (default world.txt)")
	cmd.Flags().StringVar(&ideas, "ideas", "", "ideas file (default ideas.txt)")
	return cmd
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(titleStyle.Render("Available tools"))
			fmt.Println()
			for _, t := range toolkit.List() {
				fmt.Printf("  %-28s %s\n", t.ID, t.Description)
			}
			return nil
		},
	}
}

func newTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [file]",
		Short: "Count tokens for a file (or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var data []byte
			if len(args) == 1 && args[0] != "-" {
				data, err = os.ReadFile(a.settings.Resolve(args[0]))
				if err != nil {
					return err
				}
			} else {
				data, err = io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
			}

			acct := tokens.NewAccountant(a.client, a.settings.Model)
			fmt.Println(acct.Count(ctx, string(data)))
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show past runs for this project, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := project.Load(projectDir)
			if err != nil {
				return err
			}
			records, err := history.Open(settings.SaveDir).List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No runs recorded yet.")
				return nil
			}
			for _, r := range records {
				status := "ok"
				if !r.Success {
					status = "FAILED"
				}
				fmt.Printf("%s  %-28s %-6s words=%d tokens=%d/%d\n",
					r.Started.Format(time.RFC822), r.Tool, status,
					r.WordCount, r.PromptTokens, r.ResponseTokens)
			}
			return nil
		},
	}
}

func newCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete all remote files and caches under the current API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report := a.registry.ClearAll(ctx)
			fmt.Printf("Deleted %d files and %d caches.\n", report.FilesDeleted, report.CachesDeleted)
			for _, p := range report.Problems {
				fmt.Println(warnStyle.Render("Warning: " + p))
			}
			return nil
		},
	}
}

func newTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Interactive tool picker with a live streaming view",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return runTUI(ctx, a)
		},
	}
}

func main() {
	if err := setupLogging(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	root := &cobra.Command{
		Use:           "writerskit",
		Short:         "Manuscript analysis and generation tools backed by Gemini",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&projectDir, "project", ".", "project directory (holds writerskit.yaml and the manuscript files)")

	root.AddCommand(newRunCmd(), newToolsCmd(), newTokensCmd(), newHistoryCmd(), newCleanupCmd(), newTUICmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Println(errStyle.Render("Error: " + err.Error()))
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
