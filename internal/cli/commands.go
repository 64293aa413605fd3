package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docqa/internal/httpapi"
	"docqa/internal/service"
	"docqa/internal/tui"
)

var (
	headingf = color.New(color.FgCyan, color.Bold).SprintfFunc()
	sourcef  = color.New(color.FgGreen).SprintfFunc()
	dimf     = color.New(color.Faint).SprintfFunc()
	errorf   = color.New(color.FgRed).SprintfFunc()
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(a.cfg, a.logger)
			if err != nil {
				return err
			}
			users, err := openHistory(a.cfg)
			if err != nil {
				return err
			}
			srv, err := httpapi.New(svc, users, httpapi.Options{
				UploadDir:      a.cfg.Server.UploadDir,
				MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20,
			}, a.logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
		},
	}
}

func newIndexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index <file>...",
		Short: "Extract, chunk and index documents (globs allowed)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(a.cfg, a.logger)
			if err != nil {
				return err
			}
			results, err := svc.IngestPaths(cmd.Context(), args)
			printUploads(cmd.OutOrStdout(), results)
			return err
		},
	}
}

func printUploads(w io.Writer, results []service.UploadResult) {
	for _, r := range results {
		fmt.Fprintf(w, "%s %s\n", sourcef("%s", r.SourceID), dimf("(%d chunks)", r.Chunks))
		if r.Summary != "" {
			fmt.Fprintf(w, "  %s\n", r.Summary)
		}
	}
}

func newAskCmd(a *app) *cobra.Command {
	var (
		topK    int
		preview bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			svc, err := buildService(a.cfg, a.logger)
			if err != nil {
				return err
			}
			ask := svc.Ask
			if preview {
				ask = svc.Preview
			}
			ans, err := ask(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			printAnswer(cmd.OutOrStdout(), ans, preview)
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of distinct chunks to use (defaults to retrieval.top_k)")
	cmd.Flags().BoolVar(&preview, "preview", false, "print the prompt instead of calling the responder")
	return cmd
}

func printAnswer(w io.Writer, ans service.Answer, preview bool) {
	if preview {
		fmt.Fprintln(w, headingf("Prompt"))
		fmt.Fprintln(w, ans.Prompt)
	} else {
		fmt.Fprintln(w, headingf("Answer"))
		fmt.Fprintln(w, ans.Answer)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingf("Sources"))
	if len(ans.Sources) == 0 {
		fmt.Fprintln(w, dimf("none"))
	}
	for _, c := range ans.Sources {
		fmt.Fprintf(w, "%s %s\n  %s\n",
			sourcef("%s part %d", c.SourceID, c.Position),
			dimf("distance=%.4f", c.Distance),
			c.Snippet,
		)
	}
}

func newTUICmd(a *app) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "tui [file]...",
		Short: "Index the given documents and open the interactive UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(a.cfg, a.logger)
			if err != nil {
				return err
			}
			var summary string
			if len(args) > 0 {
				results, err := svc.IngestPaths(cmd.Context(), args)
				if err != nil {
					return err
				}
				summary = joinSummaries(results)
			}
			m := tui.New(svc, summary, tui.Options{
				TopK:        topK,
				PreviewOnly: !svc.HasResponder(),
				Timeout:     a.cfg.RetrievalTimeout(),
			})
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of distinct chunks to use (defaults to retrieval.top_k)")
	return cmd
}

func joinSummaries(results []service.UploadResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Summary != "" {
			parts = append(parts, r.SourceID+": "+r.Summary)
		}
	}
	return strings.Join(parts, "\n")
}
