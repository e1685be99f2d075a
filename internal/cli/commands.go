package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"incident-search/internal/domain"
	"incident-search/internal/httpapi"
	"incident-search/internal/insights"
	"incident-search/internal/tui"
)

func newSearchCmd(c *cli) *cobra.Command {
	var (
		k      int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <description>",
		Short: "Print the incidents most similar to a description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.close(a)

			query := strings.Join(args, " ")
			res, err := a.Service.FindSimilar(cmd.Context(), query, k)
			if errors.Is(err, domain.ErrEmptyQuery) {
				return errors.New("please enter a description")
			}
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			if len(res) == 0 {
				fmt.Fprintln(c.stdout, "No similar incidents found.")
				return nil
			}
			for i, r := range res {
				if i > 0 {
					fmt.Fprintln(c.stdout)
				}
				fmt.Fprintln(c.stdout, tui.RenderResult(r, len(res), query))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "k", "k", 0, "number of results (defaults to search.default_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func newTUICmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive search screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.close(a)

			m := tui.New(a.Service, a.Config.Search.DefaultK, a.Insights().Summary())
			_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newRecordsCmd(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List loaded incident records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.close(a)

			recs := a.Service.Records()
			if limit > 0 && limit < len(recs) {
				recs = recs[:limit]
			}
			for _, r := range recs {
				fmt.Fprintf(c.stdout, "%s\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Date.Format("2006-01-02"), r.Department, r.Model, r.SubAssembly, r.Description)
			}
			fmt.Fprintf(c.stderr, "%d of %d records\n", len(recs), a.Service.Count())
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to print (0 prints all)")
	return cmd
}

func newInsightsCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "insights",
		Short: "Summarize the corpus by issue type, model, department and month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer c.close(a)

			rep := a.Insights()
			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			fmt.Fprintln(c.stdout, rep.Summary())
			printCounts(c, "Issue types", rep.IssueTypes)
			printCounts(c, "Top models", rep.TopModels)
			printCounts(c, "Departments", rep.Departments)
			printCounts(c, "Monthly trend", rep.MonthlyTrend)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search, records and insights over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			a, err := c.open(ctx, reg)
			if err != nil {
				return err
			}
			defer c.close(a)

			if addr == "" {
				addr = a.Config.Server.Addr
			}
			srv := httpapi.New(a.Service, reg, a.Config.Insights.TopModels, a.Log)
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to server.addr)")
	return cmd
}

func printCounts(c *cli, title string, counts []insights.Count) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(c.stdout, "\n%s\n", title)
	for _, ct := range counts {
		fmt.Fprintf(c.stdout, "  %-24s %d\n", ct.Label, ct.Count)
	}
}
