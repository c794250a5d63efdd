package assignctl

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"outreach_backend/internal/assignment/transport"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:8080"

type options struct {
	apiURL  string
	secret  string
	output  string
	timeout time.Duration
	out     io.Writer
}

func (o *options) client() *Client {
	return NewClient(o.apiURL, o.secret, o.timeout)
}

func (o *options) printer() (*Printer, error) {
	return NewPrinter(o.out, o.output)
}

// RootCmd returns the assignctl command tree.
func RootCmd() *cobra.Command {
	opts := &options{out: os.Stdout}

	root := &cobra.Command{
		Use:   "assignctl",
		Short: "Operate the contact-to-campaign assignment pipeline",
		Long: `assignctl talks to the assignment API with the cron secret.
Trigger runs and fan-outs, steer batches, tune the quota settings and
browse the assignment log.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.out = cmd.OutOrStdout()
		},
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", envOr("ASSIGNCTL_API_URL", defaultAPIURL), "base URL of the API")
	root.PersistentFlags().StringVar(&opts.secret, "secret", os.Getenv("CRON_SECRET"), "cron secret sent as X-Cron-Secret")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", OutputTable, "output format: table, json or yaml")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", defaultTimeout, "request timeout")

	root.AddCommand(runCmd(opts))
	root.AddCommand(orchestrateCmd(opts))
	root.AddCommand(settingsCmd(opts))
	root.AddCommand(batchesCmd(opts))
	root.AddCommand(logsCmd(opts))
	return root
}

type limitFlags struct {
	maxTotal, maxPerPlatform, delayMs, chunkSize int
}

func (l *limitFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&l.maxTotal, "max-total", 0, "override the total contact limit")
	cmd.Flags().IntVar(&l.maxPerPlatform, "max-per-platform", 0, "override the per-platform limit")
	cmd.Flags().IntVar(&l.delayMs, "delay-ms", 0, "override the delay between contacts")
	cmd.Flags().IntVar(&l.chunkSize, "chunk-size", 0, "override the chunk size")
}

// changed returns the overrides the user actually passed.
func (l *limitFlags) changed(cmd *cobra.Command) (maxTotal, maxPer, delay, chunk *int) {
	pick := func(name string, v int) *int {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	return pick("max-total", l.maxTotal), pick("max-per-platform", l.maxPerPlatform),
		pick("delay-ms", l.delayMs), pick("chunk-size", l.chunkSize)
}

func runCmd(opts *options) *cobra.Command {
	var (
		limits   limitFlags
		dryRun   bool
		resume   string
		platform string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start or continue an assignment run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := transport.RunRequest{DryRun: dryRun, ResumeBatchID: resume}
			req.MaxTotal, req.MaxPerPlatform, req.DelayBetweenContactsMs, req.ChunkSize = limits.changed(cmd)
			if platform != "" {
				id, err := uuid.Parse(platform)
				if err != nil {
					return fmt.Errorf("invalid --platform: %w", err)
				}
				req.PlatformID = &id
			}

			p, err := opts.printer()
			if err != nil {
				return err
			}
			resp, err := opts.client().Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printRun(tw, resp) })
		},
	}
	limits.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify without touching the campaign system")
	cmd.Flags().StringVar(&resume, "resume", "", "continue this batch")
	cmd.Flags().StringVar(&platform, "platform", "", "restrict the run to one platform")
	return cmd
}

func orchestrateCmd(opts *options) *cobra.Command {
	var (
		limits limitFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Fan a run out to one worker per platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := transport.OrchestrateRequest{DryRun: dryRun}
			req.MaxTotal, req.MaxPerPlatform, req.DelayBetweenContactsMs, req.ChunkSize = limits.changed(cmd)

			p, err := opts.printer()
			if err != nil {
				return err
			}
			resp, err := opts.client().Orchestrate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printOrchestration(tw, resp) })
		},
	}
	limits.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "dispatch dry-run workers")
	return cmd
}

func settingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the quota settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the quota settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			resp, err := opts.client().Settings(cmd.Context())
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printSettings(tw, resp) })
		},
	})

	var (
		maxTotal, maxPer, delay int
		enabled                 bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the quota settings; omitted flags keep their value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := opts.printer()
			if err != nil {
				return err
			}
			client := opts.client()
			current, err := client.Settings(cmd.Context())
			if err != nil {
				return err
			}

			req := transport.UpdateSettingsRequest{
				MaxTotalContacts:       current.MaxTotalContacts,
				MaxPerPlatform:         current.MaxPerPlatform,
				DelayBetweenContactsMs: current.DelayBetweenContactsMs,
				IsEnabled:              &current.IsEnabled,
			}
			if cmd.Flags().Changed("max-total") {
				req.MaxTotalContacts = maxTotal
			}
			if cmd.Flags().Changed("max-per-platform") {
				req.MaxPerPlatform = maxPer
			}
			if cmd.Flags().Changed("delay-ms") {
				req.DelayBetweenContactsMs = delay
			}
			if cmd.Flags().Changed("enabled") {
				req.IsEnabled = &enabled
			}

			resp, err := client.UpdateSettings(cmd.Context(), req)
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printSettings(tw, resp) })
		},
	}
	set.Flags().IntVar(&maxTotal, "max-total", 0, "total contacts per run")
	set.Flags().IntVar(&maxPer, "max-per-platform", 0, "contacts per platform per run")
	set.Flags().IntVar(&delay, "delay-ms", 0, "delay between contacts in milliseconds")
	set.Flags().BoolVar(&enabled, "enabled", true, "enable scheduled assignment")
	cmd.AddCommand(set)
	return cmd
}

func batchesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "batches",
		Aliases: []string{"batch"},
		Short:   "List, inspect and steer batches",
	}

	var (
		status, orchestration string
		page, limit           int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			setIf(query, "status", status)
			setIf(query, "orchestrationId", orchestration)
			setInt(query, "page", page)
			setInt(query, "limit", limit)

			p, err := opts.printer()
			if err != nil {
				return err
			}
			resp, err := opts.client().Batches(cmd.Context(), query)
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printBatches(tw, resp) })
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&orchestration, "orchestration", "", "filter by orchestration id")
	list.Flags().IntVar(&page, "page", 0, "page number")
	list.Flags().IntVar(&limit, "limit", 0, "page size")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get BATCH_ID",
		Short: "Show one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printBatchCall(opts, func(c *Client) (transport.BatchResponse, error) {
				return c.Batch(cmd.Context(), args[0])
			})
		},
	})

	for _, action := range []string{"pause", "resume", "cancel"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action + " BATCH_ID",
			Short: "Post " + action + " for a batch",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printBatchCall(opts, func(c *Client) (transport.BatchResponse, error) {
					return c.SteerBatch(cmd.Context(), args[0], action)
				})
			},
		})
	}
	return cmd
}

func printBatchCall(opts *options, call func(*Client) (transport.BatchResponse, error)) error {
	p, err := opts.printer()
	if err != nil {
		return err
	}
	resp, err := call(opts.client())
	if err != nil {
		return err
	}
	return p.Print(resp, func(tw *tabwriter.Writer) { printBatch(tw, resp) })
}

func logsCmd(opts *options) *cobra.Command {
	var (
		status, platform, batch, from, to, search string
		page, limit                               int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Browse the assignment log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query := url.Values{}
			setIf(query, "status", status)
			setIf(query, "platformId", platform)
			setIf(query, "batchId", batch)
			setIf(query, "dateFrom", from)
			setIf(query, "dateTo", to)
			setIf(query, "search", search)
			setInt(query, "page", page)
			setInt(query, "limit", limit)

			p, err := opts.printer()
			if err != nil {
				return err
			}
			resp, err := opts.client().Logs(cmd.Context(), query)
			if err != nil {
				return err
			}
			return p.Print(resp, func(tw *tabwriter.Writer) { printLogs(tw, resp) })
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by classification")
	cmd.Flags().StringVar(&platform, "platform", "", "filter by platform id")
	cmd.Flags().StringVar(&batch, "batch", "", "filter by batch id")
	cmd.Flags().StringVar(&from, "from", "", "from date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "to date, inclusive for calendar dates")
	cmd.Flags().StringVar(&search, "search", "", "search email, contact or company")
	cmd.Flags().IntVar(&page, "page", 0, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size")
	return cmd
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setInt(q url.Values, key string, value int) {
	if value > 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
