package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"umkm/internal/backend"
	"umkm/internal/core"
	"umkm/internal/export"
	"umkm/internal/income"
)

const commandTimeout = 60 * time.Second

// app carries what every subcommand needs.
type app struct {
	open func(ctx context.Context) (*backend.Backend, error)
	now  func() time.Time
}

// account holds the login flags shared by overview and export.
type account struct {
	email    string
	password string
}

func (a *account) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&a.email, "email", "", "Account email")
	cmd.Flags().StringVar(&a.password, "password", os.Getenv("UMKM_PASSWORD"), "Account password (default $UMKM_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "umkm-report",
		Short:         "Income reports and account chores for the UMKM dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newOverviewCmd(a),
		newExportCmd(a),
		newApproveCmd(a),
		newSheetsAuthCmd(),
	)
	return root
}

// incomes logs in and lists the account's incomes.
func (a *app) incomes(ctx context.Context, acct account) (core.Profile, []core.Income, error) {
	b, err := a.open(ctx)
	if err != nil {
		return core.Profile{}, nil, err
	}
	defer b.Close()

	res, err := b.Auth.Login(ctx, core.Credentials{Email: core.NormalizeEmail(acct.email), Password: acct.password})
	if err != nil {
		return core.Profile{}, nil, fmt.Errorf("login as %s: %w", acct.email, err)
	}
	p := core.Principal{UMKMID: res.Profile.ID, Token: res.Token}
	records, err := b.Incomes.ListIncomes(ctx, p)
	if err != nil {
		return core.Profile{}, nil, fmt.Errorf("list incomes: %w", err)
	}
	return res.Profile, records, nil
}

type overviewCmd struct {
	app    *app
	acct   account
	asJSON bool
}

func newOverviewCmd(a *app) *cobra.Command {
	oc := &overviewCmd{app: a}
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Print the monthly income overview",
		RunE:  oc.run,
	}
	oc.acct.bind(cmd)
	cmd.Flags().BoolVar(&oc.asJSON, "json", false, "Print the overview as JSON")
	return cmd
}

func (oc *overviewCmd) run(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	profile, records, err := oc.app.incomes(ctx, oc.acct)
	if err != nil {
		return err
	}
	ov := income.Aggregate(records)

	if oc.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ov)
	}
	return printOverview(cmd.OutOrStdout(), profile.Name, ov)
}

func printOverview(out io.Writer, name string, ov income.Overview) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n\n", name)
	fmt.Fprintln(tw, "Bulan\tPendapatan")
	for _, p := range ov.MonthlySeries {
		fmt.Fprintf(tw, "%s\t%s\n", p.Month, core.FormatIDR(p.Amount))
	}
	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "Total\t%s\n", core.FormatIDR(ov.TotalIncome))
	fmt.Fprintf(tw, "Rata-rata\t%s\n", core.FormatIDR(ov.AverageIncome))
	fmt.Fprintf(tw, "Bulan ini\t%s\n", core.FormatIDR(ov.CurrentMonthIncome))
	fmt.Fprintf(tw, "Perubahan\t%+.1f%%\n", ov.PercentageChange)
	if ov.HighestMonth.Month != "" {
		fmt.Fprintf(tw, "Tertinggi\t%s (%s)\n", core.FormatIDR(ov.HighestMonth.Amount), ov.HighestMonth.Month)
	}
	if n := len(ov.Skipped); n > 0 {
		fmt.Fprintf(tw, "Dilewati\t%d catatan dengan tanggal tidak valid\n", n)
	}
	return tw.Flush()
}

type exportCmd struct {
	app    *app
	acct   account
	format string
	out    string
}

func newExportCmd(a *app) *cobra.Command {
	ec := &exportCmd{app: a}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the income report as XLSX or PDF",
		RunE:  ec.run,
	}
	ec.acct.bind(cmd)
	cmd.Flags().StringVar(&ec.format, "format", string(export.XLSX), "Report format (xlsx or pdf)")
	cmd.Flags().StringVarP(&ec.out, "output", "o", "", "Output file (default: generated name in the working directory)")
	return cmd
}

func (ec *exportCmd) run(cmd *cobra.Command, _ []string) error {
	format, err := export.ParseFormat(ec.format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	profile, records, err := ec.app.incomes(ctx, ec.acct)
	if err != nil {
		return err
	}
	ov := income.Aggregate(records)

	var body []byte
	if format == export.PDF {
		body, err = export.BuildIncomePDF(profile.Name, ov, records)
	} else {
		body, err = export.BuildIncomeXLSX(ov, records)
	}
	if err != nil {
		return fmt.Errorf("build %s report: %w", format, err)
	}

	path := ec.out
	if path == "" {
		path = format.Filename(ec.app.now())
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records to %s\n", len(records), path)
	return nil
}

func newApproveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "approve EMAIL",
		Short: "Activate a pending account on the sqlite or memory backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			b, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Approve(ctx, args[0]); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("no account registered as %s", args[0])
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s\n", core.NormalizeEmail(args[0]))
			return nil
		},
	}
}
