package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/accounting-app/accounting-app/internal/shared"
)

func newRootCmd(dial connector) *cobra.Command {
	var (
		rt    *runtime
		actor string
	)
	root := &cobra.Command{
		Use:           "accountingctl",
		Short:         "Operator commands for the accounting service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Runnable() && rt == nil {
				var err error
				rt, err = dial(cmd.Context())
				if err != nil {
					return fmt.Errorf("connect: %w", err)
				}
			}
			if actor != "" {
				cmd.SetContext(shared.ContextWithActorEmail(cmd.Context(), actor))
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			rt.Close()
		},
	}
	root.PersistentFlags().StringVar(&actor, "as", "", "email of the acting user; reports resolve its company")

	get := func() *runtime { return rt }
	root.AddCommand(newInvoiceCmd(get), newReportCmd(get), newJobsCmd(get))
	return root
}

func newInvoiceCmd(rt func() *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "invoice", Short: "Invoice lifecycle operations"}

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <number>",
		Short: "Approve an invoice by its number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt().Invoices.Approve(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invoice %s approved\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "approve-purchase <id>",
		Short: "Approve a purchase invoice and receive its stock",
		Args:  cobra.ExactArgs(1),
		RunE: withInvoiceID(func(ctx context.Context, out io.Writer, id int64) error {
			if err := rt().Invoices.ApprovePurchase(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "purchase invoice %d approved\n", id)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "enable <id>",
		Short: "Enable every line item of an invoice",
		Args:  cobra.ExactArgs(1),
		RunE: withInvoiceID(func(ctx context.Context, out io.Writer, id int64) error {
			if err := rt().Invoices.Enable(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "invoice %d enabled\n", id)
			return nil
		}),
	})
	return cmd
}

func withInvoiceID(fn func(ctx context.Context, out io.Writer, id int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid invoice id %q", args[0])
		}
		return fn(cmd.Context(), cmd.OutOrStdout(), id)
	}
}

func newReportCmd(rt func() *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Print company reports"}

	cmd.AddCommand(&cobra.Command{
		Use:   "profit-loss",
		Short: "Print purchase, sale and tax totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pl, err := rt().Reports.ProfitLoss(cmd.Context())
			if err != nil {
				return err
			}
			p := printer()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "Total cost\t%s\t\n", amount(p, pl.TotalCost))
			fmt.Fprintf(w, "Total sale\t%s\t\n", amount(p, pl.TotalSale))
			fmt.Fprintf(w, "Total tax\t%s\t\n", amount(p, pl.TotalTax))
			return w.Flush()
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "by-product",
		Short: "Print quantities and totals per product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := rt().Reports.ByProduct(cmd.Context())
			if err != nil {
				return err
			}
			p := printer()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tPURCHASED\tSOLD\tCOST\tINCOME")
			for _, line := range lines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					line.Name,
					p.Sprintf("%d", line.PurchasedQty),
					p.Sprintf("%d", line.SoldQty),
					amount(p, line.TotalCost),
					amount(p, line.TotalIncome),
				)
			}
			return w.Flush()
		},
	})
	return cmd
}

func newJobsCmd(rt func() *runtime) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Background job helpers"}

	var companyID int64
	warmup := &cobra.Command{
		Use:   "warmup",
		Short: "Queue a report cache warmup",
		Long:  "Queue a report cache warmup for one company, or for every enabled company when --company is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if companyID < 0 {
				return fmt.Errorf("invalid company id %d", companyID)
			}
			if err := rt().Warmups.EnqueueReportWarmup(cmd.Context(), companyID); err != nil {
				return err
			}
			if companyID == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "warmup queued for all enabled companies")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warmup queued for company %d\n", companyID)
			return nil
		},
	}
	warmup.Flags().Int64Var(&companyID, "company", 0, "company id to warm")
	cmd.AddCommand(warmup)
	return cmd
}

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

func amount(p *message.Printer, d decimal.Decimal) string {
	return p.Sprintf("%.2f", d.Round(2).InexactFloat64())
}
