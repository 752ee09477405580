package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/refresh"
	"liquidityGuard/internal/storage"
)

func newDepositCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit payment tokens into the reserve pool for lgUSD shares",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString("amount")
			if _, err := amount.ParsePositive(input); err != nil {
				return err
			}
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}
				res, err := a.executor().Deposit(a.ctx, a.sess, input)
				printSettlement(cmd.OutOrStdout(), res)
				if err != nil {
					return err
				}
				printBalances(cmd.OutOrStdout(), a.refresher.Last(), a.cfg.PaymentDecimals)
				printPresentation(cmd.OutOrStdout(), apperr.Present(nil, res.TxHash.Hex()))
				return nil
			})
		},
	}
	cmd.Flags().String("amount", "", "amount to deposit in payment token units (e.g. 100.5)")
	return cmd
}

func newBalancesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show wallet balances and the reserve share price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				if watch, _ := cmd.Flags().GetBool("watch"); watch {
					a.refresher.Watch(a.ctx, a.sess.Wallet, a.cfg.RefreshInterval, func(snap refresh.Snapshot, err error) {
						printBalances(out, snap, a.cfg.PaymentDecimals)
						if err != nil {
							printPresentation(out, apperr.Present(err, ""))
						}
					})
					return nil
				}

				err := a.refresher.Refresh(a.ctx, a.sess.Wallet)
				printBalances(out, a.refresher.Last(), a.cfg.PaymentDecimals)
				return err
			})
		},
	}
	cmd.Flags().Bool("watch", false, "keep refreshing every refresh-interval until interrupted")
	return cmd
}

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recently journaled transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				if err := a.openJournal(); err != nil {
					return err
				}
				if _, ok := a.journal.(storage.Nop); ok {
					return apperr.MissingConfig("journal")
				}
				limit, _ := cmd.Flags().GetInt("limit")
				entries, err := a.journal.Recent(a.ctx, limit)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "RECORDED", "KIND", "STATUS", "TX", "DRAFT", "POLICY", "AMOUNT")
				for _, e := range entries {
					row(tw,
						e.RecordedAt,
						string(e.Kind),
						string(e.Status),
						apperr.ShortenHex(e.TxHash, 6),
						orDash(e.DraftID),
						orDash(e.PolicyID),
						orDash(e.Amount),
					)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Int("limit", 20, "maximum entries to show")
	return cmd
}

func printBalances(w io.Writer, snap refresh.Snapshot, paymentDecimals uint8) {
	fmt.Fprintf(w, "as of %s\n", snap.ReadAt.UTC().Format(time.RFC3339))
	tw := newTable(w, "ASSET", "TOKEN", "BALANCE")
	labels := make([]string, 0, len(snap.Balances))
	for label := range snap.Balances {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		b := snap.Balances[label]
		row(tw, b.Label, apperr.ShortenHex(b.Token.Hex(), 4), amount.Display(b.Amount, b.Decimals, 4))
	}
	if snap.PricePerShare != nil {
		row(tw, "lgUSD price", "-", amount.Display(snap.PricePerShare, paymentDecimals, 6))
	}
	_ = tw.Flush()
}
