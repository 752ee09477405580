package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"liquidityGuard/internal/amount"
)

func newPoolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "List monitored pools and their risk state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				pools, err := a.api.ListPools(a.ctx)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "POOL", "NAME", "CHAIN", "STATE", "TWAP", "RESERVE RATIO", "UPDATED")
				for _, p := range pools {
					row(tw,
						p.PoolID,
						orDash(p.Name),
						fmt.Sprint(p.ChainID),
						orDash(string(p.State)),
						optionalFloat(p.Metrics.TWAP, ratio),
						optionalFloat(p.Metrics.ReserveRatio, amount.Percent),
						optionalString(p.Metrics.UpdatedAt),
					)
				}
				return tw.Flush()
			})
		},
	}
}

func newReserveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reserve",
		Short: "Show reserve pool health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				o, err := a.api.ReserveOverview(a.ctx)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
				row(tw, "NAV", usd(o.NavUSD))
				row(tw, "Cash ratio", amount.Percent(o.CashRatio))
				row(tw, "Health", o.Health())
				row(tw, "Available for claims", usd(o.AvailableForClaims()))
				row(tw, "Pending claims", usd(o.PendingClaimsUSD))
				row(tw, "Pending redemptions", usd(o.PendingRedemptionsUSD))
				row(tw, "Total obligations", usd(o.TotalObligations()))
				row(tw, "lgUSD price per share", fmt.Sprintf("%.6f", o.LgusdPricePerShare))
				row(tw, "Updated", orDash(o.UpdatedAt))
				return tw.Flush()
			})
		},
	}
}
