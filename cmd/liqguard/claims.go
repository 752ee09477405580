package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/claim"
)

func newClaimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim <policy-id>",
		Short: "Preview, authorize and execute a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policyID := args[0]
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}
				coord := a.coordinator()
				out := cmd.OutOrStdout()

				if previewOnly, _ := cmd.Flags().GetBool("preview-only"); previewOnly {
					attempt, err := coord.PreviewByID(a.ctx, a.sess, policyID)
					if err != nil {
						return err
					}
					printAttempt(out, attempt)
					return nil
				}

				attempt, err := coord.Run(a.ctx, a.sess, policyID)
				printAttempt(out, attempt)
				if err != nil {
					return err
				}
				printPresentation(out, apperr.Present(nil, attempt.TxHash.Hex()))
				return nil
			})
		},
	}
	cmd.Flags().Bool("preview-only", false, "stop after the payout preview")
	return cmd
}

func newClaimsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claims",
		Short: "List the wallet's claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				wallet, err := a.walletAddress()
				if err != nil {
					return err
				}
				claims, err := a.api.ListClaims(a.ctx, wallet.Hex())
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "CLAIM", "POLICY", "PRODUCT", "STATUS", "PAYOUT", "CREATED", "TX")
				for _, c := range claims {
					row(tw,
						c.ClaimID,
						c.PolicyID,
						orDash(string(c.Product)),
						string(c.Status),
						usd(c.Payout),
						orDash(c.CreatedAt),
						orDash(apperr.ShortenHex(c.TxHash, 4)),
					)
				}
				return tw.Flush()
			})
		},
	}
}

func newClaimQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim-queue",
		Short: "Show claims waiting for reserve liquidity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				queue, err := a.api.ClaimQueue(a.ctx)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout(), "POSITION", "CLAIM", "POLICY", "WALLET", "PAYOUT", "QUEUED")
				for _, q := range queue {
					row(tw,
						fmt.Sprint(q.Position),
						q.ClaimID,
						q.PolicyID,
						orDash(apperr.ShortenHex(q.Wallet, 4)),
						usd(q.Payout),
						orDash(q.QueuedAt),
					)
				}
				return tw.Flush()
			})
		},
	}
}

func printAttempt(w io.Writer, a claim.Attempt) {
	fmt.Fprintf(w, "policy %s: %s\n", a.PolicyID, a.State)
	if a.Preview != nil {
		fmt.Fprintf(w, "window: %d - %d\n", a.Preview.S, a.Preview.E)
		fmt.Fprintf(w, "estimated payout: %s\n", usd(a.Preview.PayoutEstimate))
	}
	if a.Authorization != nil {
		fmt.Fprintf(w, "authorized payout: %s\n", usd(a.Authorization.Payout))
	}
	if len(a.Claims) > 0 {
		for _, c := range a.Claims {
			if c.PolicyID == a.PolicyID {
				fmt.Fprintf(w, "claim %s: %s\n", c.ClaimID, c.Status)
			}
		}
	}
}
