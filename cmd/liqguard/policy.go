package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"liquidityGuard/internal/amount"
	"liquidityGuard/internal/apperr"
	"liquidityGuard/internal/model"
	"liquidityGuard/internal/portfolio"
	"liquidityGuard/internal/quote"
	"liquidityGuard/internal/settlement"
	"liquidityGuard/internal/storage"
)

func addQuoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("product", string(model.ProductDepegLP), "product (DEPEG_LP, AAVE_DLP)")
	cmd.Flags().Int("term", 30, "term in days (10, 20, 30)")
	cmd.Flags().String("amount", "", "insured amount in USD")
	cmd.Flags().StringToString("param", nil, "product parameter (key=value, repeatable)")
	cmd.Flags().String("idempotency-key", "", "reuse a previous quote request key")
}

func quoteInput(cmd *cobra.Command) quote.Input {
	product, _ := cmd.Flags().GetString("product")
	term, _ := cmd.Flags().GetInt("term")
	insured, _ := cmd.Flags().GetString("amount")
	raw, _ := cmd.Flags().GetStringToString("param")
	key, _ := cmd.Flags().GetString("idempotency-key")

	params := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		params[k] = v
	}
	return quote.Input{
		Product:        model.Product(product),
		TermDays:       model.TermDays(term),
		InsuredAmount:  insured,
		Params:         params,
		IdempotencyKey: key,
	}
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Request a signed coverage quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := quoteInput(cmd)
			if _, err := quote.Validate(in); err != nil {
				return err
			}
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}
				draft, err := a.requester().Request(a.ctx, a.sess, in)
				if err != nil {
					return err
				}
				printDraft(cmd.OutOrStdout(), draft)

				if out, _ := cmd.Flags().GetString("out"); out != "" {
					if err := saveDraft(out, draft); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "draft saved to %s\n", out)
				}
				return nil
			})
		},
	}
	addQuoteFlags(cmd)
	cmd.Flags().String("out", "", "write the draft as JSON for a later buy --draft")
	return cmd
}

func newBuyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy coverage from a saved draft or a fresh quote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("draft")
			in := quoteInput(cmd)
			if path == "" {
				if _, err := quote.Validate(in); err != nil {
					return err
				}
			}
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}

				var draft model.PolicyDraft
				if path != "" {
					loaded, err := loadDraft(path)
					if err != nil {
						return err
					}
					draft = loaded
				} else {
					fresh, err := a.requester().Request(a.ctx, a.sess, in)
					if err != nil {
						return err
					}
					draft = fresh
				}
				printDraft(cmd.OutOrStdout(), draft)

				res, err := a.executor().Settle(a.ctx, a.sess, draft)
				printSettlement(cmd.OutOrStdout(), res)
				if err != nil {
					return err
				}
				printPresentation(cmd.OutOrStdout(), apperr.Present(nil, res.TxHash.Hex()))
				return nil
			})
		},
	}
	addQuoteFlags(cmd)
	cmd.Flags().String("draft", "", "draft JSON written by quote --out")
	return cmd
}

func newPoliciesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the wallet's policies known to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				wallet, err := a.walletAddress()
				if err != nil {
					return err
				}
				policies, err := a.api.ListPolicies(a.ctx, wallet.Hex())
				if err != nil {
					return err
				}
				activeOnly, _ := cmd.Flags().GetBool("active")

				tw := newTable(cmd.OutOrStdout(), "POLICY", "PRODUCT", "STATUS", "INSURED", "COVERAGE CAP", "DEDUCTIBLE", "ENDS")
				for _, p := range policies {
					if activeOnly && p.Status != model.PolicyActive {
						continue
					}
					row(tw,
						p.PolicyID,
						string(p.Product),
						string(p.Status),
						orDash(p.InsuredAmount),
						orDash(p.CoverageCapUSD),
						amount.BasisPoints(p.DeductibleBps),
						portfolio.FormatTime(p.EndAt),
					)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Bool("active", false, "only list active policies")
	return cmd
}

func newPortfolioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "List the wallet's policies from the policy NFT contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(a *app) error {
				if err := a.connect(); err != nil {
					return err
				}
				loader := a.portfolio()
				policies, err := loader.Load(a.ctx, a.sess)
				if err != nil {
					return err
				}
				if len(policies) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no policies found for this wallet")
					return nil
				}

				now := loader.Now()
				tw := newTable(cmd.OutOrStdout(), "ID", "COVERAGE", "STATUS", "INSURED", "CAP", "DEDUCTIBLE", "WHEN", "DLP")
				for _, p := range policies {
					timing := p.StatusAt(now)
					row(tw,
						p.ID.String(),
						p.TypeLabel(),
						timing.Status,
						amount.Display(p.Data.InsuredAmount, a.cfg.PaymentDecimals, 2),
						amount.Display(p.Data.CoverageCap, a.cfg.PaymentDecimals, 2),
						amount.BasisPoints(p.Data.DeductibleBps),
						timing.Label+" "+timing.Detail,
						dlpSummary(p),
					)
				}
				return tw.Flush()
			})
		},
	}
}

func dlpSummary(p portfolio.Policy) string {
	if p.DLP == nil {
		return "-"
	}
	return fmt.Sprintf("chain %d, ratio %s, max %s",
		p.DLP.ChainID,
		amount.BasisPoints(uint32(p.DLP.CoverageRatioBps)),
		amount.BasisPoints(uint32(p.DLP.MaxPayoutBps)),
	)
}

func printDraft(w io.Writer, d model.PolicyDraft) {
	tw := newTable(w, "QUOTE", "VALUE")
	row(tw, "Draft", d.DraftID)
	row(tw, "Product", string(d.Product))
	row(tw, "Term", fmt.Sprintf("%d days", d.TermDays))
	row(tw, "Premium", usd(d.PremiumUSD))
	row(tw, "Coverage cap", usd(d.CoverageCapUSD))
	row(tw, "Deductible", amount.BasisPoints(d.DeductibleBps))
	if deadline := d.Deadline(); deadline > 0 {
		row(tw, "Valid until", time.Unix(int64(deadline), 0).UTC().Format(time.RFC3339))
	}
	row(tw, "Signature", apperr.ShortenHex(d.Signature(), 6))
	_ = tw.Flush()
}

func printSettlement(w io.Writer, res settlement.Result) {
	if res.ApprovalTxHash != (common.Hash{}) {
		fmt.Fprintf(w, "approval: %s\n", res.ApprovalTxHash.Hex())
	}
	if res.TxHash != (common.Hash{}) {
		fmt.Fprintf(w, "transaction: %s\n", res.TxHash.Hex())
	}
	if res.Policy != nil {
		fmt.Fprintf(w, "policy: %s (%s)\n", res.Policy.PolicyID, res.Policy.Status)
	}
}

func saveDraft(path string, draft model.PolicyDraft) error {
	return storage.NewDraftFile(path).Save(draft)
}

func loadDraft(path string) (model.PolicyDraft, error) {
	draft, ok, err := storage.NewDraftFile(path).Load()
	if err != nil {
		return draft, apperr.Validation("%s: %v", path, err)
	}
	if !ok {
		return draft, apperr.Validation("draft %s not found", path)
	}
	return draft, nil
}
