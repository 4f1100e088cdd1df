package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bizpulse/internal/billing"
	"bizpulse/internal/types"
)

func newPlansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Manage the subscription plan catalog",
		Long: `Manage the subscription plan catalog.

Examples:
  ops plans import
  ops plans import --file plans.yaml
  ops plans list`,
	}
	cmd.AddCommand(newPlansImportCmd(a), newPlansListCmd(a))
	return cmd
}

func newPlansImportCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Upsert plans from a YAML catalog (built-in catalog by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := loadCatalog(file)
			if err != nil {
				return err
			}

			s, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			for _, p := range plans {
				if err := s.plans.Upsert(cmd.Context(), p); err != nil {
					return fmt.Errorf("import plan %q: %w", p.Name, err)
				}
				a.logger.Info("plan imported", "name", p.Name, "active", p.IsActive)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d plan(s).\n", len(plans))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to a YAML plan catalog")
	return cmd
}

func loadCatalog(path string) ([]*types.SubscriptionPlan, error) {
	if path == "" {
		return billing.DefaultCatalog()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return billing.ParseCatalog(f)
}

func newPlansListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List plans with base and effective prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer s.close()

			plans, err := s.plans.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No plans found. Seed the catalog with: ops plans import")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMONTHLY\tYEARLY\tDISCOUNT\tACTIVE")
			for _, p := range plans {
				pricing := billing.PricingFor(p)
				discount := "-"
				if pricing.Discount.Active {
					discount = fmt.Sprintf("%g%%", pricing.Discount.Percent)
					if pricing.Discount.Code != nil {
						discount += " " + *pricing.Discount.Code
					}
				}
				active := "no"
				if p.IsActive {
					active = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.ID,
					p.Name,
					priceCell(pricing.BasePriceMonthly, pricing.EffectivePriceMonthly),
					priceCell(pricing.BasePriceYearly, pricing.EffectivePriceYearly),
					discount,
					active,
				)
			}
			return w.Flush()
		},
	}
}

// priceCell shows "$19.00" or "$17.10 (was $19.00)" when discounted.
func priceCell(base, effective float64) string {
	if effective == base {
		return fmt.Sprintf("$%.2f", base)
	}
	return fmt.Sprintf("$%.2f (was $%.2f)", effective, base)
}
