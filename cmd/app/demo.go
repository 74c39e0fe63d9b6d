package main

import (
	"github.com/spf13/cobra"

	"einvoicing/internal/app"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a sample invoice through its lifecycle on an in-memory store",
	Long: `Registers a company and two products, creates an invoice with a 19% IVA
line and an 8% INC line, issues it and prints the result. Nothing is persisted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt.memory = true
		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		company, err := svc.CreateCompany(ctx, app.CreateCompanyRequest{TaxID: "900123456", Name: "Demo SAS", Prefix: "SETT"})
		if err != nil {
			return err
		}
		companyID := company.Company.ID
		products := []app.UpsertProductRequest{
			{CompanyID: companyID, Reference: "SKU-1", Name: "Widget", Taxes: []app.TaxRuleRequest{{Type: "IVA", Rate: "19"}}},
			{CompanyID: companyID, Reference: "SKU-2", Name: "Meal", Taxes: []app.TaxRuleRequest{{Type: "INC", Rate: "8"}}},
		}
		for _, p := range products {
			if _, err := svc.UpsertProduct(ctx, p); err != nil {
				return err
			}
		}

		created, err := svc.CreateInvoice(ctx, app.CreateInvoiceRequest{
			CompanyID:       companyID,
			ClientReference: "CLIENT-001",
			Lines: []app.LineRequest{
				{ProductReference: "SKU-1", Quantity: "3", UnitPrice: "100000.00", DiscountPercentage: "10"},
				{ProductReference: "SKU-2", Quantity: "2", UnitPrice: "25000.00"},
			},
		})
		if err != nil {
			return err
		}
		issued, err := svc.IssueInvoice(ctx, app.TransitionRequest{CompanyID: companyID, InvoiceID: created.Invoice.ID})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), issued.Invoice)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
}
