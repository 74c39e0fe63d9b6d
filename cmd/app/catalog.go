package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"einvoicing/internal/app"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Manage issuing companies",
}

var companyAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register an issuing company",
	Example: `  app company add --tax-id 900123456 --name "Acme SAS" --prefix SETT
  app company add --tax-id 900123457 --name "Beta" --range-from 1000 --range-to 5000`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := app.CreateCompanyRequest{}
		req.TaxID, _ = cmd.Flags().GetString("tax-id")
		req.Name, _ = cmd.Flags().GetString("name")
		req.Prefix, _ = cmd.Flags().GetString("prefix")
		if cmd.Flags().Changed("range-from") {
			v, _ := cmd.Flags().GetInt64("range-from")
			req.RangeFrom = &v
		}
		if cmd.Flags().Changed("range-to") {
			v, _ := cmd.Flags().GetInt64("range-to")
			req.RangeTo = &v
		}

		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.CreateCompany(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Company)
	},
}

var companyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an issuing company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return err
		}
		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.GetCompany(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Company)
	},
}

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage products and their tax rules",
}

var productSetCmd = &cobra.Command{
	Use:   "set REFERENCE",
	Short: "Create or replace a product",
	Example: `  app product set SKU-1 --company 1 --name Widget --tax IVA:19
  app product set SKU-2 --company 1 --name Book --tax IVA:5:exempt --tax ICA:0.97`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := app.UpsertProductRequest{Reference: args[0]}
		req.CompanyID, _ = cmd.Flags().GetInt("company")
		req.Name, _ = cmd.Flags().GetString("name")
		req.Code, _ = cmd.Flags().GetString("code")
		taxes, _ := cmd.Flags().GetStringArray("tax")
		for _, t := range taxes {
			rule, err := parseTaxFlag(t)
			if err != nil {
				return err
			}
			req.Taxes = append(req.Taxes, rule)
		}

		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.UpsertProduct(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(companyCmd, productCmd)
	companyCmd.AddCommand(companyAddCmd, companyShowCmd)
	productCmd.AddCommand(productSetCmd)

	companyAddCmd.Flags().String("tax-id", "", "Tax identification number")
	companyAddCmd.Flags().String("name", "", "Company name")
	companyAddCmd.Flags().String("prefix", "", "Numbering prefix")
	companyAddCmd.Flags().Int64("range-from", 0, "First authorised sequence number")
	companyAddCmd.Flags().Int64("range-to", 0, "Last authorised sequence number")
	_ = companyAddCmd.MarkFlagRequired("tax-id")
	_ = companyAddCmd.MarkFlagRequired("name")

	productSetCmd.Flags().Int("company", 0, "Company id")
	productSetCmd.Flags().String("name", "", "Product name")
	productSetCmd.Flags().String("code", "", "Product code")
	productSetCmd.Flags().StringArray("tax", nil, "Tax rule TYPE:RATE[:exempt], repeatable")
	_ = productSetCmd.MarkFlagRequired("company")
	_ = productSetCmd.MarkFlagRequired("name")
}
