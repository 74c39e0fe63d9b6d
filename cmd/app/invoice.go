package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"einvoicing/internal/app"
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Create invoices and move them through their lifecycle",
}

var invoiceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a DRAFT invoice with the company's next number",
	Example: `  app invoice create --company 1 --line SKU-1:3:100000.00:10 --line SKU-2:1:5000
  app invoice create --company 1 --file request.json
  cat request.json | app invoice create --company 1 --file -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var req app.CreateInvoiceRequest
		if path, _ := cmd.Flags().GetString("file"); path != "" {
			if err := readRequestFile(path, cmd.InOrStdin(), &req); err != nil {
				return err
			}
		}
		values, _ := cmd.Flags().GetStringArray("line")
		lines, err := parseLineFlags(values)
		if err != nil {
			return err
		}
		req.Lines = append(req.Lines, lines...)
		req.CompanyID = companyFlag(cmd)
		setIfChanged(cmd, "client", &req.ClientReference)
		setIfChanged(cmd, "emission", &req.EmissionDate)
		setIfChanged(cmd, "due", &req.DueDate)
		setIfChanged(cmd, "notes", &req.Notes)
		setIfChanged(cmd, "observations", &req.Observations)

		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.CreateInvoice(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Invoice)
	},
}

var invoiceShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := invoiceArg(args)
		if err != nil {
			return err
		}
		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.GetInvoice(cmd.Context(), companyFlag(cmd), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Invoice)
	},
}

var invoiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a company's invoices by number",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := app.ListInvoicesRequest{CompanyID: companyFlag(cmd)}
		req.State, _ = cmd.Flags().GetString("state")
		req.IncludeVoided, _ = cmd.Flags().GetBool("include-voided")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")

		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.ListInvoices(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var invoiceReplaceLinesCmd = &cobra.Command{
	Use:   "replace-lines ID",
	Short: "Replace every line of a DRAFT invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := invoiceArg(args)
		if err != nil {
			return err
		}
		values, _ := cmd.Flags().GetStringArray("line")
		lines, err := parseLineFlags(values)
		if err != nil {
			return err
		}
		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.ReplaceLines(cmd.Context(), app.ReplaceLinesRequest{CompanyID: companyFlag(cmd), InvoiceID: id, Lines: lines})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Invoice)
	},
}

var invoiceAnnotateCmd = &cobra.Command{
	Use:   "annotate ID",
	Short: "Edit notes, observations, client reference or due date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := invoiceArg(args)
		if err != nil {
			return err
		}
		req := app.UpdateAnnotationsRequest{CompanyID: companyFlag(cmd), InvoiceID: id}
		req.Notes = changedString(cmd, "notes")
		req.Observations = changedString(cmd, "observations")
		req.ClientReference = changedString(cmd, "client")
		req.DueDate = changedString(cmd, "due")

		svc, err := rt.service(cmd.Context())
		if err != nil {
			return err
		}
		res, err := svc.UpdateAnnotations(cmd.Context(), req)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res.Invoice)
	},
}

type transitionCall func(app.ApplicationService, context.Context, app.TransitionRequest) (*app.InvoiceResult, error)

func transitionCmd(use, short string, call transitionCall) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := invoiceArg(args)
			if err != nil {
				return err
			}
			req := app.TransitionRequest{CompanyID: companyFlag(cmd), InvoiceID: id}
			if f := cmd.Flags().Lookup("reason"); f != nil {
				req.Reason = f.Value.String()
			}
			svc, err := rt.service(cmd.Context())
			if err != nil {
				return err
			}
			res, err := call(svc, cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res.Invoice)
		},
	}
}

var (
	invoiceIssueCmd  = transitionCmd("issue", "Issue a DRAFT invoice and assign its external reference", app.ApplicationService.IssueInvoice)
	invoiceAcceptCmd = transitionCmd("accept", "Record acceptance of an ISSUED invoice", app.ApplicationService.AcceptInvoice)
	invoiceRejectCmd = transitionCmd("reject", "Record rejection of an ISSUED invoice", app.ApplicationService.RejectInvoice)
	invoiceVoidCmd   = transitionCmd("void", "Void an invoice; its number stays consumed", app.ApplicationService.VoidInvoice)
)

func companyFlag(cmd *cobra.Command) int {
	id, _ := cmd.Flags().GetInt("company")
	return id
}

func invoiceArg(args []string) (int, error) {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid invoice id %q", args[0])
	}
	return id, nil
}

func setIfChanged(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

func changedString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceCreateCmd, invoiceShowCmd, invoiceListCmd, invoiceReplaceLinesCmd,
		invoiceAnnotateCmd, invoiceIssueCmd, invoiceAcceptCmd, invoiceRejectCmd, invoiceVoidCmd)

	invoiceCmd.PersistentFlags().Int("company", 0, "Company id")
	_ = invoiceCmd.MarkPersistentFlagRequired("company")

	invoiceCreateCmd.Flags().StringArray("line", nil, "Line REFERENCE:QUANTITY:UNIT_PRICE[:DISCOUNT], repeatable")
	invoiceCreateCmd.Flags().String("file", "", "Read a JSON create request from a file, or - for stdin")
	invoiceCreateCmd.Flags().String("client", "", "Client reference")
	invoiceCreateCmd.Flags().String("emission", "", "Emission date YYYY-MM-DD (default today)")
	invoiceCreateCmd.Flags().String("due", "", "Due date YYYY-MM-DD")
	invoiceCreateCmd.Flags().String("notes", "", "Notes")
	invoiceCreateCmd.Flags().String("observations", "", "Observations")

	invoiceListCmd.Flags().String("state", "", "Only invoices in this state")
	invoiceListCmd.Flags().Bool("include-voided", false, "Include voided invoices")
	invoiceListCmd.Flags().Int("limit", 0, "Maximum invoices to return")
	invoiceListCmd.Flags().Int("offset", 0, "Invoices to skip")

	invoiceReplaceLinesCmd.Flags().StringArray("line", nil, "Line REFERENCE:QUANTITY:UNIT_PRICE[:DISCOUNT], repeatable")
	_ = invoiceReplaceLinesCmd.MarkFlagRequired("line")

	invoiceAnnotateCmd.Flags().String("notes", "", "Notes")
	invoiceAnnotateCmd.Flags().String("observations", "", "Observations")
	invoiceAnnotateCmd.Flags().String("client", "", "Client reference (DRAFT only)")
	invoiceAnnotateCmd.Flags().String("due", "", "Due date YYYY-MM-DD (DRAFT only)")

	invoiceVoidCmd.Flags().String("reason", "", "Reason recorded on the voided invoice")
}
