package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func newTemplateCmd(opts *rootOptions) *cobra.Command {
	var entity, output string
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the CSV template of an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			data, err := svc.Template(entity)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity (employee, client, site)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var entity, company, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a company's records in import format",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			actor := core.StaticActor{Company: company, Admin: true}
			data, err := svc.Export(cmd.Context(), actor, entity)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, data)
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity (employee, client, site)")
	cmd.Flags().StringVarP(&company, "company", "c", "", "company ID")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func newEntitiesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "entities",
		Short: "List importable entities",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tCOLLECTION\tIDENTIFIER\tCOLUMNS")
			for _, cfg := range svc.Entities() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
					cfg.Key, cfg.EntityName, cfg.Collection, cfg.IdentifierColumn, len(cfg.Columns()))
			}
			return tw.Flush()
		},
	}
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var entity, company string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past imports of an entity",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := opts.service(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := svc.History(cmd.Context(), core.StaticActor{Company: company}, entity)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tFILE\tSTATUS\tROWS\tCREATED\tUPDATED\tERRORS\tFAILED")
			for _, h := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					h.StartedAt.Local().Format(time.DateTime), h.FileName, h.Status,
					h.TotalRows, h.CreatedCount, h.UpdatedCount, h.ErrorCount, h.FailedCount)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&entity, "entity", "e", "", "entity (employee, client, site)")
	cmd.Flags().StringVarP(&company, "company", "c", "", "company ID")
	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}
