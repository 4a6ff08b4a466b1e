package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ay01sec/labor-admin-sub000/internal/core"
)

// errRowsRejected makes laborctl exit non-zero when any row was not written.
var errRowsRejected = errors.New("some rows were rejected")

type importFlags struct {
	entity     string
	file       string
	company    string
	dryRun     bool
	errorsPath string
}

func (f *importFlags) register(cmd *cobra.Command, withDryRun bool) {
	cmd.Flags().StringVarP(&f.entity, "entity", "e", "", "entity to import (employee, client, site)")
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "CSV file to read")
	cmd.Flags().StringVarP(&f.company, "company", "c", "", "company ID that owns the records")
	cmd.Flags().StringVar(&f.errorsPath, "errors", "", "write rejected rows to this CSV file")
	if withDryRun {
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate only, write nothing")
	}

	_ = cmd.MarkFlagRequired("entity")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("company")
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Validate a CSV file and write its valid rows",
		Example: `  laborctl import -e employee -f 社員.csv -c company-1
  laborctl import -e site -f sites.csv -c company-1 --dry-run --errors rejected.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, flags)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	flags := &importFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a CSV file without writing (import --dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.dryRun = true
			return runImport(cmd, opts, flags)
		},
	}
	flags.register(cmd, false)
	return cmd
}

func runImport(cmd *cobra.Command, opts *rootOptions, flags *importFlags) error {
	data, err := os.ReadFile(flags.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", flags.file, err)
	}

	svc, closeStore, err := opts.service(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	cfg, err := entityConfig(svc, flags.entity)
	if err != nil {
		return err
	}

	errOut := cmd.ErrOrStderr()
	onProgress := func(p core.Progress) {
		fmt.Fprintf(errOut, "進捗 %d/%d (%d%%)\n", p.Current, p.Total, p.Percent())
	}

	actor := core.StaticActor{Company: flags.company, Admin: true}
	report, err := svc.Run(cmd.Context(), actor, flags.entity, filepath.Base(flags.file), data, flags.dryRun, onProgress)
	if err != nil {
		return fmt.Errorf("%s: %w", core.FormatUserError(err), err)
	}

	out := cmd.OutOrStdout()
	printReport(out, cfg, report)

	var failures []core.FailedRow
	if report.Result != nil {
		failures = report.Result.FailedRows
	}
	rejected := len(report.Validation.ErrorRows) + len(failures)

	if flags.errorsPath != "" && rejected > 0 {
		if err := os.WriteFile(flags.errorsPath, core.ErrorReport(cfg, report.Validation.ErrorRows, failures), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", flags.errorsPath, err)
		}
		fmt.Fprintf(out, "エラー行を %s に出力しました\n", flags.errorsPath)
	}
	if rejected > 0 {
		return fmt.Errorf("%w: %d", errRowsRejected, rejected)
	}
	return nil
}

func printReport(w io.Writer, cfg core.ImportConfig, report *core.RunReport) {
	v := report.Validation
	fmt.Fprintf(w, "%s: %d行 (新規 %d, 更新 %d, エラー %d) 文字コード %s\n",
		cfg.EntityName, v.TotalCount, v.NewCount, v.UpdateCount, v.ErrorCount, report.Encoding)

	if len(v.MissingColumns) > 0 {
		fmt.Fprintf(w, "未指定の列: %s\n", strings.Join(v.MissingColumns, ", "))
	}
	for _, d := range v.Duplicates {
		fmt.Fprintf(w, "重複: %s (行 %s)\n", d.Identifier, joinInts(d.Rows))
	}
	for _, e := range v.ErrorRows {
		fmt.Fprintf(w, "行 %d: %s\n", e.RowNumber, strings.Join(e.Errors, " / "))
	}

	if res := report.Result; res != nil {
		fmt.Fprintf(w, "書き込み: 成功 %d (新規 %d, 更新 %d), 失敗 %d\n",
			res.SuccessCount, len(res.CreatedIDs), len(res.UpdatedIDs), len(res.FailedRows))
		for _, f := range res.FailedRows {
			fmt.Fprintf(w, "行 %d: %s\n", f.RowNumber, f.Error)
		}
		if res.Cancelled {
			fmt.Fprintln(w, "インポートは中断されました")
		}
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func entityConfig(svc *core.Service, key string) (core.ImportConfig, error) {
	for _, cfg := range svc.Entities() {
		if cfg.Key == key {
			return cfg, nil
		}
	}
	return core.ImportConfig{}, fmt.Errorf("%w: %s", core.ErrUnknownEntity, key)
}
