package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/report"
	"github.com/FACorreiaa/koperasi-ledger/internal/domain/import/service"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import a transaction workbook into the ledger",
		Long: `Import every row of a "Data Transaksi" workbook into the ledger.

Rows that fail are reported and skipped; the rest of the batch is applied.
Use --errors-out to write the rejected rows to a CSV report or a correction
workbook that can be fixed and imported again.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}

	cmd.Flags().StringP("errors-out", "o", "", "write rejected rows to this file (.csv or .xlsx)")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")
	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	errorsOut, _ := cmd.Flags().GetString("errors-out")
	if errorsOut != "" {
		if _, err := errorsWriter(errorsOut); err != nil {
			return err
		}
	}
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	deps, err := InitDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Cleanup()

	opts := service.RunOptions{Source: filepath.Base(path)}
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = newProgressBar(cmd.ErrOrStderr())
		opts.Progress = func(percent int) {
			if err := bar.Set(percent); err != nil {
				logger.Warn("failed to update progress bar", slog.Any("error", err))
			}
		}
	}

	result, err := deps.Engine.Import(ctx, f, opts)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	printSummary(cmd.OutOrStdout(), result)

	if errorsOut != "" && len(result.Errors) > 0 {
		if err := writeErrors(errorsOut, result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Baris gagal ditulis ke %s\n", errorsOut)
	}
	return nil
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("[cyan][bold]Mengimpor transaksi...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			_, _ = fmt.Fprintln(w)
		}),
	)
}

func printSummary(w io.Writer, result *report.ImportResult) {
	fmt.Fprintf(w, "Batch %s selesai dalam %s\n", result.BatchID, result.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "  Diproses: %d\n  Dibuat:   %d\n  Diupdate: %d\n  Error:    %d\n",
		result.Processed, result.Created, result.Updated, len(result.Errors))

	for _, warn := range result.Warnings {
		fmt.Fprintf(w, "  ! baris %d: %s\n", warn.Row, warn.Message)
	}
	for _, rowErr := range result.Errors {
		fmt.Fprintf(w, "  x baris %d: %s\n", rowErr.Row, rowErr.Error)
	}
}

type exportFunc func(io.Writer, *report.ImportResult) error

// errorsWriter picks the report format from the file extension.
func errorsWriter(path string) (exportFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return report.WriteErrorsCSV, nil
	case ".xlsx":
		return report.WriteCorrectionWorkbook, nil
	default:
		return nil, fmt.Errorf("--errors-out must end in .csv or .xlsx, got %q", path)
	}
}

func writeErrors(path string, result *report.ImportResult) error {
	export, err := errorsWriter(path)
	if err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create error report: %w", err)
	}
	if err := export(out, result); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write error report: %w", err)
	}
	return out.Close()
}
