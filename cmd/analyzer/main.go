// Command analyzer runs the grout injection analysis pipeline over
// sensor log spreadsheets from the command line, without the web
// service. Each input file is processed on its own; a file that cannot
// be read or parsed is logged and skipped so the rest of the batch
// still completes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"groutflow/internal/config"
	"groutflow/internal/dataprocessing"
	"groutflow/internal/exporter"
	"groutflow/internal/files"
	"groutflow/internal/infrastructure"
	"groutflow/internal/report"
	"groutflow/internal/validation"
	"groutflow/pkg/contracts/domain"
)

func main() {
	inPath := flag.String("in", "", "input spreadsheet or directory of spreadsheets (defaults to data/uploads relative to executable)")
	outDir := flag.String("out", "", "destination directory for the report CSVs (default: beside each input file)")
	logLevel := flag.String("loglevel", "info", "log level: debug | info | warn | error")
	flag.Parse()

	logger, err := infrastructure.InitializeLogger(config.LoggingConfig{
		Level:  *logLevel,
		Format: "json",
		Output: "console",
	})
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *inPath, *outDir); err != nil {
		logger.Error("Analysis aborted", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, inPath, outDir string) error {
	validator := validation.NewFileValidator(logger)

	if inPath == "" {
		paths, err := config.GetPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve default directories: %w", err)
		}
		inPath = paths.UploadsDir
	}

	if outDir != "" {
		if err := validator.ValidateOutputDirectory(outDir); err != nil {
			return err
		}
	}

	inputs, err := collectInputs(logger, validator, inPath)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d spreadsheet files\n", len(inputs))
	if len(inputs) == 0 {
		return nil
	}
	if outDir != "" && len(inputs) > 1 {
		logger.Warn("Multiple inputs share one destination directory, later reports overwrite earlier ones",
			slog.String("out", outDir),
			slog.Int("inputs", len(inputs)))
	}

	loader := dataprocessing.NewLoader(logger)
	assembler := report.NewAssembler(logger)
	writer := exporter.NewReportWriter(logger)

	var processed, skipped, failed int

	for i, file := range inputs {
		if ctx.Err() != nil {
			fmt.Println("Analysis interrupted")
			break
		}

		fmt.Printf("Processing file %d of %d: %s\n", i+1, len(inputs), file.Name)

		if _, err := domain.ParseSelectionName(file.Name); err != nil {
			logger.Warn("Skipping file outside the hole/stage naming convention",
				slog.String("file", file.Name),
				slog.String("error", err.Error()))
			skipped++
			continue
		}

		holes, err := loader.LoadFile(ctx, file.Path)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("Analysis interrupted")
				break
			}
			if errors.Is(err, dataprocessing.ErrNoUsableData) {
				logger.Warn("File contributes no usable data",
					slog.String("file", file.Name),
					slog.String("error", err.Error()))
			} else {
				logger.Error("Failed to load file",
					slog.String("file", file.Name),
					slog.String("error", err.Error()))
			}
			failed++
			continue
		}

		summary, err := assembler.Assemble(ctx, holes)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("Analysis interrupted")
				break
			}
			logger.Error("Failed to assemble report",
				slog.String("file", file.Name),
				slog.String("error", err.Error()))
			failed++
			continue
		}

		var written []string
		if outDir != "" {
			written, err = writer.WriteReportsTo(ctx, outDir, summary.Rows, summary.Counts)
		} else {
			written, err = writer.WriteReports(ctx, file.Path, summary.Rows, summary.Counts)
		}
		if err != nil {
			logger.Error("Failed to write reports",
				slog.String("file", file.Name),
				slog.String("error", err.Error()))
			failed++
			continue
		}

		fmt.Printf("  %d holes, %d summary rows, %d report files written\n",
			len(holes), len(summary.Rows), len(written))
		processed++
	}

	fmt.Printf("Analysis complete: %d processed, %d skipped, %d failed\n", processed, skipped, failed)
	return nil
}

// collectInputs resolves -in to the list of candidate spreadsheets: a
// single validated file, or a directory scan.
func collectInputs(logger *slog.Logger, validator *validation.FileValidator, inPath string) ([]files.FileInfo, error) {
	info, err := os.Stat(inPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input path %s: %w", inPath, err)
	}

	if !info.IsDir() {
		if err := validator.ValidateSpreadsheetFile(inPath); err != nil {
			return nil, err
		}
		return []files.FileInfo{{
			Path:    inPath,
			Name:    info.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}, nil
	}

	discovery := files.NewDiscovery("")
	found, err := discovery.FindSpreadsheetFiles(inPath)
	if err != nil {
		return nil, err
	}

	logger.Info("Scanned input directory",
		slog.String("directory", inPath),
		slog.Int("spreadsheets", len(found)))
	return found, nil
}
