// Command exportcli runs component exports against a transactional runtime
// from an export config file. It can run a single export, re-export when the
// config file changes, or re-export on a cron schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/serviced"
	"github.com/GoCodeAlone/serviced/wrappers"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// slogLogger adapts log/slog to the serviced.Logger interface.
type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *slogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

type exportOptions struct {
	configPath string
	runtimeURL string
	outputDir  string
	dryRun     bool
	watch      bool
	every      string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "exportcli",
		Short: "Export configured service objects as hosted components",
		Long: "exportcli packages service objects into a binary module and registers it\n" +
			"with a transactional component runtime.",
	}
	root.AddCommand(newExportCommand())
	return root
}

func newExportCommand() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run a component export from an export config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "export.yaml", "export config file (YAML or TOML)")
	cmd.Flags().StringVar(&opts.runtimeURL, "runtime-url", "", "transactional runtime admin endpoint; dry-run when empty")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "artifact directory (default: beside the exporter binary)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log the registration instead of calling the runtime")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-export whenever the config file changes")
	cmd.Flags().StringVar(&opts.every, "every", "", "re-export on a cron schedule, e.g. \"0 3 * * *\"")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	return cmd
}

func runExport(ctx context.Context, opts *exportOptions) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := &slogLogger{logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}

	exporter, err := buildExporter(logger, opts)
	if err != nil {
		return err
	}

	runOnce := func(ctx context.Context) error {
		spec, err := serviced.LoadExportSpec(opts.configPath, buildComponent)
		if err != nil {
			return err
		}
		result, err := exporter.Export(ctx, spec)
		if err != nil {
			return err
		}
		logger.Info("export complete", "application", spec.ApplicationName, "applicationID", result.ApplicationID)
		return nil
	}

	if err := runOnce(ctx); err != nil {
		return err
	}
	if !opts.watch && opts.every == "" {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.every != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(opts.every, func() {
			if err := runOnce(ctx); err != nil {
				logger.Error("scheduled export failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid --every schedule %q: %w", opts.every, err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	if opts.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("starting config watcher: %w", err)
		}
		defer watcher.Close()
		if err := watcher.Add(opts.configPath); err != nil {
			return fmt.Errorf("watching %q: %w", opts.configPath, err)
		}

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
						logger.Info("export config changed, re-exporting", "path", event.Name)
						if err := runOnce(ctx); err != nil {
							logger.Error("re-export failed", "error", err)
						}
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					logger.Error("config watcher error", "error", err)
				}
			}
		}()
	}

	<-ctx.Done()
	return nil
}

func buildExporter(logger serviced.Logger, opts *exportOptions) (*serviced.ComponentExporter, error) {
	exporterOpts := []serviced.ExporterOption{
		serviced.WithLogger(logger),
	}
	if opts.outputDir != "" {
		exporterOpts = append(exporterOpts, serviced.WithOutputDir(opts.outputDir))
	}
	switch {
	case opts.dryRun || opts.runtimeURL == "":
		exporterOpts = append(exporterOpts, serviced.WithRegistrar(serviced.NewLogRegistrar(logger)))
	default:
		exporterOpts = append(exporterOpts, serviced.WithRegistrar(serviced.NewHTTPRegistrar(opts.runtimeURL, nil, logger)))
	}
	return serviced.NewComponentExporter(exporterOpts...)
}

// buildComponent maps an export config component entry to the standard
// wrapper generator.
func buildComponent(cfg serviced.ComponentConfig) (serviced.ComponentWrapperSpec, error) {
	spec := wrappers.NewStandardWrapperSpec(cfg.Name, cfg.Service)
	spec.Description = cfg.Description
	return spec, nil
}
