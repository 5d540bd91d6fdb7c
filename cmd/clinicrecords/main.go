// Command clinicrecords runs the record console and its backup tooling.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"clinicrecords/internal/backup"
	"clinicrecords/internal/blob"
	"clinicrecords/internal/config"
	"clinicrecords/internal/console"
	"clinicrecords/internal/core"
	"clinicrecords/internal/infra/persistence/flatfile"
	"clinicrecords/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exitFunc = os.Exit

func main() {
	exitFunc(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, in io.Reader, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root, a := newRootCmd(in, out)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	// teardown runs whether or not the command failed
	err := root.ExecuteContext(ctx)
	err = errors.Join(err, a.teardown())
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

// app carries state shared by every subcommand.
type app struct {
	in  io.Reader
	out io.Writer

	configPath      string
	verbose         bool
	metricsTextfile string
	traceFile       string
	auditFile       string

	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *core.PrometheusMetricsRecorder
	tracer   *core.JSONTracer
	trace    *os.File
	audit    *core.MemoryAuditRecorder
}

func newRootCmd(in io.Reader, out io.Writer) (*cobra.Command, *app) {
	a := &app{in: in, out: out}
	root := &cobra.Command{
		Use:   "clinicrecords",
		Short: "Clinical record store",
		Long: `clinicrecords keeps patient records keyed by ID with an age-ordered view.

Run without arguments to start the interactive record console.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.setup() },
		RunE:              a.runConsole,
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	flags.StringVar(&a.traceFile, "trace-file", "", "Append operation spans as JSON lines to this file")
	flags.StringVar(&a.auditFile, "audit-file", "", "Append audit entries as JSON lines to this file on exit")

	root.AddCommand(
		&cobra.Command{
			Use:   "console",
			Short: "Interactive record console",
			Args:  cobra.NoArgs,
			RunE:  a.runConsole,
		},
		a.patientsCmd(),
		a.exportCmd(),
		a.restoreCmd(),
		&cobra.Command{
			Use:   "backups",
			Short: "List stored backups",
			Args:  cobra.NoArgs,
			RunE:  a.runBackups,
		},
	)
	return root, a
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.metricsTextfile == "" {
		a.metricsTextfile = cfg.Metrics.Textfile
	}
	if a.logger, err = logging.New(cfg.Log.Level, a.verbose); err != nil {
		return err
	}
	a.registry = prometheus.NewRegistry()
	if a.metrics, err = core.NewPrometheusMetricsRecorder(a.registry); err != nil {
		return err
	}
	if a.traceFile != "" {
		if a.trace, err = os.OpenFile(a.traceFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		a.tracer = core.NewJSONTracer(a.trace)
	}
	if a.auditFile != "" {
		a.audit = core.NewMemoryAuditRecorder(0)
	}
	a.logger.Debug("configuration loaded",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver))
	return nil
}

func (a *app) teardown() error {
	var errs []error
	if a.metricsTextfile != "" && a.registry != nil {
		if err := prometheus.WriteToTextfile(a.metricsTextfile, a.registry); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if a.trace != nil {
		errs = append(errs, a.trace.Close())
	}
	if a.audit != nil {
		if err := writeAudit(a.auditFile, a.audit.Entries()); err != nil {
			errs = append(errs, fmt.Errorf("write audit: %w", err))
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

func writeAudit(path string, entries []core.AuditEntry) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, f.Close()) }()
	enc := json.NewEncoder(f)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

// openService opens the configured store. The caller closes the returned
// store when done.
func (a *app) openService(ctx context.Context) (*core.Service, core.PersistentStore, error) {
	store, err := core.OpenPersistentStore(ctx, a.cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	opts := []core.ServiceOption{
		core.WithLogger(logging.NewAdapter(a.logger)),
		core.WithMetricsRecorder(a.metrics),
	}
	if a.tracer != nil {
		opts = append(opts, core.WithTracer(a.tracer))
	}
	if a.audit != nil {
		opts = append(opts, core.WithAuditRecorder(a.audit))
	}
	return core.NewService(store, opts...), store, nil
}

func (a *app) runConsole(cmd *cobra.Command, _ []string) error {
	svc, store, err := a.openService(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	a.logger.Info("record console started", zap.String("storage", a.cfg.Storage.Driver), zap.Int("records", svc.CountRecords(cmd.Context())))
	return console.New(svc, a.in, a.out).Run(cmd.Context())
}

func (a *app) patientsCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Interactive flat-file patient console",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file == "" {
				file = a.cfg.Patients.File
			}
			db, err := flatfile.Open(file)
			if err != nil {
				return err
			}
			a.logger.Info("patient console started", zap.String("file", db.Path()), zap.Int("patients", len(db.List())))
			return console.NewPatientConsole(db, a.in, a.out).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Patient database file (default from config)")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of every record to the blob store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, store, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			blobs, err := blob.Open(ctx, a.cfg.Blob)
			if err != nil {
				return err
			}
			info, err := backup.Export(ctx, svc, blobs, key)
			if err != nil {
				return err
			}
			a.logger.Info("backup written", zap.String("key", info.Key), zap.Int64("bytes", info.Size))
			_, _ = fmt.Fprintf(a.out, "Exported %s records to %s\n", info.Metadata["records"], info.Key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Backup key (default backups/records-<timestamp>.json)")
	return cmd
}

func (a *app) restoreCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace every record with the contents of a backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, store, err := a.openService(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			blobs, err := blob.Open(ctx, a.cfg.Blob)
			if err != nil {
				return err
			}
			n, err := backup.Restore(ctx, svc, blobs, key)
			if err != nil {
				return err
			}
			a.logger.Info("backup restored", zap.String("key", key), zap.Int("records", n))
			_, _ = fmt.Fprintf(a.out, "Restored %d records from %s\n", n, key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Backup key to restore")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}

func (a *app) runBackups(cmd *cobra.Command, _ []string) error {
	blobs, err := blob.Open(cmd.Context(), a.cfg.Blob)
	if err != nil {
		return err
	}
	infos, err := backup.List(cmd.Context(), blobs)
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		_, _ = fmt.Fprintln(a.out, "No backups.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "KEY\tBYTES\tMODIFIED")
	for _, info := range infos {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.Format(time.RFC3339))
	}
	return tw.Flush()
}
