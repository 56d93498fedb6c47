// Command eetsend registers a batch of receipts with the EET service.
//
//	eetsend --config config.json --receipts receipts.json [--dry-run | --partial]
//
// The receipts file is a JSON array of objects keyed by wire field name, for
// example {"uuid_zpravy": "...", "porad_cis": 68, "celk_trzba": 546}.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	flag "github.com/spf13/pflag"

	"eet/internal/audit"
	"eet/internal/engine"
	"eet/internal/journal"
	journalhandler "eet/internal/journal/handler"
	"eet/internal/platform/config"
	"eet/internal/platform/httpserver"
	"eet/internal/platform/logger"
	"eet/internal/platform/metrics"
	platformredis "eet/internal/platform/redis"
	"eet/internal/receipt"
	dErrors "eet/pkg/domain-errors"
)

type options struct {
	configPath   string
	receiptsPath string
	dryRun       bool
	partial      bool
	metricsAddr  string
	serve        bool
}

func main() {
	var opts options
	flag.StringVarP(&opts.configPath, "config", "c", "config.json", "configuration file (JSON or YAML)")
	flag.StringVarP(&opts.receiptsPath, "receipts", "r", "-", "receipts JSON file, - for stdin")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "verify receipts without registering them")
	flag.BoolVar(&opts.partial, "partial", false, "keep sending past failures")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "operational HTTP listener, overrides server.addr")
	flag.BoolVar(&opts.serve, "serve", false, "keep the operational listener running until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "eetsend:", err)
		if n := dErrors.NumberOf(err); n != 0 {
			fmt.Fprintln(os.Stderr, "error number:", n)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.metricsAddr != "" {
		cfg.Server.Addr = opts.metricsAddr
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegisterer(reg)

	store, closeStore, err := openJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	emitter, closeAudit, err := openAudit(cfg, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	eng, err := engine.NewFromConfig(cfg,
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithJournal(store),
		engine.WithAuditPublisher(emitter),
	)
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Server.Addr != "" {
		srv = httpserver.New(cfg.Server.Addr, httpserver.NewRouter(eng, reg, journalhandler.New(store, log)))
		go func() {
			log.Info("operational listener started", "addr", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("operational listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("graceful shutdown failed", "error", err)
			}
		}()
	}

	values, err := readReceipts(opts.receiptsPath)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := eng.AddReceipt(v); err != nil {
			return err
		}
	}

	switch {
	case opts.dryRun:
		err = dryRun(ctx, eng, out)
	case opts.partial:
		err = sendPartial(ctx, eng, out)
	default:
		err = sendAll(ctx, eng, out)
	}

	if opts.serve && srv != nil {
		log.Info("serving until interrupted")
		<-ctx.Done()
	}
	return err
}

func readReceipts(path string) ([]receipt.Values, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "open receipts file")
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var values []receipt.Values
	if err := dec.Decode(&values); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "decode receipts")
	}
	return values, nil
}

func sendAll(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	pending := eng.Pending()
	results, err := eng.SendAllReceipts(ctx)
	if err != nil {
		return err
	}
	for _, r := range pending {
		res := results[r.MessageUUID]
		fmt.Fprintf(out, "%s\tfik=%s\tbkp=%s\n", r.MessageUUID, res.FiscalCode, res.BKP)
	}
	return nil
}

func sendPartial(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	batch := eng.SendAllReceiptsPartial(ctx)
	for id, res := range batch.Results {
		fmt.Fprintf(out, "%s\tfik=%s\tbkp=%s\n", id, res.FiscalCode, res.BKP)
	}
	for id, err := range batch.Failures {
		fmt.Fprintf(out, "%s\tfailed=%d\t%v\n", id, dErrors.NumberOf(err), err)
	}
	return batch.Err()
}

func dryRun(ctx context.Context, eng *engine.Engine, out io.Writer) error {
	var failed error
	for _, r := range eng.Pending() {
		v, err := eng.DryRunSend(ctx, r)
		switch v.Outcome {
		case engine.VerifiedRejected:
			fmt.Fprintf(out, "%s\t%s\t%v\n", r.MessageUUID, v.Outcome, v.Rejection)
		case engine.VerificationFailed:
			fmt.Fprintf(out, "%s\t%s\t%v\n", r.MessageUUID, v.Outcome, err)
			failed = errors.Join(failed, err)
		default:
			fmt.Fprintf(out, "%s\t%s\n", r.MessageUUID, v.Outcome)
		}
	}
	return failed
}

func openJournal(ctx context.Context, cfg *config.Config, log *slog.Logger) (journal.Store, func(), error) {
	switch {
	case cfg.Journal.PostgresDSN != "":
		db, err := sql.Open("postgres", cfg.Journal.PostgresDSN)
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeConfig, "open journal database")
		}
		store := journal.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, dErrors.Wrap(err, dErrors.CodeConfig, "prepare journal schema")
		}
		log.Info("journal backed by postgres")
		return store, func() { _ = db.Close() }, nil
	case cfg.Redis.URL != "":
		client, err := platformredis.Open(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		log.Info("journal backed by redis")
		return journal.NewRedisStore(client.Client, journal.WithTTL(cfg.Journal.TTL)), func() { _ = client.Close() }, nil
	}
	return journal.NewInMemoryStore(), func() {}, nil
}

func openAudit(cfg *config.Config, log *slog.Logger) (audit.Emitter, func(), error) {
	if len(cfg.Audit.KafkaBrokers) == 0 {
		return audit.NewPublisher(audit.NewLogSink(log)), func() {}, nil
	}

	sink, err := audit.NewKafkaSink(cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeConfig, "connect audit producer")
	}
	inbox := make(chan audit.Event, cfg.Audit.QueueSize)
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = audit.NewWorker(sink, inbox, log).Run(workerCtx)
	}()

	closeFn := func() {
		close(inbox)
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			cancel()
			<-done
		}
		cancel()
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := sink.Close(flushCtx); err != nil {
			log.Error("audit producer close failed", "error", err)
		}
	}
	return audit.NewQueue(inbox), closeFn, nil
}
