package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/goliatone/go-siterequest/internal/config"
	"github.com/goliatone/go-siterequest/internal/logging"
	"github.com/goliatone/go-siterequest/pkg/formstate"
	"github.com/goliatone/go-siterequest/pkg/metrics"
	"github.com/goliatone/go-siterequest/pkg/renderers/tui"
	"github.com/goliatone/go-siterequest/pkg/session"
	"github.com/goliatone/go-siterequest/pkg/sources"
	"github.com/goliatone/go-siterequest/pkg/sources/catalog"
	"github.com/goliatone/go-siterequest/pkg/sources/httpsource"
	"github.com/goliatone/go-siterequest/pkg/sources/openapi"
	"github.com/goliatone/go-siterequest/pkg/sources/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run executes the CLI. A nil driver uses the interactive survey prompts.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, driver tui.PromptDriver) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	fs := flag.NewFlagSet("siterequest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags]\n\nRequest a new site interactively.\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	cfg.BindFlags(fs)
	dump := fs.Bool("dump", false, "Print the final form state as JSON")
	list := fs.Bool("list", false, "List stored requests as JSON and exit")
	serve := fs.String("serve", "", "Serve the catalog and accept requests over HTTP on this address instead of prompting")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	validate := cfg.Validate
	if *list {
		validate = cfg.ValidateStorage
	}
	if err := validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	store, err := sqlite.Open(ctx, cfg.DatabasePath, sqlite.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("open request store")
		return 1
	}
	defer func() { _ = store.Close() }()

	if *list {
		return listRequests(ctx, store, stdout, logger)
	}

	src, err := buildSources(ctx, cfg, store, logger)
	if err != nil {
		logger.Error().Err(err).Msg("configure sources")
		return 1
	}

	if *serve != "" {
		return serveCatalog(ctx, *serve, src, logger)
	}

	collector := metrics.NewCollector(logger, "")
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, collector, logger)
		defer shutdown()
	}

	formOpts := append([]formstate.Option{
		formstate.WithLogger(logger),
		formstate.WithAliasRequired(cfg.RequireAlias),
	}, collector.StoreOptions()...)
	ctrl, err := session.New(src,
		session.WithLogger(logger),
		session.WithStore(formstate.New(formOpts...)),
	)
	if err != nil {
		logger.Error().Err(err).Msg("configure session")
		return 1
	}

	wizardOpts := []tui.Option{
		tui.WithLogger(logger),
		tui.WithAliasRequired(cfg.RequireAlias),
		tui.WithTheme(tui.Theme{ErrorPrefix: "✗ "}),
	}
	if driver != nil {
		wizardOpts = append(wizardOpts, tui.WithPromptDriver(driver))
	} else {
		wizardOpts = append(wizardOpts, tui.WithPromptDriver(tui.NewSurveyDriver(stdout)))
	}
	wizard, err := tui.New(ctrl, wizardOpts...)
	if err != nil {
		logger.Error().Err(err).Msg("configure wizard")
		return 1
	}

	st, runErr := wizard.Run(ctx)
	if *dump {
		if err := writeJSON(stdout, st.View()); err != nil {
			logger.Error().Err(err).Msg("dump state")
			return 1
		}
	}
	switch {
	case runErr == nil:
		logger.Info().Str("division", st.SelectedDivision).Str("template", st.SelectedSiteTemplate).Msg("site request saved")
		return 0
	case errors.Is(runErr, tui.ErrAborted), errors.Is(runErr, context.Canceled):
		logger.Warn().Msg("site request abandoned")
		return 130
	default:
		logger.Error().Err(runErr).Msg("site request failed")
		return 1
	}
}

// buildSources wires the catalog file and the local store, or, with a source
// URL, hands reference data, alias checks and submissions to the remote
// service.
func buildSources(ctx context.Context, cfg config.Config, store *sqlite.Store, logger zerolog.Logger) (session.Sources, error) {
	var src session.Sources
	if cfg.SourceURL != "" {
		opts := []httpsource.Option{httpsource.WithTimeout(cfg.RequestTimeout)}
		for key, value := range cfg.SourceHeaders {
			opts = append(opts, httpsource.WithHeader(key, value))
		}
		client, err := httpsource.New(cfg.SourceURL, opts...)
		if err != nil {
			return session.Sources{}, err
		}
		src = session.FromCatalog(client, client, client)
		logger.Debug().Str("url", cfg.SourceURL).Msg("using http source")
	} else {
		c, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			return session.Sources{}, err
		}
		src = session.FromCatalog(c, sources.ChainAliasValidators(c, store), store)
		logger.Debug().Str("path", cfg.CatalogPath).Msg("using catalog file")
	}

	if cfg.FieldSchemaPath != "" {
		raw, err := os.ReadFile(cfg.FieldSchemaPath)
		if err != nil {
			return session.Sources{}, fmt.Errorf("read field schema: %w", err)
		}
		fields, err := openapi.NewFieldSource(ctx, raw, openapi.WithValidation())
		if err != nil {
			return session.Sources{}, err
		}
		src.Fields = fields
		logger.Debug().Strs("content_types", fields.ContentTypes()).Msg("using openapi field schema")
	}
	return src, nil
}

// catalogView regroups the session sources so they can be served as one
// catalog.
type catalogView struct {
	sources.DivisionSource
	sources.SiteTemplateSource
	sources.FieldSource
}

func serveCatalog(ctx context.Context, addr string, src session.Sources, logger zerolog.Logger) int {
	handler := httpsource.NewHandler(
		catalogView{src.Divisions, src.SiteTemplates, src.Fields},
		httpsource.WithAliasValidator(src.Aliases),
		httpsource.WithSink(src.Sink),
		httpsource.WithHandlerLogger(logger),
	)
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", handler))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info().Str("addr", addr).Msg("serving site request api")

	select {
	case err := <-errCh:
		logger.Error().Err(err).Str("addr", addr).Msg("site request api stopped")
		return 1
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown site request api")
	}
	return 0
}

func serveMetrics(addr string, collector *metrics.Collector, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func listRequests(ctx context.Context, store *sqlite.Store, out io.Writer, logger zerolog.Logger) int {
	records, err := store.Requests(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list requests")
		return 1
	}
	if err := writeJSON(out, records); err != nil {
		logger.Error().Err(err).Msg("write requests")
		return 1
	}
	return 0
}

func writeJSON(out io.Writer, value any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
