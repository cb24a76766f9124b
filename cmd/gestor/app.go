package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dusk-indust/gestor/internal/api"
	"github.com/dusk-indust/gestor/internal/asaas"
	"github.com/dusk-indust/gestor/internal/boleto"
	"github.com/dusk-indust/gestor/internal/config"
	"github.com/dusk-indust/gestor/internal/gatewaylog"
	"github.com/dusk-indust/gestor/internal/httpclient"
	"github.com/dusk-indust/gestor/internal/invoice"
	"github.com/dusk-indust/gestor/internal/logging"
	"github.com/dusk-indust/gestor/internal/mcptools"
	"github.com/dusk-indust/gestor/internal/pagseguro"
	"github.com/dusk-indust/gestor/internal/pdfmerge"
	"github.com/dusk-indust/gestor/internal/serviceorder"
	"github.com/dusk-indust/gestor/internal/store"
	"github.com/dusk-indust/gestor/internal/whatsapp"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  store.Store
	http   *http.Client

	boletos    *boleto.Service
	invoices   *invoice.Service
	orders     *serviceorder.Generator
	merger     *pdfmerge.Merger
	whatsapp   *whatsapp.Client
	timeouts   *whatsapp.TimeoutChecker
	pagseguro  *pagseguro.Client
	gatewayLog *gatewaylog.Recorder

	closeLog func() error
}

// loadApp reads the configuration at path and wires the services.
func loadApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	closeLog, err := logging.Setup(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, err
	}
	logger := logging.L()

	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		closeLog()
		return nil, err
	}

	hc := httpclient.New(httpclient.Config{Timeout: cfg.HTTP.Timeout})
	gl := gatewaylog.New(st, logger)
	wa := whatsapp.New(whatsapp.Config{
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		VerifyToken:   cfg.WhatsApp.VerifyToken,
		APIVersion:    cfg.WhatsApp.APIVersion,
		BaseURL:       cfg.WhatsApp.BaseURL,
	}, whatsapp.WithHTTPClient(hc))

	invoiceOpts := []invoice.Option{}
	gw, err := asaas.New(asaas.Config{
		APIKey:      cfg.Asaas.APIKey,
		Environment: cfg.Asaas.Environment,
		BaseURL:     cfg.Asaas.BaseURL,
	}, asaas.WithHTTPClient(hc), asaas.WithLogger(logger))
	switch {
	case err == nil:
		invoiceOpts = append(invoiceOpts, invoice.WithGateway(gw))
	case errors.Is(err, asaas.ErrMissingAPIKey):
		logger.Warn("asaas.not_configured")
	default:
		st.Close()
		closeLog()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		http:   hc,

		boletos: boleto.NewService(st, logger, cfg.App.UTCOffsetHours,
			boleto.WithSender(wa), boleto.WithConcurrency(cfg.Notify.Concurrency)),
		invoices: invoice.NewService(st, logger, cfg.App.UTCOffsetHours, invoiceOpts...),
		orders:   serviceorder.NewGenerator(st, cfg.App.UTCOffsetHours),
		merger:   pdfmerge.New(pdfmerge.WithHTTPClient(hc), pdfmerge.WithLogger(logger)),
		whatsapp: wa,
		timeouts: whatsapp.NewTimeoutChecker(st, wa, logger, cfg.Notify.Concurrency),
		pagseguro: pagseguro.New(pagseguro.Config{
			Token:       cfg.PagSeguro.Token,
			Environment: cfg.PagSeguro.Environment,
			BaseURL:     cfg.PagSeguro.BaseURL,
		}, pagseguro.WithHTTPClient(hc), pagseguro.WithRecorder(gl)),
		gatewayLog: gl,
		closeLog:   closeLog,
	}, nil
}

func (a *app) apiDeps() api.Deps {
	return api.Deps{
		Boletos:    a.boletos,
		Invoices:   a.invoices,
		Orders:     a.orders,
		Merger:     a.merger,
		WhatsApp:   a.whatsapp,
		Timeouts:   a.timeouts,
		PagSeguro:  a.pagseguro,
		GatewayLog: a.gatewayLog,
		HTTPClient: a.http,
		CronSecret: a.cfg.Cron.Secret,
		PublicURL:  a.cfg.App.PublicURL,
		Logger:     a.logger,
	}
}

func (a *app) mcpService() *mcptools.Service {
	return mcptools.NewService(a.orders, a.boletos, a.invoices, a.merger)
}

func (a *app) Close() error {
	err := a.store.Close()
	if cerr := a.closeLog(); err == nil {
		err = cerr
	}
	return err
}
