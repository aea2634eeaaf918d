package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-bulk/internal/api"
	"whatsapp-bulk/internal/config"
	"whatsapp-bulk/internal/contacts"
	"whatsapp-bulk/internal/database"
	"whatsapp-bulk/internal/delivery"
	"whatsapp-bulk/internal/history"
	"whatsapp-bulk/internal/logging"
	"whatsapp-bulk/internal/media"
	"whatsapp-bulk/internal/whatsapp"
	"whatsapp-bulk/internal/ws"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.Setup(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db, err := database.InitGorm(cfg, logging.For(logger, logging.CompHistory))
	if err != nil {
		return err
	}
	runs := history.NewStore(db, logging.For(logger, logging.CompHistory))

	mediaLog := logging.For(logger, logging.CompMedia)
	library, err := media.NewLibrary(cfg.AssetsDir, mediaLog)
	if err != nil {
		return err
	}
	builder := media.NewBuilder(media.DefaultThumbnailer{FFmpegPath: cfg.FFmpegPath}, mediaLog)

	contactStore := contacts.NewStore()
	reloader := contacts.NewReloader(cfg.ContactsFile, cfg.ContactsReload, contactStore, logging.For(logger, logging.CompContacts))
	if err := reloader.Start(ctx); err != nil {
		return err
	}
	defer reloader.Stop()

	hub := ws.NewHub(logging.For(logger, logging.CompWS))
	go hub.Run(ctx)

	sessionLog := logging.For(logger, logging.CompSession)
	dialer, err := whatsapp.NewClientDialer(ctx, cfg.SessionDriver, cfg.SessionDSN, sessionLog)
	if err != nil {
		return err
	}
	showQR := whatsapp.TerminalQR(os.Stdout)
	manager := whatsapp.NewManager(dialer, sessionLog, whatsapp.ManagerOptions{
		Backoff: cfg.ReconnectBackoff,
		OnQR: func(code string) {
			showQR(code)
			hub.QR(code)
		},
		OnState: hub.ConnectionState,
	})
	manager.Start(ctx)
	defer manager.Close()

	go func() {
		if _, err := manager.Acquire(ctx); err != nil {
			sessionLog.Warn().Err(err).Msg("whatsapp session not established")
			return
		}
		sessionLog.Info().Msg("whatsapp socket connected and kept open")
	}()

	deliverer := delivery.NewDeliverer(library, builder, delivery.Options{
		CountryCode:   cfg.CountryCode,
		MediaDelay:    cfg.MediaDelay,
		ContactDelay:  cfg.ContactDelay,
		ContactJitter: cfg.ContactJitter,
	}, logging.For(logger, logging.CompDelivery))
	deliverer.Observe(hub)

	httpLog := logging.For(logger, logging.CompHTTP)
	broadcast := api.NewBroadcastHandler(manager, deliverer, contactStore, runs, hub, httpLog)
	router := api.NewRouter(api.Handlers{
		Contacts:  api.NewContactHandler(contactStore, reloader, cfg.CountryCode),
		Media:     api.NewMediaHandler(library, cfg.MaxUploadMB, cfg.MaxUploadFiles, httpLog),
		Broadcast: broadcast,
		Dashboard: api.NewDashboardHandler(manager, contactStore, library, broadcast),
		WS:        hub.ServeWs,
		AssetsDir: library.Dir(),
	}, httpLog)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		httpLog.Info().Str("addr", srv.Addr).Msgf("bulk WhatsApp running at http://localhost:%s", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	httpLog.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
