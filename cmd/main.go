package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/maxaizer/bulk-scraper/internal/api"
	"github.com/maxaizer/bulk-scraper/internal/bot"
	"github.com/maxaizer/bulk-scraper/internal/clients/web"
	"github.com/maxaizer/bulk-scraper/internal/config"
	"github.com/maxaizer/bulk-scraper/internal/logger"
	"github.com/maxaizer/bulk-scraper/internal/metrics"
	"github.com/maxaizer/bulk-scraper/internal/repositories"
	"github.com/maxaizer/bulk-scraper/internal/services"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func newOrchestrator(ctx context.Context, cfg *config.Config, dbContext *repositories.DbContext,
	bus EventBus.Bus) *services.Orchestrator {

	client := web.NewClient(cfg.Scraper.UserAgent)
	client.SetRateLimit(cfg.Scraper.MaxRequestsPerSecond)
	client.SetBackoff(cfg.Scraper.RetryBaseDelay)
	client.SetDefaultTimeout(cfg.Scraper.RequestTimeout)

	opportunities := repositories.NewCachedOpportunities(
		repositories.NewOpportunitiesRepository(dbContext.DB), cfg.Scraper.DuplicateCacheTTL)
	categories := repositories.NewCategoriesRepository(dbContext.DB)

	scraper := services.NewSiteScraper(client, services.NewExtractor(cfg.Scraper.DescriptionMaxLength))
	publisher := services.NewPublisher(categories, opportunities)

	return services.NewOrchestrator(ctx, bus,
		repositories.NewBulkConfigsRepository(dbContext.DB),
		repositories.NewJobRunsRepository(dbContext.DB),
		scraper, publisher)
}

func runBot(ctx context.Context, cfg config.NotifierConfig, bus EventBus.Bus, orchestrator *services.Orchestrator) {
	if !cfg.Enabled() {
		log.Info("telegram notifier is disabled")
		return
	}

	tgbot, err := bot.NewBot(cfg.Token, cfg.ChatID, bus, orchestrator)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTelegram).Errorf("can't create bot: %v", err)
		return
	}
	go tgbot.Run(ctx)
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Get()

	logger.Setup(ctx, cfg.Logger)
	defer logger.Cleanup()

	metrics.Register()

	dbContext, err := repositories.NewDbContext(cfg.DB)
	if err != nil {
		log.Fatalf("can't create db context: %v", err)
	}
	defer dbContext.Close()

	err = dbContext.Migrate()
	if err != nil {
		log.Fatalf("can't migrate db context: %v", err)
	}

	bulkConfigs := repositories.NewBulkConfigsRepository(dbContext.DB)
	if cfg.DB.SeedFile != "" {
		if _, err = services.ImportBulkConfigs(ctx, cfg.DB.SeedFile, bulkConfigs); err != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeConfig).Errorf("bulk configs import: %v", err)
		}
	}

	bus := EventBus.New()
	orchestrator := newOrchestrator(ctx, cfg, dbContext, bus)

	if err = orchestrator.RecoverInterrupted(ctx); err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).Error(err)
	}

	cleaner, err := services.NewJobRunsCleaner(repositories.NewJobRunsRepository(dbContext.DB),
		cfg.Scheduler.CleanupCron, cfg.Scheduler.JobRunRetentionDays)
	if err != nil {
		log.Fatalf("can't create cleaner: %v", err)
	}
	defer cleaner.Stop()

	var scheduler *services.ScrapeScheduler
	if cfg.Scheduler.Cron != "" {
		scheduler, err = services.NewScrapeScheduler(ctx, bulkConfigs, orchestrator, cfg.Scheduler.Cron)
		if err != nil {
			log.Fatalf("can't create scrape scheduler: %v", err)
		}
	}

	runBot(ctx, cfg.Notifier, bus, orchestrator)

	mux := http.NewServeMux()
	api.NewHandler(orchestrator).RegisterRoutes(mux)
	server := &http.Server{Addr: cfg.Server.Address(), Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("http server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down services...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("http server shutdown: %v", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	orchestrator.Wait()
	bus.WaitAsync()
	log.Info("Services stopped.")
}
