package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"kabinet/internal/api"
	"kabinet/internal/bot"
	"kabinet/internal/config"
	"kabinet/internal/database"
	"kabinet/internal/domain"
	"kabinet/internal/events"
	"kabinet/internal/forms"
	"kabinet/internal/google"
	"kabinet/internal/logging"
	"kabinet/internal/metrics"
	"kabinet/internal/models"
	"kabinet/internal/repository"
	"kabinet/internal/service"
	"kabinet/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventBus := events.NewEventBus()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)
	m.Subscribe(eventBus)

	redisClient, stateService := initStateService(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	// Инициализация бизнес-сервисов
	userService := service.NewUserService(db, eventBus, cfg.Admins, &logger)
	catalogService := service.NewCatalogService(db, &logger)
	bookingService := service.NewBookingService(db, eventBus, cfg.Bot.MaxBookingsPerUser, &logger)
	funnelService := service.NewFunnelService(db, eventBus, &logger)

	if err := seedServices(ctx, cfg.ServicesFile, catalogService, &logger); err != nil {
		return err
	}

	botWrapper, err := bot.NewBotWrapper(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	tgService := service.NewTelegramService(botWrapper)

	broadcastService := service.NewBroadcastService(db, userService, tgService, tgService, eventBus,
		service.BroadcastOptions{BatchSize: cfg.Bot.BroadcastBatchSize, Delay: cfg.Bot.BroadcastBatchDelay}, &logger)
	defer broadcastService.Shutdown()
	notifier := service.NewAdminNotifier(tgService, cfg.Admins, &logger)

	engine := initForms(stateService, userService, catalogService, bookingService, funnelService, broadcastService, notifier, &logger)

	startSheetsSync(ctx, cfg, db, redisClient, eventBus, userService, bookingService, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		var gatherer prometheus.Gatherer
		if cfg.Monitoring.PrometheusEnabled {
			gatherer = registry
		}
		apiServer := api.NewHTTPServer(&cfg.API, db, funnelService, m, gatherer, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	telegramBot, err := bot.NewBot(
		tgService, cfg, stateService, engine,
		userService, catalogService, bookingService, funnelService,
		broadcastService, m, &logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)
	telegramBot.Stop()

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

// seedServices загружает каталог услуг из YAML. Без файла каталог ведётся только из админки.
func seedServices(ctx context.Context, path string, catalog *service.CatalogService, logger *zerolog.Logger) error {
	if path == "" {
		path = os.Getenv("SERVICES_PATH")
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Файл услуг не найден, пропускаем")
			return nil
		}
		logger.Error().Err(err).Msgf("Ошибка чтения %s", path)
		return err
	}

	var servicesConfig struct {
		Services []models.Service `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &servicesConfig); err != nil {
		logger.Error().Err(err).Msgf("Ошибка парсинга %s", path)
		return err
	}

	if err := catalog.Seed(ctx, servicesConfig.Services); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации услуг")
		return err
	}
	return nil
}

func initStateService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.StateService) {
	ttl := cfg.State.TTL
	fallbackRepo := repository.NewMemoryStateRepository(ttl)

	if cfg.Redis.Address == "" {
		logger.Info().Msg("Redis не настроен, состояния хранятся в памяти")
		return nil, service.NewStateService(fallbackRepo, logger)
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if errPing := repository.Ping(ctx, redisClient); errPing != nil {
		logger.Warn().Err(errPing).Msg("Redis unavailable")
	}

	primaryRepo := repository.NewRedisStateRepository(redisClient, ttl)
	stateRepo := repository.NewFailoverStateRepository(primaryRepo, fallbackRepo, logger)
	return redisClient, service.NewStateService(stateRepo, logger)
}

func initForms(
	states domain.StateManager,
	users *service.UserService,
	catalog *service.CatalogService,
	bookings *service.BookingService,
	funnels *service.FunnelService,
	broadcasts *service.BroadcastService,
	notifier domain.Notifier,
	logger *zerolog.Logger,
) *forms.Engine {
	userDeps := forms.UserDeps{
		Users:    users,
		Catalog:  catalog,
		Bookings: bookings,
		Notifier: notifier,
		Now:      time.Now,
	}
	adminDeps := forms.AdminDeps{
		Funnels:    funnels,
		Broadcasts: broadcasts,
		Launcher:   broadcasts,
	}
	return forms.NewEngine(states, logger,
		forms.NewBookingForm(userDeps),
		forms.NewRegistrationForm(userDeps, logger),
		forms.NewFunnelForm(adminDeps),
		forms.NewFunnelStepForm(adminDeps),
		forms.NewBroadcastForm(adminDeps),
		forms.NewDefaultTextForm(adminDeps),
	)
}

// startSheetsSync зеркалит заявки в Google Sheets. Ошибки подключения не останавливают бота.
func startSheetsSync(
	ctx context.Context,
	cfg *config.Config,
	db *database.DB,
	redisClient *redis.Client,
	eventBus *events.EventBus,
	users *service.UserService,
	bookings *service.BookingService,
	logger *zerolog.Logger,
) {
	if !cfg.Google.Enabled() {
		logger.Info().Msg("Google Sheets не настроен, выгрузка отключена")
		return
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile,
		cfg.Google.UsersSpreadsheetID, cfg.Google.BookingSpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); emailErr == nil {
			logger.Error().Err(err).Str("service_account", email).Msg("Google Sheets connection test failed, share the sheet with the service account")
		} else {
			logger.Error().Err(err).Msg("Google Sheets connection test failed")
		}
		return
	}
	logger.Info().Msg("Google Sheets service initialized successfully")

	// Запускаем воркер синхронизации Google Sheets
	sheetsWorker := worker.NewSheetsWorker(db, sheetsService, redisClient, worker.DefaultRetryPolicy(), logger)
	sheetsWorker.Subscribe(eventBus)
	go sheetsWorker.Start(ctx)

	go func() {
		resyncSheets(ctx, sheetsService, users, bookings, logger)
		sheetsService.RunCacheRefresh(ctx, time.Hour)
	}()
}

// resyncSheets перезаливает оба листа целиком при старте.
func resyncSheets(ctx context.Context, sheets *google.SheetsService, users *service.UserService, bookings *service.BookingService, logger *zerolog.Logger) {
	syncCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	all, err := bookings.AllBookings(syncCtx)
	if err != nil {
		logger.Error().Err(err).Msg("sheets: load bookings")
		return
	}
	if err := sheets.ReplaceBookingsSheet(syncCtx, all); err != nil {
		logger.Error().Err(err).Msg("sheets: replace bookings sheet")
		return
	}
	if err := sheets.FormatBookingsSheet(syncCtx); err != nil {
		logger.Warn().Err(err).Msg("sheets: format bookings sheet")
	}

	list, err := users.AllUsers(syncCtx)
	if err != nil {
		logger.Error().Err(err).Msg("sheets: load users")
		return
	}
	if err := sheets.UpdateUsersSheet(syncCtx, list); err != nil {
		logger.Warn().Err(err).Msg("sheets: update users sheet")
	}
	logger.Info().Int("bookings", len(all)).Msg("sheets: initial sync done")
}
