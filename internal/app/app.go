package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Freeeeeet/booking_api/internal/auth"
	"github.com/Freeeeeet/booking_api/internal/config"
	"github.com/Freeeeeet/booking_api/internal/controller/httpapi"
	"github.com/Freeeeeet/booking_api/internal/events"
	"github.com/Freeeeeet/booking_api/internal/model"
	"github.com/Freeeeeet/booking_api/internal/notify"
	"github.com/Freeeeeet/booking_api/internal/repository"
	"github.com/Freeeeeet/booking_api/internal/repository/memory"
	"github.com/Freeeeeet/booking_api/internal/service"
)

// App собранное приложение: хранилища, сервисы, уведомления и HTTP API
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client

	Users        *service.UserService
	Appointments *service.AppointmentService
	Queries      *service.QueryService
	Ratings      *service.RatingService

	userDirectory repository.UserDirectory
	tokens        *auth.TokenManager

	dispatcher  *notify.AsyncDispatcher
	asynqClient *asynq.Client
	worker      *NotificationWorker
	kafka       *events.KafkaPublisher
	readyChecks []httpapi.ReadyCheck
}

// New собирает приложение по конфигу. Pool открывается только для STORE=postgres.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	stores, registry, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}
	a.userDirectory = registry

	if cfg.JWTSecret != "" {
		a.tokens, err = auth.NewTokenManager(cfg.JWTSecret, "bookingd", cfg.JWTTTL)
		if err != nil {
			return nil, err
		}
	}

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		a.readyChecks = append(a.readyChecks, httpapi.ReadyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}

	publisher, err := a.buildPublisher()
	if err != nil {
		return nil, err
	}

	notifier, err := a.buildNotifier(loc, registry)
	if err != nil {
		return nil, err
	}

	policy := service.DefaultTimePolicy(loc)
	schedCfg := service.DefaultSchedulerConfig()
	schedCfg.MaxPerCustomerPerDay = cfg.MaxBookingsPerDay
	schedCfg.SlotCapacity = cfg.SlotCapacity

	a.Queries = service.NewQueryService(stores, policy, logger)
	a.Appointments = service.NewAppointmentService(stores, policy, schedCfg, a.Queries, notifier, publisher, logger)
	a.Ratings = service.NewRatingService(stores, logger)
	a.Users = service.NewUserService(registry, logger)

	logger.Info("Application initialized",
		zap.String("store", cfg.Store),
		zap.String("timezone", loc.String()),
		zap.Int("max_per_day", schedCfg.MaxPerCustomerPerDay),
		zap.Int("slot_capacity", schedCfg.SlotCapacity),
		zap.Bool("redis", a.redis != nil),
		zap.Bool("kafka", a.kafka != nil),
	)

	ok = true
	return a, nil
}

func (a *App) openStores(ctx context.Context) (service.Stores, service.UserRegistry, error) {
	if a.cfg.Store == config.StoreMemory {
		store := memory.New()
		store.AddService(&model.Service{Name: "Standard service", EstimatedDurationMinutes: 20})
		a.logger.Warn("Using in-memory store, data is lost on restart")
		return service.Stores{
			Tx:           store,
			Appointments: store,
			Users:        store,
			Services:     store,
			Ratings:      store,
		}, store, nil
	}

	pool, err := OpenPool(ctx, a.cfg.DBDSN)
	if err != nil {
		return service.Stores{}, nil, err
	}
	a.pool = pool
	a.readyChecks = append(a.readyChecks, httpapi.ReadyCheck{Name: "postgres", Check: pool.Ping})

	users := repository.NewUserRepository(pool)
	return service.Stores{
		Tx:           repository.NewTxManager(pool),
		Appointments: repository.NewAppointmentRepository(pool),
		Users:        users,
		Services:     repository.NewServiceRepository(pool),
		Ratings:      repository.NewRatingRepository(pool),
	}, users, nil
}

// OpenPool подключается к Postgres и проверяет соединение
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (a *App) buildPublisher() (events.Publisher, error) {
	publishers := events.Multi{events.NewLogPublisher(a.logger)}
	if a.cfg.KafkaBrokers == "" {
		return publishers, nil
	}

	kafkaPublisher, err := events.NewKafkaPublisher(a.cfg.KafkaBrokers, a.cfg.KafkaTopic, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}
	a.kafka = kafkaPublisher
	a.readyChecks = append(a.readyChecks, httpapi.ReadyCheck{Name: "kafka", Check: events.ReadyCheck(a.cfg.KafkaBrokers)})
	return append(publishers, kafkaPublisher), nil
}

// buildNotifier при настроенном Redis ставит уведомления в очередь asynq,
// иначе доставляет их воркерами внутри процесса
func (a *App) buildNotifier(loc *time.Location, users repository.UserDirectory) (service.Notifier, error) {
	renderer, err := notify.NewRenderer(loc, a.cfg.CompanyName, a.cfg.SiteURL)
	if err != nil {
		return nil, err
	}

	var channels []notify.Channel
	if a.cfg.SMTPHost != "" {
		channels = append(channels, notify.NewSMTPSender(a.cfg.SMTPHost, a.cfg.SMTPPort, a.cfg.SMTPFrom, a.cfg.SMTPUsername, a.cfg.SMTPPassword))
	}
	if a.cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramSender(a.cfg.TelegramToken)
		if err != nil {
			return nil, fmt.Errorf("create telegram sender: %w", err)
		}
		channels = append(channels, telegram)
	}
	if len(channels) == 0 {
		a.logger.Warn("No notification channels configured, status notifications are disabled")
		return nil, nil
	}

	deliverer := notify.NewDeliverer(users, renderer, a.logger, channels...)

	if a.redis != nil {
		redisOpt := asynq.RedisClientOpt{Addr: a.cfg.RedisAddr, Password: a.cfg.RedisPassword, DB: a.cfg.RedisDB}
		a.asynqClient = asynq.NewClient(redisOpt)
		a.worker = NewNotificationWorker(redisOpt, a.cfg.NotifyQueue, a.cfg.NotifyWorkers, deliverer, a.logger)
		return notify.NewQueueDispatcher(a.asynqClient, a.cfg.NotifyQueue, a.logger), nil
	}

	a.dispatcher = notify.NewAsyncDispatcher(deliverer, a.cfg.NotifyWorkers, 64, 30*time.Second, a.logger)
	return a.dispatcher, nil
}

// Tokens возвращает менеджер токенов. Без JWT_SECRET выпуск токенов невозможен.
func (a *App) Tokens() (*auth.TokenManager, error) {
	if a.tokens == nil {
		return nil, errors.New("JWT_SECRET is required but not set")
	}
	return a.tokens, nil
}

// Router собирает HTTP API
func (a *App) Router() (*gin.Engine, error) {
	tokens, err := a.Tokens()
	if err != nil {
		return nil, err
	}

	var limiter httpapi.Limiter
	if a.cfg.RateLimitPerMin > 0 {
		if a.redis != nil {
			limiter = httpapi.NewRedisLimiter(a.redis, a.cfg.RateLimitPerMin, time.Minute, "bookingd:rl")
		} else {
			limiter = httpapi.NewLocalLimiter(a.cfg.RateLimitPerMin)
		}
	}

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	h := httpapi.NewHandler(a.Appointments, a.Queries, a.Ratings, a.userDirectory, tokens, a.logger)
	return httpapi.NewRouter(h, httpapi.Options{
		CORSOrigins: a.cfg.CORSOriginList(),
		Limiter:     limiter,
		ReadyChecks: a.readyChecks,
	}), nil
}

// Serve обслуживает HTTP до отмены ctx, затем корректно останавливается
func (a *App) Serve(ctx context.Context) error {
	router, err := a.Router()
	if err != nil {
		return err
	}

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return err
		}
		defer a.worker.Stop()
	}

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close освобождает ресурсы. Вызывается один раз после Serve.
func (a *App) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			a.logger.Warn("Failed to close asynq client", zap.Error(err))
		}
	}
	if a.kafka != nil {
		if err := a.kafka.Close(); err != nil {
			a.logger.Warn("Failed to close kafka publisher", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
