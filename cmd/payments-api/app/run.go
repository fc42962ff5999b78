package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/gokhangum/gumruk360-sub002/configs"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/balance"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/cache"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/http"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/http/middleware"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/kafka"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/queue"
	"github.com/gokhangum/gumruk360-sub002/internal/adapter/repo"
	"github.com/gokhangum/gumruk360-sub002/internal/logging"
	"github.com/gokhangum/gumruk360-sub002/internal/security"
	"github.com/gokhangum/gumruk360-sub002/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, "./logs/app.log")
	logging.SetLevel(cfg.App.LogLevel)
	l := logging.New("app")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	l.Info("payments-api: starting up")

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, nil, err
	}

	// init rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch, cfg.Rabbit.Exchange, cfg.Rabbit.RetryQueue)
	if err != nil {
		return nil, nil, err
	}

	// payload encryption key
	km, err := security.NewKeyMaterial(cfg)
	if err != nil {
		return nil, nil, err
	}
	sealer, err := security.NewPayloadSealer(km)
	if err != nil {
		return nil, nil, err
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	paymentRepo := repo.NewMySQLPaymentRepo(db)
	effectRepo := repo.NewMySQLEffectRepo(db)
	auditRepo := repo.NewMySQLAuditRepo(db)
	requestRepo := repo.NewMySQLRequestRepo(db)

	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.StatusTTL)
	rateCache := cache.NewRedisRateCache(rdb, cfg.Cache.RateTTL)

	balances := balance.NewClient(cfg.Balance.BaseURL, cfg.Balance.Timeout)

	// use cases
	dispatcher := usecase.NewDispatcher(effectRepo, balances, requestRepo, producer, auditRepo, 0)
	engine := usecase.NewProcessWebhook(orderRepo, paymentRepo, auditRepo, statusCache, sealer, dispatcher)
	createUC := usecase.NewCreatePurchaseIntent(orderRepo, idem, rateCache, requestRepo, auditRepo)

	// register queue-handler (effect retries)
	setupQueue(ch, cfg, balances, requestRepo, producer, auditRepo)

	// register kafka-listener (fx rate ticks)
	setupKafkaListener(cfg, rateCache)

	// init handlers + routers + middleware
	oh := http.NewOrderHandler(cfg, createUC, orderRepo, statusCache)
	ph := http.NewPaymentHandler(paymentRepo)
	wh := http.NewWebhookHandler(cfg, engine, auditRepo)
	th := http.NewTokenHandler(cfg)
	auth := middleware.NewAuthz(cfg)
	router := http.NewRouter(oh, ph, wh, th, auth)

	cleanup := func() {
		_ = ch.Close()
		_ = conn.Close()
		_ = db.Close()
		_ = rdb.Close()
	}

	return &App{Router: router}, cleanup, nil
}

func setupQueue(ch *amqp091.Channel, cfg configs.Config, balances usecase.BalanceService, requests usecase.RequestService, notifier usecase.Notifier, audit usecase.AuditRepo) {
	h := queue.NewEffectRetryHandler(balances, requests, notifier, audit)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register(cfg.Rabbit.RetryQueue, queue.JSONHandler[usecase.EffectRetryMsg]{HandleFunc: h.HandleRetry})

	if err := router.Start(); err != nil {
		panic(err)
	}
}

func setupKafkaListener(cfg configs.Config, rates *cache.RedisRateCache) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		panic(err)
	}

	h := kafka.NewRateTickHandler(rates)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.RatesTopic}, h.Handle)

	// Run in background (respect app context if you have one)
	go func() {
		if err := consumer.Start(context.Background()); err != nil {
			panic(err)
		}
	}()
}
