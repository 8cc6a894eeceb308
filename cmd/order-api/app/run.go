package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/quickdash/order-api/configs"
	"github.com/quickdash/order-api/internal/adapter/cache"
	"github.com/quickdash/order-api/internal/adapter/gateway"
	httpadapter "github.com/quickdash/order-api/internal/adapter/http"
	"github.com/quickdash/order-api/internal/adapter/http/middleware"
	"github.com/quickdash/order-api/internal/adapter/kafka"
	"github.com/quickdash/order-api/internal/adapter/queue"
	"github.com/quickdash/order-api/internal/adapter/repo"
	"github.com/quickdash/order-api/internal/board"
	"github.com/quickdash/order-api/internal/logging"
	"github.com/quickdash/order-api/internal/security"
	"github.com/quickdash/order-api/internal/usecase"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile)
	l := logging.New("app")

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	cancel()

	l.Info("order-api: starting up")

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
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	// payment gateway + webhook verification
	gw, err := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Payment.BaseURL,
		SecretKey: cfg.Payment.SecretKey,
		Timeout:   cfg.Payment.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}
	webhook, err := security.NewWebhookVerifier(cfg.Payment.WebhookSecret)
	if err != nil {
		return nil, nil, err
	}

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	storeRepo := repo.NewMySQLStoreRepo(db)
	memberRepo := repo.NewMySQLMembershipRepo(db)
	outboxRepo := repo.NewMySQLOutboxRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	statusCache := cache.NewRedisStatusCache(rdb, cfg.Cache.TTL)
	cartStore := cache.NewRedisCartStore(rdb, cfg.Cart.TTL)

	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		return nil, nil, err
	}

	// use cases
	checkout := usecase.NewCheckout(storeRepo, memberRepo, cfg.Pricing)
	verifyMembership := usecase.NewVerifyMembership(memberRepo)
	createOrder := usecase.NewCreateOrder(orderRepo, idem, outboxRepo)
	payments := usecase.NewPayments(orderRepo, gw, idem, cartStore, statusCache,
		storeRepo, memberRepo, usecase.PaymentConfig{
			PollInterval:    cfg.Payment.PollInterval,
			PollMaxAttempts: cfg.Payment.PollMaxAttempts,
		})
	fulfillment := usecase.NewFulfillment(orderRepo, producer, statusCache)

	// change-feed reconciliation board
	orderBoard := board.New(boardFetcher{repo: orderRepo})

	// refund worker
	setupQueue(ch, gw)

	// change-feed listener
	setupFeedListener(cfg, orderBoard, statusCache)

	// handlers + router + middleware
	authz := middleware.NewAuthz(cfg)
	router := httpadapter.NewRouter(httpadapter.Handlers{
		Cart:        httpadapter.NewCartHandler(cartStore),
		Checkout:    httpadapter.NewCheckoutHandler(cartStore, checkout, createOrder, orderRepo),
		Payment:     httpadapter.NewPaymentHandler(payments, webhook),
		Membership:  httpadapter.NewMembershipHandler(verifyMembership),
		Fulfillment: httpadapter.NewFulfillmentHandler(fulfillment, orderBoard),
		Token:       httpadapter.NewTokenHandler(cfg),
	}, authz)

	cleanup := func() {
		_ = db.Close()
		_ = rdb.Close()
		_ = ch.Close()
		_ = conn.Close()
	}

	return &App{Router: router}, cleanup, nil
}

// boardFetcher adapts the order repo to the board's backfill port.
type boardFetcher struct {
	repo usecase.OrderRepo
}

func (f boardFetcher) FetchOrder(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	return f.repo.GetByID(ctx, id)
}

func setupQueue(ch *amqp091.Channel, gw usecase.PaymentGateway) {
	h := queue.NewRefundHandler(gw)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register("order.refund.q", queue.JSONHandler[usecase.RefundMsg]{HandleFunc: h.HandleRefund})

	if err := router.Start(); err != nil {
		panic(err)
	}
}

func setupFeedListener(cfg configs.Config, b *board.Board, statusCache usecase.OrderCache) {
	grp, err := kafka.NewGroup(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
	if err != nil {
		panic(err)
	}

	h := kafka.NewRowChangeHandler(b, statusCache)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.FeedTopic}, h.Handle, logging.New("kafka"))

	go func() {
		if err := consumer.Start(context.Background()); err != nil {
			logging.New("kafka").Error("feed consumer stopped", "error", err.Error())
		}
	}()
}
