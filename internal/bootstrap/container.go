package bootstrap

import (
	"context"
	"log"

	"club-directory-be/internal/config"
	"club-directory-be/internal/controller"
	"club-directory-be/internal/pkg/clock"
	"club-directory-be/internal/pkg/logger"
	"club-directory-be/internal/pkg/mailer"
	"club-directory-be/internal/repository/memory"
	"club-directory-be/internal/repository/unitofwork"
	"club-directory-be/internal/service"
	"club-directory-be/pkg/lock"
	membershipEvents "club-directory-be/pkg/membership/events"
	pktNats "club-directory-be/pkg/nats"
	"club-directory-be/pkg/payment"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const lockKeyPrefix = "billing:lock:"

type Container struct {
	// Controllers
	WebhookController    controller.IWebhookController
	MembershipController controller.IMembershipController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	Logger logger.ILogger

	closers []func()
}

// NewContainer wires the billing services. A nil db falls back to the in-memory store.
func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) *Container {
	// 1. Core Facades
	var uowFactory unitofwork.RepositoryFactory
	if db != nil {
		uowFactory = unitofwork.NewRepositoryFactory(db)
	} else {
		log.Println("[WARN] No database configured, using in-memory store")
		uowFactory = memory.NewRepositoryFactory(memory.NewStore())
	}

	var closers []func()

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
		sysLogger,
	)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)
	closers = append(closers, func() { _ = pubSub.Close() })

	// 2.5 Infrastructure
	// NATS
	var bus membershipEvents.Bus
	if cfg.App.NatsURL != "" {
		natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			bus = natsPub
			closers = append(closers, natsPub.Close)
		}
	}

	// Redis
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v. Using in-process locks", err)
			_ = rdb.Close()
		} else {
			locker = lock.NewRedisLocker(rdb, lockKeyPrefix, sysLogger)
			closers = append(closers, func() { _ = rdb.Close() })
		}
	}

	provider := payment.NewStripeProvider(payment.Config{
		SecretKey:        cfg.Stripe.SecretKey,
		WebhookSecret:    cfg.Stripe.WebhookSecret,
		CallTimeout:      cfg.Stripe.CallTimeout,
		MaxRetries:       uint(max(cfg.Stripe.MaxRetries, 1)),
		FailureThreshold: uint32(max(cfg.Stripe.FailureThreshold, 1)),
		BreakerTimeout:   cfg.Stripe.BreakerTimeout,
	}, sysLogger)

	if cfg.Billing.TestMode {
		log.Println("[WARN] Billing test mode is on: cancellations expire within minutes")
	}

	// 3. Services
	clk := clock.SystemClock{}
	publisher := membershipEvents.NewNatsPublisher(bus, sysLogger)
	userStatus := service.NewUserStatusService(sysLogger)
	refundMails := service.NewRefundEmailQueue(pubSub, cfg.Billing.RefundEmailQueue)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Billing.RefundEmailQueue,
		emailService,
		sysLogger,
	)

	eventService := service.NewSubscriptionEventService(
		uowFactory,
		provider,
		userStatus,
		refundMails,
		publisher,
		clk,
		cfg.Billing.TestMode,
		sysLogger,
	)
	webhookService := service.NewWebhookService(
		uowFactory,
		provider,
		eventService,
		locker,
		service.WebhookOptions{
			LockTTL:  cfg.Billing.LockTTL,
			LockWait: cfg.Billing.LockWait,
			DedupTTL: cfg.Billing.EventDedupTTL,
		},
		clk,
		sysLogger,
	)
	membershipService := service.NewMembershipService(
		uowFactory,
		provider,
		userStatus,
		publisher,
		locker,
		cfg.Billing.LockTTL,
		clk,
		cfg.Billing.TestMode,
		sysLogger,
	)

	// 4. Controllers
	return &Container{
		WebhookController:    controller.NewWebhookController(webhookService, sysLogger),
		MembershipController: controller.NewMembershipController(membershipService),

		ConsumerService: consumerService,
		Logger:          sysLogger,

		closers: closers,
	}
}

// Close releases broker and cache connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
