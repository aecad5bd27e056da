package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"learning_observer/internal/app"
	"learning_observer/internal/domain/directory"
	domainEmail "learning_observer/internal/domain/email"
	"learning_observer/internal/domain/notification"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/processing"
	"learning_observer/internal/domain/review"
	"learning_observer/internal/domain/schedule"
	"learning_observer/internal/infra/config"
	idb "learning_observer/internal/infra/database"
	"learning_observer/internal/infra/dedup"
	"learning_observer/internal/infra/email"
	"learning_observer/internal/infra/events"
	"learning_observer/internal/infra/logger"
	"learning_observer/internal/infra/memory"
	"learning_observer/internal/infra/metrics"
	"learning_observer/internal/infra/retry"
	"learning_observer/internal/infra/scheduler"
	"learning_observer/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// stores groups every repository the services need, whichever backend provides them.
type stores struct {
	schedules     schedule.Repository
	processing    processing.Repository
	observations  observation.Repository
	reviews       review.Repository
	reviewWriter  review.Writer
	notifications notification.Repository
	notifWriter   notification.Writer
	directory     directory.Repository
	principals    directory.PrincipalResolver
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Could not load application configuration: %v", err)
	}

	log := logger.New(cfg)
	mainLogger := log.WithField("component", "main")
	mainLogger.WithFields(logrus.Fields{
		"log_level":          cfg.LogLevel,
		"environment":        cfg.Environment,
		"storage_backend":    cfg.StorageBackend,
		"strict_idempotency": cfg.StrictIdempotency,
		"timezone":           cfg.ScheduleTimezone,
	}).Info("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap := retry.Default()
	bootstrap.OnRetry = func(attempt int, delay time.Duration, err error) {
		mainLogger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Collaborator not ready, retrying")
	}

	var st stores
	switch cfg.StorageBackend {
	case config.BackendMemory:
		mem := memory.NewStore(cfg.StrictIdempotency)
		st = stores{mem, mem, mem, mem, mem, mem, mem, mem, mem}
		mainLogger.Warn("Using in-memory storage; data is lost on restart")
	default:
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL, bootstrap)
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not connect to database")
		}
		defer db.Close()

		serviceDB := db
		if cfg.DatabaseServiceURL != cfg.DatabaseURL {
			serviceDB, err = idb.NewPostgresConnection(ctx, cfg.DatabaseServiceURL, bootstrap)
			if err != nil {
				mainLogger.WithError(err).Fatal("Could not connect to database with service credentials")
			}
			defer serviceDB.Close()
		}
		if err := idb.EnsureSchema(ctx, serviceDB, cfg.StrictIdempotency); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply database schema")
		}
		st = postgresStores(db, serviceDB)
		mainLogger.Info("Database connection established successfully.")
	}

	var mailer domainEmail.Client
	if cfg.SendGridAPIKey != "" {
		mailer = email.NewSendGridClient(cfg.SendGridAPIKey, cfg.EmailFromName, cfg.EmailFrom)
	} else {
		mainLogger.Warn("SENDGRID_API_KEY not set; reminder emails will be logged only")
		mailer = email.NewLogClient(log.WithField("component", "email"))
	}

	base := log.WithField("app", "learning_observer")
	processingLog := app.NewProcessingLog(st.processing, cfg.Location, nil, base)
	scheduleService := app.NewScheduleService(st.schedules, st.directory, processingLog, cfg.Location, nil, base)
	reminderService := app.NewReminderService(st.schedules, st.observations, st.directory, mailer, cfg.Location, nil, base)
	relay := app.NewNotificationRelay(st.directory, st.principals, st.notifications, st.notifWriter, nil, base)
	reviewService := app.NewReviewService(st.observations, st.reviews, st.reviewWriter, st.directory, relay, nil, base)
	// Extraction and narrative collaborators are external; typed notes need none of them.
	observationService := app.NewObservationService(st.observations, st.directory, processingLog, app.Extractors{}, cfg.Location, nil, base)

	if cfg.RedisAddr != "" {
		rdb, err := dedup.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, bootstrap)
		if err != nil {
			mainLogger.WithError(err).Warn("Redis unavailable; reminder dedup disabled")
		} else {
			defer rdb.Close()
			reminderService.WithDeduper(dedup.NewRedisDeduper(rdb, cfg.ReminderDedupTTL, base))
			mainLogger.Info("Reminder dedup backed by redis")
		}
	}

	if cfg.MQURL != "" {
		pub, err := events.NewPublisher(ctx, cfg.MQURL, bootstrap)
		if err != nil {
			mainLogger.WithError(err).Warn("RabbitMQ unavailable; peer review events disabled")
		} else {
			defer pub.Close()
			relay.WithPublisher(pub)
			mainLogger.Info("Peer review events published to RabbitMQ")
		}
	}

	metrics.Serve(ctx, cfg.MetricsAddr, log.WithField("component", "metrics"))

	reminderScheduler := scheduler.NewReminderScheduler(reminderService, scheduler.Options{
		Interval:     cfg.ReminderInterval,
		MisfireGrace: cfg.ReminderMisfireGrace,
		TickTimeout:  cfg.ReminderTickTimeout,
		Coalesce:     cfg.ReminderCoalesce,
		AllowOverlap: cfg.ReminderAllowOverlap,
		Location:     cfg.Location,
	}, base)
	reminderScheduler.Start()

	var bot *telebot.Bot
	if cfg.TelegramToken != "" {
		botLogger := log.WithField("component", "telegram")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) {
				l := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					l = l.WithFields(logrus.Fields{"text": c.Text(), "sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				l.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, botLogger)
		telegram.RegisterAdminHandlers(ctx, bot, telegram.AdminDeps{
			Schedules:    scheduleService,
			Reviews:      reviewService,
			Observations: observationService,
			Processing:   processingLog,
			Scheduler:    reminderScheduler,
		}, cfg.AdminTelegramID, botLogger)
		go bot.Start()
		mainLogger.Info("Admin bot started")
	}

	mainLogger.Info("Application setup complete. Reminder dispatcher is running.")
	<-ctx.Done()

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	reminderScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}

func postgresStores(db, serviceDB *sql.DB) stores {
	dir := idb.NewPostgresDirectoryRepository(db)
	writer := idb.NewPostgresPrivilegedWriter(serviceDB)
	return stores{
		schedules:     idb.NewPostgresScheduleRepository(db),
		processing:    idb.NewPostgresProcessingRepository(db),
		observations:  idb.NewPostgresObservationRepository(db),
		reviews:       idb.NewPostgresReviewRepository(db),
		reviewWriter:  writer,
		notifications: idb.NewPostgresNotificationRepository(db),
		notifWriter:   writer,
		directory:     dir,
		principals:    dir,
	}
}
