package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"mailtriage/config"
	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/ai"
	"mailtriage/internal/budget"
	"mailtriage/internal/digest"
	"mailtriage/internal/learning"
	"mailtriage/internal/mq"
	"mailtriage/internal/mqhandler"
	"mailtriage/internal/repository"
	"mailtriage/internal/router"
	"mailtriage/internal/scoring"
	"mailtriage/internal/service"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/db"
	"mailtriage/pkg/logger"
	pkgredis "mailtriage/pkg/redis"
	"mailtriage/pkg/util"
)

func main() {
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting triage worker")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Init Redis for dedup and retry accounting
	rdb, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatal("Redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour, log)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// Publisher for feedback and digest events emitted from the worker
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Repositories
	userRepo := repository.NewUserRepository(dbConn, log)
	emailRepo := repository.NewEmailRepository(dbConn, log)
	scoreRepo := repository.NewScoreRepository(dbConn, log)
	vipRepo := repository.NewVIPRepository(dbConn, log)
	patternRepo := repository.NewPatternRepository(dbConn, log)
	prefsRepo := repository.NewPrefsRepository(dbConn, log)
	statsRepo := repository.NewSenderStatsRepository(dbConn, log)
	usageRepo := repository.NewUsageRepository(dbConn, log)
	digestRepo := repository.NewDigestRepository(dbConn, log)

	// Scoring pipeline: ledger, breaker, invoker, engine, tier router
	ledger := budget.NewPostgresLedger(dbConn)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold:    cfg.Breaker.FailureThreshold,
		SuccessThreshold:    cfg.Breaker.SuccessThreshold,
		Cooldown:            time.Duration(cfg.Breaker.CooldownSeconds) * time.Second,
		HalfOpenMaxRequests: cfg.Breaker.HalfOpenMaxRequests,
	})

	aiCfg := ai.DefaultInvokerConfig()
	aiCfg.PrimaryModel = cfg.Anthropic.PrimaryModel
	aiCfg.FallbackModel = cfg.Anthropic.FallbackModel
	if cfg.Anthropic.MaxTokens > 0 {
		aiCfg.MaxTokens = cfg.Anthropic.MaxTokens
	}
	if cfg.Anthropic.CallTimeoutSeconds > 0 {
		aiCfg.CallTimeout = time.Duration(cfg.Anthropic.CallTimeoutSeconds) * time.Second
	}
	if cfg.Anthropic.MaxAttempts > 0 {
		aiCfg.MaxAttempts = cfg.Anthropic.MaxAttempts
	}
	if cfg.Anthropic.BackoffBaseMS > 0 {
		aiCfg.BackoffBase = time.Duration(cfg.Anthropic.BackoffBaseMS) * time.Millisecond
	}
	aiCfg.Rates = make(map[string]ai.ModelRate, len(cfg.Anthropic.Rates))
	for name, rate := range cfg.Anthropic.Rates {
		aiCfg.Rates[name] = ai.ModelRate{
			InputCentsPer1K:  rate.InputCentsPer1K,
			OutputCentsPer1K: rate.OutputCentsPer1K,
		}
	}

	capability := ai.NewAnthropicCapability(cfg.Anthropic.APIKey)
	invoker := ai.NewInvoker(capability, breaker, aiCfg, usageRepo, log)

	engine := scoring.NewEngine(scoring.DefaultConfig())
	alerter := service.NewBudgetAlerter(publisher, log)
	tierRouter := router.New(ledger, invoker, alerter, log)

	loop := learning.NewLoop(patternRepo, vipRepo, statsRepo, learning.DefaultLoopConfig(), log)
	classifier := digest.NewKeywordClassifier()
	aggregator := digest.NewAggregator(emailRepo, digestRepo, classifier, log)

	scoreService := service.NewScoreService(engine, tierRouter,
		emailRepo, scoreRepo, vipRepo, patternRepo, prefsRepo, statsRepo,
		cfg.Worker.ScoreWorkers, log)
	feedbackService := service.NewFeedbackService(loop, emailRepo, prefsRepo, publisher, log)
	digestService := service.NewDigestService(aggregator, digestRepo, prefsRepo, userRepo,
		feedbackService, publisher, log)

	// MQ handlers
	scoreHandler := mqhandler.NewEmailReceivedScoreHandler(scoreService, deduper, retryCounter, publisher, log)
	feedbackHandler := mqhandler.NewFeedbackRecordedHandler(feedbackService, emailRepo, deduper, log)

	// (1) Consumer for scoring
	log.Info("Initializing score consumer", zap.String("queue", mqcontracts.QueueEmailReceivedScore))
	scoreConsumer, err := mq.NewConsumer(cfg.MQ.URL, mqcontracts.QueueEmailReceivedScore, mqcontracts.RoutingEmailReceived, log)
	if err != nil {
		log.Fatal("Failed to init score consumer", zap.Error(err))
	}
	scoreConsumer.SetHandler(scoreHandler.Handle)
	go func() {
		log.Info("Starting score consumer")
		if err := scoreConsumer.StartConsuming(); err != nil {
			log.Fatal("Score consumer failed", zap.Error(err))
		}
	}()
	defer scoreConsumer.Close()

	// (2) Consumer for feedback
	log.Info("Initializing feedback consumer", zap.String("queue", mqcontracts.QueueFeedbackRecorded))
	feedbackConsumer, err := mq.NewConsumer(cfg.MQ.URL, mqcontracts.QueueFeedbackRecorded, mqcontracts.RoutingFeedbackRecorded, log)
	if err != nil {
		log.Fatal("Failed to init feedback consumer", zap.Error(err))
	}
	feedbackConsumer.SetHandler(feedbackHandler.Handle)
	go func() {
		log.Info("Starting feedback consumer")
		if err := feedbackConsumer.StartConsuming(); err != nil {
			log.Fatal("Feedback consumer failed", zap.Error(err))
		}
	}()
	defer feedbackConsumer.Close()

	// Scheduled jobs: weekly digest sweep, daily and monthly budget resets.
	// All cron times are UTC.
	scheduler := cron.New(cron.WithLocation(time.UTC))

	if _, err := scheduler.AddFunc("0 6 * * 1", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if err := digestService.GenerateAll(ctx, time.Now().UTC()); err != nil {
			log.Error("Weekly digest sweep failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("Failed to schedule digest sweep", zap.Error(err))
	}

	if _, err := scheduler.AddFunc("5 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := ledger.ResetDaily(ctx, time.Now().UTC()); err != nil {
			log.Error("Daily budget reset failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("Failed to schedule daily reset", zap.Error(err))
	}

	if _, err := scheduler.AddFunc("10 0 1 * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := ledger.ResetMonthly(ctx, time.Now().UTC()); err != nil {
			log.Error("Monthly budget reset failed", zap.Error(err))
		}
	}); err != nil {
		log.Fatal("Failed to schedule monthly reset", zap.Error(err))
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Info("All consumers started, worker is ready to process messages")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker")
}
