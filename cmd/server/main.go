package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtriage/config"
	"mailtriage/internal/ai"
	"mailtriage/internal/api"
	"mailtriage/internal/budget"
	"mailtriage/internal/digest"
	"mailtriage/internal/learning"
	"mailtriage/internal/mq"
	"mailtriage/internal/repository"
	"mailtriage/internal/router"
	"mailtriage/internal/scoring"
	"mailtriage/internal/service"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/db"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/outbox"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	log := logger.NewLogger()
	defer log.Sync()

	// 2. Init DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// 3. Init RabbitMQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init publisher", zap.Error(err))
	}
	defer publisher.Close()

	// 4. Outbox dispatcher drains tx-committed events to the broker
	outboxRepo := outbox.NewRepository(dbConn)
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	defer cancelDispatch()
	go dispatcher.Start(dispatchCtx)

	// 5. Init repositories
	userRepo := repository.NewUserRepository(dbConn, log)
	emailRepo := repository.NewEmailRepository(dbConn, log)
	scoreRepo := repository.NewScoreRepository(dbConn, log)
	vipRepo := repository.NewVIPRepository(dbConn, log)
	patternRepo := repository.NewPatternRepository(dbConn, log)
	prefsRepo := repository.NewPrefsRepository(dbConn, log)
	statsRepo := repository.NewSenderStatsRepository(dbConn, log)
	usageRepo := repository.NewUsageRepository(dbConn, log)
	digestRepo := repository.NewDigestRepository(dbConn, log)

	// 6. Budget ledger and AI invoker behind the circuit breaker
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

	// 7. Scoring engine and tier router
	engine := scoring.NewEngine(scoring.DefaultConfig())
	alerter := service.NewBudgetAlerter(publisher, log)
	tierRouter := router.New(ledger, invoker, alerter, log)

	// 8. Learning loop and digest aggregator
	loop := learning.NewLoop(patternRepo, vipRepo, statsRepo, learning.DefaultLoopConfig(), log)
	classifier := digest.NewKeywordClassifier()
	aggregator := digest.NewAggregator(emailRepo, digestRepo, classifier, log)

	// 9. Init services
	authService := service.NewAuthService(userRepo, prefsRepo, ledger, cfg.JWT.Secret, log)
	mailService := service.NewMailService(dbConn, outboxRepo, log)
	scoreService := service.NewScoreService(engine, tierRouter,
		emailRepo, scoreRepo, vipRepo, patternRepo, prefsRepo, statsRepo,
		cfg.Worker.ScoreWorkers, log)
	feedbackService := service.NewFeedbackService(loop, emailRepo, prefsRepo, publisher, log)
	digestService := service.NewDigestService(aggregator, digestRepo, prefsRepo, userRepo,
		feedbackService, publisher, log)

	// 10. Init handlers and router
	authHandler := api.NewAuthHandler(authService)
	mailHandler := api.NewMailHandler(mailService, scoreService)
	feedbackHandler := api.NewFeedbackHandler(feedbackService)
	vipHandler := api.NewVIPHandler(vipRepo)
	digestHandler := api.NewDigestHandler(digestService)
	budgetHandler := api.NewBudgetHandler(ledger)
	prefsHandler := api.NewPrefsHandler(prefsRepo, ledger)

	httpRouter := api.NewRouter(authHandler, mailHandler, feedbackHandler,
		vipHandler, digestHandler, budgetHandler, prefsHandler, cfg.JWT.Secret)

	// 11. Run server
	if err := httpRouter.Run(cfg.Server.Port); err != nil {
		log.Fatal("Server start failed", zap.Error(err))
	}
}
