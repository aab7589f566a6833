package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"app/internal/config"
	"app/internal/handler"
	infraPay "app/internal/infra/payment"
	infraRepo "app/internal/infra/repository"
	"app/internal/infra/sanity"
	"app/internal/server"
	"app/internal/usecase"
)

func main() {
	//.envはローカル用（無くても良い）
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}

	//コンテンツストア
	store, err := sanity.NewClient(sanity.Config{
		ProjectID:  cfg.SanityProjectID,
		Dataset:    cfg.SanityDataset,
		Token:      cfg.SanityAPIToken,
		APIVersion: cfg.SanityAPIVersion,
		Timeout:    cfg.HTTPTimeout,
	}, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("content store client init failed")
	}

	//決済プロバイダ
	gateway, err := infraPay.NewStripeGateway(cfg.StripeSecretKey, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("stripe client init failed")
	}
	verifier := infraPay.NewStripeEventVerifier()

	//Repository生成
	orderRepo := infraRepo.NewOrderSanityRepository(store)

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(gateway, cfg.FrontendBaseURL(), &logger)
	webhookUC := usecase.NewWebhookUsecase(verifier, orderRepo, cfg.StripeWebhookSecret, &logger)
	orderUC := usecase.NewOrderUsecase(orderRepo)

	//Handler生成
	checkoutH := handler.NewCheckoutHandler(checkoutUC)
	webhookH := handler.NewWebhookHandler(webhookUC)
	orderH := handler.NewOrderHandler(orderUC)
	healthH := handler.NewHealthHandler(store)

	srv := server.New(&logger, checkoutH, webhookH, orderH, healthH)

	addr := ":" + cfg.Port

	go func() {
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := srv.Start(addr); err != nil {
			logger.Info().Err(err).Msg("server stopped")
		}
	}()

	//SIGINT/SIGTERMで整然と止める
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	logger.Info().Msg("server closed")
}
