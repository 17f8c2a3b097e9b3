package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"github.com/ngenest/SecretSanta/config"
	"github.com/ngenest/SecretSanta/internal/assign"
	"github.com/ngenest/SecretSanta/internal/handlers"
	"github.com/ngenest/SecretSanta/internal/models"
	"github.com/ngenest/SecretSanta/internal/notify"
	"github.com/ngenest/SecretSanta/internal/payment"
	"github.com/ngenest/SecretSanta/internal/services"
	"github.com/ngenest/SecretSanta/internal/store"
	"github.com/ngenest/SecretSanta/internal/token"
)

var configPath = flag.String("config", "config/config.yaml", "path to the config file")

func main() {
	flag.Parse()

	defer logger.Init("secretsanta", true, false, io.Discard).Close()

	// 1. Load configuration.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Token codec (key derived once from the configured secret).
	codec, err := token.NewCodec(cfg.Token.Secret)
	if err != nil {
		log.Fatalf("Failed to initialize token codec: %v", err)
	}

	// 3. External collaborators: payment gateway and message senders.
	gateway := payment.NewStripeGateway(cfg.Stripe.APIKey)

	var smsSender notify.Sender
	if cfg.Twilio.AccountSID != "" {
		smsSender = notify.NewSMSSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
	}
	emailSender := notify.NewEmailSender(
		cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From,
	)
	dispatcher := notify.NewDispatcher(emailSender, smsSender)

	// 4. Core services over process-owned in-memory stores.
	ackService := services.NewAckService(
		codec,
		store.New[models.AcknowledgmentRecord](),
		dispatcher,
		cfg.Dispatch.Timeout,
	)
	batchService := services.NewBatchService(
		store.New[models.NotificationBatch](),
		gateway,
		gateway,
		dispatcher,
		services.Fee{Amount: cfg.Fee.Amount, Currency: cfg.Fee.Currency},
		cfg.Dispatch.Timeout,
	)
	exchangeService := services.NewExchangeService(
		assign.NewEngine(), codec, ackService, batchService, cfg.Server.AckBaseURL,
	)

	// 5. Set up the Gin router.
	r := gin.Default()
	httpHandler := handlers.NewHTTPHandler(exchangeService, batchService, ackService)
	httpHandler.RegisterRoutes(r)

	// 6. Start the background janitor to reclaim abandoned batches.
	go func() {
		for {
			time.Sleep(cfg.Dispatch.SweepInterval)
			if removed := batchService.SweepAbandoned(cfg.Dispatch.BatchTTL); removed > 0 {
				log.Printf("Reclaimed %d abandoned batches.", removed)
			}
		}
	}()

	// 7. Run the server.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server starting on http://localhost%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
