package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"pharmacy-stock-alerts/pkg/alerting"
	"pharmacy-stock-alerts/pkg/common"
	"pharmacy-stock-alerts/pkg/db"
	alertHttp "pharmacy-stock-alerts/pkg/http"
	"pharmacy-stock-alerts/pkg/models"
	"pharmacy-stock-alerts/pkg/notify"
)

func buildProviders() notify.Registry {
	registry := notify.Registry{}

	if hostPort := strings.TrimSpace(os.Getenv(common.EnvKeySMTPHostPort)); hostPort != "" {
		sender := os.Getenv(common.EnvKeySMTPSender)
		registry[models.ChannelEmail] = notify.NewEmailSender(hostPort, sender, nil)
	}

	if url := strings.TrimSpace(os.Getenv(common.EnvKeySMSGatewayURL)); url != "" {
		registry[models.ChannelSMS] = notify.NewSMSSender(url, os.Getenv(common.EnvKeySMSGatewayToken), "")
	}

	if url := strings.TrimSpace(os.Getenv(common.EnvKeyWhatsAppAPIURL)); url != "" {
		registry[models.ChannelWhatsApp] = notify.NewWhatsAppSender(url, os.Getenv(common.EnvKeyWhatsAppToken), "")
	}

	return registry
}

func main() {
	var err error

	err = godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
	}

	var dbInstance *db.DB
	dbType := os.Getenv(common.EnvKeyPharmaDBType)
	switch dbType {
	case "file":
		dbInstance = db.GetInstance(db.UseSqliteDialector())
	case "memory":
		dbInstance = db.GetInstance(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown PHARMA_DB_TYPE: " + dbType)
	}

	httpHostPort := strings.TrimSpace(os.Getenv(common.EnvKeyPharmaHttpHostPort))

	var defaultRate float64
	var defaultBurst int64

	if defaultRate, err = strconv.ParseFloat(os.Getenv(common.EnvKeyPharmaDefaultRate), 64); err != nil {
		log.Fatal("Invalid PHARMA_DEFAULT_RATE, or not set in .env, should be a float64 value")
	}

	if defaultBurst, err = strconv.ParseInt(os.Getenv(common.EnvKeyPharmaDefaultBurst), 10, 64); err != nil {
		log.Fatal("Invalid PHARMA_DEFAULT_BURST, or not set in .env, should be an int value")
	}

	logger := common.GetLogger()

	engine := alerting.NewEngine(*dbInstance, buildProviders()).WithDefaultServices()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := alerting.NewScheduler(engine)
	go scheduler.Start(ctx)

	if httpHostPort == "" {
		// fallback to default http port
		httpHostPort = ":1080"
	}

	logger.Info("Starting HTTP server on port " + httpHostPort)
	rs := &alertHttp.RestfulServer{
		Server:           gin.Default(),
		Engine:           engine,
		RateLimiterStore: alerting.NewRateLimiterStore(rate.Limit(defaultRate), int(defaultBurst)),
	}
	rs.Setup()

	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", defaultRate, defaultBurst)))

	logger.Info("Starting HTTP server on: " + httpHostPort)
	if err := rs.Server.Run(httpHostPort); err != nil {
		log.Fatalf("http server failed to serve: %v", err)
	}
}
