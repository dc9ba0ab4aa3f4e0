package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/restausimplon/api/internal/config"
	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/handlers"
	"github.com/restausimplon/api/internal/logging"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	logmw "github.com/restausimplon/api/internal/middleware/logging"
	"github.com/restausimplon/api/internal/service/order"
	"github.com/restausimplon/api/internal/service/search"
	httpserver "github.com/restausimplon/api/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init: %v", err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	jwtSecret := []byte(configuration.JWT_SECRET)

	var prod *events.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod = events.NewProducer([]string{configuration.KAFKA_ADDRESS})
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = search.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID(), logmw.RequestLogger(logger))

	deps := httpserver.Deps{
		Auth: &authmw.Authenticator{DB: db, JWTSecret: jwtSecret},
		AuthHandler: &handlers.AuthHandler{
			DB:         db,
			JWTSecret:  jwtSecret,
			AccessTTL:  configuration.AccessTokenTTL,
			RefreshTTL: configuration.RefreshTokenTTL,
			Producer:   prod,
		},
		UserHandler:      &handlers.UserHandler{DB: db, Producer: prod},
		ProductHandler:   &handlers.ProductHandler{DB: db, ES: esClient, Producer: prod},
		OrderHandler:     &handlers.OrderHandler{Svc: &order.Service{DB: db}, Producer: prod},
		OrderItemHandler: &handlers.OrderItemHandler{DB: db},
		DeliveryHandler:  &handlers.DeliveryHandler{DB: db},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
