package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/verdantdigital/expressbuild/pkg/api/handlers"
)

// bodyLimit matches handlers.MaxWebhookBody so a full-size webhook still reaches the handler
const bodyLimit = "64K"

// routes holds what registerRoutes mounts
type routes struct {
	environment string

	payments *handlers.PaymentHandler
	webhook  *handlers.WebhookHandler
	health   *handlers.HealthHandler

	globalLimit  echo.MiddlewareFunc
	intentLimit  echo.MiddlewareFunc
	webhookLimit echo.MiddlewareFunc
}

func registerRoutes(e *echo.Echo, r routes) {
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "Verdant Digital Express Build API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": r.environment,
			"timestamp":   time.Now().Unix(),
		})
	})
	e.GET("/health", r.health.Health, r.globalLimit)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// Checkout
	for _, path := range []string{"/create-payment-intent", "/api/create-payment-intent"} {
		e.POST(path, r.payments.CreatePaymentIntent, r.globalLimit, r.intentLimit)
	}
	e.GET("/payment-status/:id", r.payments.GetPaymentStatus, r.globalLimit)

	// Stripe webhook with its own, higher limit
	for _, path := range []string{"/webhook", "/api/webhook"} {
		e.POST(path, r.webhook.HandleStripeWebhook, r.webhookLimit)
	}
}
