package server

import (
	"net/http"

	"pos/internal/config"
	"pos/internal/handler"
	"pos/internal/metrics"
	"pos/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	User         *handler.UserHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	Transaction  *handler.TransactionHandler
	Refund       *handler.RefundHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, m *metrics.ServerMetrics, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}

	// 商品画像
	e.Static("/images", cfg.ImageDir)

	h.User.RegisterRoutes(e)
	h.Product.RegisterRoutes(e, cfg, userRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.Transaction.RegisterRoutes(e, cfg, userRepo)
	h.Refund.RegisterRoutes(e, cfg, userRepo)
}
