package handler

import (
	"net/http"

	"pos/internal/config"
	"pos/internal/middleware"
	"pos/internal/repository"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
)

type RefundHandler struct {
	uc  *usecase.RefundUsecase
	rec Recorder
}

func NewRefundHandler(uc *usecase.RefundUsecase, rec Recorder) *RefundHandler {
	return &RefundHandler{uc: uc, rec: rec}
}

func (h *RefundHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	e.POST("/refund", h.apply,
		middleware.AuthJWT(cfg),
		middleware.TokenVersionGuard(userRepo),
		middleware.RoleGuard("cashier", "admin"),
	)
}

// POST /refund
func (h *RefundHandler) apply(c echo.Context) error {
	var req usecase.RefundInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	cashier, err := cashierFromContext(c, req.Cashier)
	if err != nil {
		return writeError(c, err)
	}
	req.Cashier = cashier

	out, err := h.uc.Apply(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	h.rec.RefundApplied(out.Amount)
	return c.JSON(http.StatusOK, out)
}
