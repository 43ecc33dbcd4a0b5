package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"pos/internal/config"
	"pos/internal/middleware"
	"pos/internal/repository"
	"pos/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// 取引・返金の件数を数える先（metrics.ServerMetrics）
type Recorder interface {
	TransactionCreated()
	RefundApplied(amount decimal.Decimal)
}

type TransactionHandler struct {
	uc  *usecase.TransactionUsecase
	rec Recorder
}

func NewTransactionHandler(uc *usecase.TransactionUsecase, rec Recorder) *TransactionHandler {
	return &TransactionHandler{uc: uc, rec: rec}
}

func (h *TransactionHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/transaction")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.create, middleware.RoleGuard("cashier", "admin"))
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

func (h *TransactionHandler) create(c echo.Context) error {
	var req usecase.CreateTransactionInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	cashier, err := cashierFromContext(c, req.Cashier)
	if err != nil {
		return writeError(c, err)
	}
	req.Cashier = cashier

	//二重送信防止キーはヘッダーから受け取る（bodyには入れない）
	req.IdempotencyKey = c.Request().Header.Get("Idempotency-Key")

	out, err := h.uc.Create(c.Request().Context(), req)
	if err != nil {
		return writeError(c, err)
	}

	if !out.Replayed {
		h.rec.TransactionCreated()
		return c.JSON(http.StatusCreated, out)
	}
	return c.JSON(http.StatusOK, out)
}

// レジ担当はトークンのユーザーで決める。
// body の cashier は省略可だが、書かれていれば一致しないと 403。
func cashierFromContext(c echo.Context, claimed string) (string, error) {
	username, ok := c.Get(middleware.CtxUsernameKey).(string)
	if !ok || username == "" {
		return "", usecase.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if claimed = strings.TrimSpace(claimed); claimed != "" && claimed != username {
		return "", usecase.NewHTTPError(http.StatusForbidden, "cashier mismatch")
	}
	return username, nil
}

func (h *TransactionHandler) list(c echo.Context) error {
	in := usecase.ListTransactionsInput{
		Page:    1,
		Limit:   50,
		Status:  c.QueryParam("status"),
		Cashier: c.QueryParam("cashier"),
	}

	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		in.Page = p
	}
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		in.Limit = l
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		in.From = &t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		in.To = &t
	}

	out, err := h.uc.List(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *TransactionHandler) detail(c echo.Context) error {
	out, err := h.uc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
