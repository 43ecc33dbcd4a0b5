package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// ServerMetrics は API のリクエスト数・レイテンシと売上系のカウンタ。
// レジストリは自前で持つ（テストで何度作っても衝突しない）。
type ServerMetrics struct {
	registry     *prometheus.Registry
	Requests     *prometheus.CounterVec
	LatencyMS    *prometheus.HistogramVec
	Transactions prometheus.Counter
	Refunds      prometheus.Counter
	RefundAmount prometheus.Counter
}

func NewServerMetrics(service string) *ServerMetrics {
	reg := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"route", "method", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"route"})
	transactions := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "transactions_created_total",
		Help:      "Completed sales.",
	})
	refunds := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "refunds_total",
		Help:      "Applied refunds.",
	})
	refundAmount := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: service,
		Name:      "refund_amount_total",
		Help:      "Sum of refunded amounts.",
	})

	reg.MustRegister(requests, latency, transactions, refunds, refundAmount)
	return &ServerMetrics{
		registry:     reg,
		Requests:     requests,
		LatencyMS:    latency,
		Transactions: transactions,
		Refunds:      refunds,
		RefundAmount: refundAmount,
	}
}

// Middleware はルートのパターン単位で計測する（/transaction/:id など）。
func (m *ServerMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.Requests.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

func (m *ServerMetrics) TransactionCreated() {
	m.Transactions.Inc()
}

func (m *ServerMetrics) RefundApplied(amount decimal.Decimal) {
	m.Refunds.Inc()
	m.RefundAmount.Add(amount.InexactFloat64())
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
