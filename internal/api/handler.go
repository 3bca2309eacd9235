package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/service"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SignatureHeader carries the processor's webhook signature.
const SignatureHeader = "Payment-Signature"

// maxWebhookBody bounds how much of a delivery we are willing to read.
const maxWebhookBody = 1 << 20

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	cancel    *service.CancellationService
	reconcile *service.ReconcileService
	fallback  *service.FallbackService
	sweeper   *worker.Reconciler
	cache     *redisclient.Client
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	cancel *service.CancellationService,
	reconcile *service.ReconcileService,
	fallback *service.FallbackService,
	sweeper *worker.Reconciler,
	cache *redisclient.Client,
) *Handler {
	return &Handler{
		orders:    orders,
		cancel:    cancel,
		reconcile: reconcile,
		fallback:  fallback,
		sweeper:   sweeper,
		cache:     cache,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/payment", h.paymentWebhook)
	router.GET("/admin/reconciler", h.reconcilerStatus)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/orders", h.createOrder)
		v1.GET("/orders/:id", h.getOrder)
		v1.GET("/orders/:id/payment", h.getPaymentStatus)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/orders/:id/payment/sync", h.syncPaymentStatus)
		v1.GET("/users/:id/orders", h.getUserOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "items": items})
}

// getPaymentStatus serves the hot payment-status poll, cache first.
func (h *Handler) getPaymentStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	if h.cache != nil {
		if status, err := h.cache.GetPaymentStatus(c.Request.Context(), orderID); err == nil && status != "" {
			c.JSON(http.StatusOK, gin.H{"order_id": orderID, "payment_status": status})
			return
		}
	}

	order, _, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": orderID, "payment_status": order.PaymentStatus})
}

// getUserOrders lists a user's orders.
func (h *Handler) getUserOrders(c *gin.Context) {
	userID, ok := pathID(c)
	if !ok {
		return
	}

	orders, err := h.orders.GetUserOrders(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

type cancelOrderRequest struct {
	UserID     int64 `json:"user_id" binding:"required"`
	Privileged bool  `json:"privileged"`
}

// cancelOrder handles order cancellation. On an idempotent rejection the
// response still tells the caller the end state of the order.
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	order, err := h.cancel.CancelOrder(c.Request.Context(), orderID, req.UserID, req.Privileged)
	if err != nil {
		h.writeCancelError(c, orderID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// syncPaymentStatus handles the manual fallback reconciliation.
func (h *Handler) syncPaymentStatus(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, err := h.fallback.SyncPaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		var procErr *models.ExternalProcessorError
		if errors.As(err, &procErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "could not confirm payment status",
			})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// paymentWebhook receives processor notifications. Once the event is
// durably recorded the delivery is acknowledged, even if the transition
// failed; only signature rejection or a recording failure bounce the
// delivery back to the processor.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	err = h.reconcile.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		if errors.Is(err, models.ErrSignatureVerification) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event not recorded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// reconcilerStatus exposes the sweep's single-flight state.
func (h *Handler) reconcilerStatus(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	c.JSON(http.StatusOK, h.sweeper.Status())
}

// writeCancelError adds the order's current state to the idempotent
// rejections so the caller learns the end state either way.
func (h *Handler) writeCancelError(c *gin.Context, orderID int64, err error) {
	switch {
	case errors.Is(err, models.ErrAlreadyCancelled),
		errors.Is(err, models.ErrCancellationNotAllowed):
		order, _, getErr := h.orders.GetOrder(c.Request.Context(), orderID)
		body := gin.H{"error": err.Error()}
		if getErr == nil {
			body["order"] = order
		}
		c.JSON(http.StatusConflict, body)
	case errors.Is(err, models.ErrNotOrderOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.writeError(c, err)
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr  *models.ValidationError
		unavailableErr *models.ProductUnavailableError
		stockErr       *models.InsufficientStockError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unavailableErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"product_id": unavailableErr.ProductID,
		})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
	case errors.Is(err, models.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
