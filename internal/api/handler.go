package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/apiclient"
	"storefront/internal/app"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler serves the storefront views as JSON. It holds no state of its
// own; every intent goes through app.App.
type Handler struct {
	app            *app.App
	allowedOrigins []string
	logger         *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(a *app.App, allowedOrigins []string) *Handler {
	return &Handler{
		app:            a,
		allowedOrigins: allowedOrigins,
		logger:         util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	if len(h.allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     h.allowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/state", h.getState)
		v1.PUT("/view", h.navigate)
		v1.DELETE("/banner", h.dismissBanner)

		v1.GET("/catalog", h.getCatalog)
		v1.POST("/catalog/refresh", h.refreshCatalog)

		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PUT("/cart/items/:id", h.updateCartItem)
		v1.DELETE("/cart/items/:id", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.PUT("/checkout/delivery", h.setDelivery)
		v1.POST("/checkout", h.checkout)

		v1.POST("/auth/login", h.login)
		v1.POST("/auth/register", h.register)
		v1.POST("/auth/logout", h.logout)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)

		v1.GET("/admin/reports/:kind", h.getReport)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready together with the catalog mode
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ready",
		"catalog_mode": h.app.Catalog().Mode(),
		"time":         time.Now().Unix(),
	})
}

func (h *Handler) getState(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.State())
}

type navigateRequest struct {
	View string `json:"view" binding:"required"`
}

func (h *Handler) navigate(c *gin.Context) {
	var req navigateRequest
	if !bind(c, &req) {
		return
	}

	v, err := app.ParseView(req.View)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid view",
			"details": err.Error(),
		})
		return
	}
	if err := h.app.Navigate(v); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.app.State())
}

func (h *Handler) dismissBanner(c *gin.Context) {
	h.app.DismissBanner()
	c.Status(http.StatusNoContent)
}

func (h *Handler) getCatalog(c *gin.Context) {
	var f catalog.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid filter",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, h.app.Catalog().Search(c.Request.Context(), f))
}

func (h *Handler) refreshCatalog(c *gin.Context) {
	if err := h.app.Catalog().Refresh(c.Request.Context()); err != nil {
		h.logger.Warn("Catalog refresh failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, h.app.Catalog().View(catalog.Filter{}))
}

func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.Cart().Snapshot())
}

type addItemRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addItemRequest
	if !bind(c, &req) {
		return
	}

	snap, err := h.app.AddToCart(c.Request.Context(), req.ProductID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func (h *Handler) updateCartItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if !bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, h.app.UpdateQuantity(c.Request.Context(), id, *req.Quantity))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.app.RemoveFromCart(c.Request.Context(), id))
}

func (h *Handler) clearCart(c *gin.Context) {
	c.JSON(http.StatusOK, h.app.ClearCart(c.Request.Context()))
}

func (h *Handler) setDelivery(c *gin.Context) {
	var req models.DeliveryInfo
	if !bind(c, &req) {
		return
	}
	h.app.SetDelivery(req)
	c.JSON(http.StatusOK, h.app.Delivery())
}

func (h *Handler) checkout(c *gin.Context) {
	receipt, err := h.app.Checkout(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) login(c *gin.Context) {
	var req models.Credentials
	if !bind(c, &req) {
		return
	}

	sess, err := h.app.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) register(c *gin.Context) {
	var req models.RegisterRequest
	if !bind(c, &req) {
		return
	}

	sess, err := h.app.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) logout(c *gin.Context) {
	h.app.Logout(c.Request.Context())
	c.JSON(http.StatusOK, h.app.State())
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.app.Orders(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	order, err := h.app.Order(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getReport(c *gin.Context) {
	kind := c.Param("kind")
	if kind != app.ReportItems && kind != app.ReportStats {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown report"})
		return
	}

	report, err := h.app.Report(c.Request.Context(), kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", report)
}

func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return false
	}
	return true
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid ID",
		})
		return 0, false
	}
	return id, true
}

// respondError maps domain errors to HTTP statuses
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		cartErr *cart.ValidationError
		sessErr *session.ValidationError
		failed  *cart.CheckoutFailedError
		apiErr  *apiclient.APIError
	)

	switch {
	case errors.As(err, &cartErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": cartErr.Reason})
	case errors.As(err, &sessErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": sessErr.Reason, "details": err.Error()})
	case errors.Is(err, apiclient.ErrAuthExpired), errors.Is(err, session.ErrNoSession):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	case errors.Is(err, app.ErrStale):
		c.JSON(http.StatusConflict, gin.H{"error": "View changed while loading", "details": err.Error()})
	case errors.Is(err, cart.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress"})
	case errors.As(err, &failed):
		c.JSON(http.StatusBadGateway, gin.H{"error": failed.Message, "details": err.Error()})
	case errors.Is(err, catalog.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			status = apiErr.StatusCode
		}
		c.JSON(status, gin.H{
			"error":   apiclient.DetailOr(err, "Backend request failed"),
			"details": err.Error(),
		})
	default:
		h.logger.Error("Unhandled view API error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
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
