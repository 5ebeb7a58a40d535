package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-orderflow/internal/dispatch"
	"github.com/imrishuroy/go-storefront-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-storefront-orderflow/internal/logger"
	"github.com/imrishuroy/go-storefront-orderflow/internal/orders"
	"github.com/imrishuroy/go-storefront-orderflow/internal/validation"
)

const idempotencyKeyHeader = "Idempotency-Key"

type notified struct {
	Email    bool `json:"email"`
	WhatsApp bool `json:"whatsapp"`
}

// orderAck is the acceptance response. The notified flags report which
// channels were scheduled, not whether delivery succeeded.
type orderAck struct {
	Status   string   `json:"status"`
	Message  string   `json:"message"`
	OrderID  string   `json:"order_id"`
	Notified notified `json:"notified"`
}

// orderID derives a stable id from an idempotency key, or a random one.
func orderID(key string) string {
	if key == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("storefront:order:"+key)).String()
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.NewValidator(cfg.Catalog)

	createOrder := func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromGin(c, cfg.Logger)

		var req validation.CreateOrderRequest
		if err := validation.Bind(c, &req); err != nil {
			writeOrderError(c, err)
			return
		}
		order, consultant, err := v.Validate(req)
		if err != nil {
			writeOrderError(c, err)
			return
		}

		key := c.GetHeader(idempotencyKeyHeader)
		id := orderID(key)
		ack := orderAck{
			Status:  "ok",
			Message: "Pedido recibido",
			OrderID: id,
			Notified: notified{
				Email:    cfg.EmailEnabled,
				WhatsApp: cfg.WhatsAppEnabled && dispatch.ChatID(consultant.Phone, cfg.ChatSuffix) != "",
			},
		}
		ackBody, _ := json.Marshal(ack)

		created, err := cfg.Ledger.CreateIfNotExists(ctx, idempotency.Record{
			OrderID:        id,
			IdempotencyKey: key,
			ConsultantID:   consultant.ID,
		})
		if err != nil {
			log.Error("ledger create failed", zap.String("order_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger_unavailable", "detail": err.Error()})
			return
		}
		if !created {
			replay(c, cfg, id)
			return
		}

		job := dispatch.Job{
			OrderID:    id,
			Order:      order,
			Consultant: consultant,
			ReceivedAt: time.Now().UTC(),
			RequestID:  logger.RequestID(c),
		}
		if err := cfg.Scheduler.Enqueue(ctx, job); err != nil {
			// mark the record failed so the client can retry with the same key
			if mErr := cfg.Ledger.MarkFailed(ctx, id, err.Error()); mErr != nil {
				log.Error("ledger mark failed", zap.String("order_id", id), zap.Error(mErr))
			}
			log.Warn("order not scheduled", zap.String("order_id", id), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dispatch_unavailable", "detail": err.Error()})
			return
		}

		// the ack is replayable only once the order is scheduled
		if err := cfg.Ledger.Accept(ctx, id, string(ackBody)); err != nil {
			log.Warn("ledger accept failed", zap.String("order_id", id), zap.Error(err))
		}

		log.Info("order accepted",
			zap.String("order_id", id),
			zap.String("consultant_id", consultant.ID),
			zap.Int("items", len(order.Items)),
		)
		c.Data(http.StatusOK, "application/json; charset=utf-8", ackBody)
	}

	r.POST("/orders", createOrder)
	r.POST("/api/orders", createOrder)

	r.GET("/orders/:id/notifications", func(c *gin.Context) {
		rec, err := cfg.Ledger.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger_unavailable", "detail": err.Error()})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
			return
		}
		c.JSON(http.StatusOK, rec)
	})
}

// replay answers a repeated Idempotency-Key with the original acknowledgement.
// A record without one was never confirmed as scheduled: the first request is
// still in flight, or scheduling failed and could not be recorded.
func replay(c *gin.Context, cfg HandlerConfig, id string) {
	rec, err := cfg.Ledger.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return
	}
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_order", "order_id": id})
		return
	}
	if rec.Ack == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_confirmed", "order_id": id, "status": rec.Status})
		return
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(rec.Ack))
}

func writeOrderError(c *gin.Context, err error) {
	var verr *validation.Error
	fields := map[string]string(nil)
	if errors.As(err, &verr) {
		fields = verr.Fields
	}

	switch {
	case errors.Is(err, orders.ErrMalformedInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed_input", "fields": fields})
	case errors.Is(err, orders.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty_cart", "detail": "El carrito está vacío"})
	case errors.Is(err, orders.ErrUnknownConsultant):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown_consultant", "detail": consultantNotFound})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
