package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"ordernum/internal/core/id"
	"ordernum/internal/domain/orders"
	"ordernum/internal/infrastructure/http/v1/dto"
)

// OrderService is the part of orders.Service the handler uses.
type OrderService interface {
	Create(ctx context.Context, in orders.CreateInput) (*orders.Order, error)
	Update(ctx context.Context, orderID id.ID, in orders.UpdateInput) (*orders.Order, error)
	Process(ctx context.Context, orderID id.ID, action string) (*orders.Order, error)
	GetByID(ctx context.Context, orderID id.ID) (*orders.Order, error)
}

var _ OrderService = (*orders.Service)(nil)

// OrderHandler serves /transactions/transactions.
type OrderHandler struct {
	*BaseHandler
	service OrderService
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(base *BaseHandler, service OrderService) *OrderHandler {
	return &OrderHandler{BaseHandler: base, service: service}
}

// Create handles POST /transactions/transactions.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	o, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromOrder(o))
}

// Get handles GET /transactions/transactions/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}

	o, err := h.service.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.DataResponse{Data: dto.FromOrder(o)})
}

// Update handles PUT /transactions/transactions/:id.
func (h *OrderHandler) Update(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	o, err := h.service.Update(c.Request.Context(), orderID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}

// Process handles PATCH /transactions/transactions/:id/process.
func (h *OrderHandler) Process(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ProcessRequest
	if !h.BindJSON(c, &req) {
		return
	}

	o, err := h.service.Process(c.Request.Context(), orderID, req.Action)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromOrder(o))
}
