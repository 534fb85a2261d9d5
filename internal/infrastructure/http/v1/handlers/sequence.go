package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
	"ordernum/internal/infrastructure/http/v1/dto"
)

// PreviewService peeks at the next number of a type and period.
type PreviewService interface {
	Preview(ctx context.Context, rawType string, period numerator.PeriodKey) (string, error)
}

// SequenceHandler serves number previews.
type SequenceHandler struct {
	*BaseHandler
	service PreviewService
}

// NewSequenceHandler creates a sequence handler.
func NewSequenceHandler(base *BaseHandler, service PreviewService) *SequenceHandler {
	return &SequenceHandler{BaseHandler: base, service: service}
}

// NextNumber handles GET /transactions/next-number?type=sales_order&preview=true&date=YYYYMM.
func (h *SequenceHandler) NextNumber(c *gin.Context) {
	formatted, q, ok := h.preview(c)
	if !ok {
		return
	}
	period, _ := q.PeriodKey()
	h.OK(c, dto.PreviewResponse{
		Formatted: formatted,
		Type:      string(numerator.NormalizeDocumentType(q.Type)),
		PeriodKey: period.String(),
		Preview:   true,
	})
}

// LegacyPreview handles GET /sequence/preview?type=SO&date=YYYYMM.
func (h *SequenceHandler) LegacyPreview(c *gin.Context) {
	formatted, _, ok := h.preview(c)
	if !ok {
		return
	}
	h.OK(c, dto.DataResponse{Data: dto.LegacyPreview{NextNumber: formatted}})
}

func (h *SequenceHandler) preview(c *gin.Context) (string, dto.PreviewQuery, bool) {
	var q dto.PreviewQuery
	if !h.BindQuery(c, &q) {
		return "", q, false
	}
	if q.Preview != nil && !*q.Preview {
		h.Error(c, apperror.NewValidation("numbers are allocated on commit; only preview=true is served").
			WithDetail("field", "preview"))
		return "", q, false
	}
	period, err := q.PeriodKey()
	if err != nil {
		h.Error(c, err)
		return "", q, false
	}

	formatted, err := h.service.Preview(c.Request.Context(), q.Type, period)
	if err != nil {
		h.Error(c, err)
		return "", q, false
	}
	return formatted, q, true
}
