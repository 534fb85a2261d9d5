package dto

import (
	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
)

// PreviewQuery holds the query of both preview endpoints.
// Date is a YYYYMM period key or a YYYY-MM-DD business date.
type PreviewQuery struct {
	Type    string `form:"type" binding:"required"`
	Date    string `form:"date" binding:"required"`
	Preview *bool  `form:"preview"`
}

// PeriodKey resolves Date to a period key.
func (q PreviewQuery) PeriodKey() (numerator.PeriodKey, error) {
	if p, err := numerator.ParsePeriodKey(q.Date); err == nil {
		return p, nil
	}
	if p, err := numerator.ParsePeriodDate(q.Date); err == nil {
		return p, nil
	}
	return "", apperror.NewFieldValidation(map[string]string{"date": "must be YYYYMM or YYYY-MM-DD"})
}

// PreviewResponse is the body of GET /transactions/next-number.
type PreviewResponse struct {
	Formatted string `json:"formatted"`
	Type      string `json:"type"`
	PeriodKey string `json:"period_key"`
	Preview   bool   `json:"preview"`
}

// LegacyPreview is the data of GET /sequence/preview.
type LegacyPreview struct {
	NextNumber string `json:"next_number"`
}
