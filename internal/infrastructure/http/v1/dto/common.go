// Package dto holds the wire types of the allocation API.
package dto

import (
	"time"

	"ordernum/internal/core/apperror"
)

const dateLayout = "2006-01-02"

// DataResponse is the {"data": ...} envelope.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse mirrors what middleware.ErrorHandler renders.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func parseDate(field, raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperror.NewFieldValidation(map[string]string{field: "must be YYYY-MM-DD"})
	}
	return d, nil
}

func parseOptionalDate(field string, raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := parseDate(field, *raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func formatOptionalDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := d.Format(dateLayout)
	return &s
}
