// Package sequence fetches non-binding number previews from the allocation API.
package sequence

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ordernum/internal/core/apperror"
	"ordernum/internal/core/numerator"
	"ordernum/internal/domain/numbering"
	"ordernum/internal/infrastructure/client/rest"
	"ordernum/pkg/logger"
)

const (
	primaryPath = "/transactions/next-number"
	legacyPath  = "/sequence/preview"
)

// Client implements numbering.Previewer over HTTP.
type Client struct {
	rest *rest.Client
}

var _ numbering.Previewer = (*Client)(nil)

// New creates a preview client.
func New(rc *rest.Client) *Client {
	return &Client{rest: rc}
}

// GetPreview returns the next number the server would assign for the type and
// period. It tries the primary endpoint, then the legacy one, and never fails:
// when neither yields a value the preview is empty.
func (c *Client) GetPreview(ctx context.Context, docType numerator.DocumentType, periodKey numerator.PeriodKey) numbering.Preview {
	docType = numerator.NormalizeDocumentType(string(docType))

	primary := url.Values{
		"type":    {docType.WireName()},
		"preview": {"true"},
		"date":    {periodKey.String()},
	}
	formatted, err := c.fetch(ctx, primaryPath, primary)
	if err == nil {
		return numbering.Preview{Formatted: formatted}
	}
	logger.Debug(ctx, "primary preview failed, using legacy endpoint",
		"type", docType,
		"period_key", periodKey,
		"error", err)

	legacy := url.Values{
		"type": {docType.Prefix()},
		"date": {periodKey.String()},
	}
	formatted, err = c.fetch(ctx, legacyPath, legacy)
	if err == nil {
		return numbering.Preview{Formatted: formatted}
	}

	unavailable := apperror.NewPreviewUnavailable(string(docType), periodKey.String()).WithCause(err)
	logger.Warn(ctx, "number preview unavailable",
		"code", unavailable.Code,
		"type", docType,
		"period_key", periodKey,
		"error", err)

	return numbering.Preview{}
}

func (c *Client) fetch(ctx context.Context, path string, query url.Values) (string, error) {
	resp, err := c.rest.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", rest.ErrorFromResponse(resp)
	}
	formatted := ExtractFormatted(resp.Body)
	if formatted == "" {
		return "", fmt.Errorf("%s: no number in response", path)
	}
	return formatted, nil
}
