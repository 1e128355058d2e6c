package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"storebridge/internal/config"
	"storebridge/internal/models"

	"github.com/rs/zerolog"
)

// Client posts JSON payloads to the external backend with bearer
// authentication. It classifies every call into ok / rejected /
// network_error and never retries; retry policy belongs to callers.
type Client struct {
	customersURL    string
	abandonmentsURL string
	httpClient      *http.Client
	logger          *zerolog.Logger
}

func NewClient(cfg config.SinkConfig, logger *zerolog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		customersURL:    cfg.CustomersURL,
		abandonmentsURL: cfg.AbandonmentsURL,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// SendCustomerBatch forwards one batch of customer records.
func (c *Client) SendCustomerBatch(ctx context.Context, credential string, payload models.CustomerBatchPayload) models.BatchOutcome {
	return c.post(ctx, c.customersURL, credential, payload)
}

// SendAbandonment delivers one abandonment notification.
func (c *Client) SendAbandonment(ctx context.Context, credential string, payload models.AbandonmentNotification) models.BatchOutcome {
	return c.post(ctx, c.abandonmentsURL, credential, payload)
}

func (c *Client) post(ctx context.Context, url, credential string, payload interface{}) models.BatchOutcome {
	body, err := json.Marshal(payload)
	if err != nil {
		// Payloads are plain structs; marshal failure means a programming error.
		c.logger.Error().Err(err).Msg("sink payload marshal failed")
		return models.BatchOutcome{Status: models.OutcomeNetworkError}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.BatchOutcome{Status: models.OutcomeNetworkError}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("sink call failed")
		return models.BatchOutcome{Status: models.OutcomeNetworkError}
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.BatchOutcome{Status: models.OutcomeRejected, HTTPStatus: resp.StatusCode}
	}
	return models.BatchOutcome{Status: models.OutcomeOK, HTTPStatus: resp.StatusCode}
}
