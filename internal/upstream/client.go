package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"storebridge/internal/config"
	"storebridge/internal/models"

	"golang.org/x/time/rate"
)

// Client fetches customer pages from the commerce platform's admin API.
// One page per call; pagination state lives entirely in the cursor the
// caller passes back in.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// pageResponse is the upstream wire shape for one customer page.
type pageResponse struct {
	Customers   []models.CustomerRecord `json:"customers"`
	HasNextPage bool                    `json:"has_next_page"`
	NextCursor  string                  `json:"next_cursor"`
}

func NewClient(cfg config.UpstreamConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: timeout},
		limiter:     limiter,
	}
}

// NextPage returns one page of customers and the cursor for the
// subsequent call. A nil cursor means "from the start". The method
// never retries; transport and decode failures surface to the caller.
func (c *Client) NextPage(ctx context.Context, cursor *models.PageCursor, pageSize int) ([]models.CustomerRecord, models.PageCursor, error) {
	if pageSize <= 0 {
		return nil, models.PageCursor{}, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, models.PageCursor{}, err
		}
	}

	endpoint := fmt.Sprintf("%s/customers?page_size=%d", c.baseURL, pageSize)
	if cursor != nil && cursor.Value != "" {
		endpoint += "&cursor=" + url.QueryEscape(cursor.Value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, models.PageCursor{}, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("X-Access-Token", c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.PageCursor{}, fmt.Errorf("fetch customer page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, models.PageCursor{}, fmt.Errorf("fetch customer page: unexpected status %d", resp.StatusCode)
	}

	var page pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, models.PageCursor{}, fmt.Errorf("decode customer page: %w", err)
	}

	// has_next_page is the only continuation signal; next_cursor alone
	// must not keep the loop alive.
	next := models.PageCursor{
		Value:   page.NextCursor,
		HasMore: page.HasNextPage,
	}
	return page.Customers, next, nil
}
