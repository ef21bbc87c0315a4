package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// defaultStripeURL is probed for reachability. Unauthenticated requests get
// a 401, which still proves the gateway is reachable.
const defaultStripeURL = "https://api.stripe.com/v1"

// StripeChecker implements health checking for the payment gateway by
// probing its API endpoint.
type StripeChecker struct {
	url    string
	client *http.Client
}

// NewStripeChecker creates a new payment gateway health checker. An empty
// url selects the public Stripe API endpoint.
func NewStripeChecker(url string) *StripeChecker {
	if url == "" {
		url = defaultStripeURL
	}
	return &StripeChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck reports whether the gateway endpoint is reachable. Any HTTP
// response counts as reachable; only transport failures and 5xx responses
// are errors.
func (s *StripeChecker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("payment gateway unhealthy: status code %d", resp.StatusCode)
	}
	return nil
}
