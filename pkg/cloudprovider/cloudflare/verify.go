package cloudflare

import (
	"context"
	"fmt"

	cfgo "github.com/cloudflare/cloudflare-go"
)

const activeTokenStatus = "active"

// VerifyToken checks that the configured api token is known to cloudflare and active.
func (c *CloudflareProvider) VerifyToken(ctx context.Context) error {
	api, err := cfgo.NewWithAPIToken(c.config.Token,
		cfgo.BaseURL(c.config.BaseURL),
		cfgo.HTTPClient(c.client),
	)
	if err != nil {
		return fmt.Errorf("cloudflare: creating api client: %w", err)
	}

	res, err := api.VerifyAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("cloudflare: verify token: %w", err)
	}
	if res.Status != activeTokenStatus {
		return fmt.Errorf("cloudflare: token %s is %q, want %q", res.ID, res.Status, activeTokenStatus)
	}

	c.log.Info("api token verified", "token", res.ID)
	return nil
}
