package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider"
	"github.com/larivierec/ddns-reconciler/pkg/metrics"
)

const (
	DefaultBaseURL = "https://api.cloudflare.com/client/v4"
	DefaultTimeout = 30 * time.Second

	providerName = "cloudflare"

	zonesPerPage   = 50
	recordsPerPage = 100

	// ttl 1 means "automatic" to cloudflare.
	automaticTTL = 1
)

type Configuration struct {
	Token      string
	BaseURL    string
	HTTPClient *http.Client
}

type CloudflareProvider struct {
	config Configuration
	client *http.Client
	log    logr.Logger
}

type zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type dnsRecord struct {
	ID      string `json:"id"`
	ZoneID  string `json:"zone_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type resultInfo struct {
	Page       int `json:"page"`
	TotalPages int `json:"total_pages"`
}

type listResponse[T any] struct {
	Success    bool        `json:"success"`
	Result     []T         `json:"result"`
	ResultInfo *resultInfo `json:"result_info"`
}

// updateRequest is the full record body sent on PUT; cloudflare replaces every field.
type updateRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	TTL     int    `json:"ttl"`
	Content string `json:"content"`
}

func NewCloudflareProvider(log logr.Logger, config Configuration) (*CloudflareProvider, error) {
	if config.Token == "" {
		return nil, errors.New("cloudflare: api token must not be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	return &CloudflareProvider{
		config: config,
		client: client,
		log:    log.WithValues("provider", providerName),
	}, nil
}

func (c *CloudflareProvider) Name() string {
	return providerName
}

func (c *CloudflareProvider) ListZones(ctx context.Context) ([]cloudprovider.Zone, error) {
	zones, err := listAll[zone](ctx, c, "list zones", "zones", zonesPerPage)
	if err != nil {
		return nil, err
	}

	out := make([]cloudprovider.Zone, 0, len(zones))
	for _, z := range zones {
		out = append(out, cloudprovider.Zone{ID: z.ID, Name: z.Name})
	}
	c.log.V(1).Info("listed zones", "count", len(out))
	return out, nil
}

func (c *CloudflareProvider) FindZoneIDByName(ctx context.Context, name string) (string, bool, error) {
	zones, err := c.ListZones(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := cloudprovider.FindZoneID(zones, name)
	return id, ok, nil
}

func (c *CloudflareProvider) ListDNSRecords(ctx context.Context, zoneID string) ([]cloudprovider.Record, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("cloudflare: list dns records: %w", cloudprovider.ErrEmptyZoneID)
	}

	records, err := listAll[dnsRecord](ctx, c, "list dns records", "zones/"+url.PathEscape(zoneID)+"/dns_records", recordsPerPage)
	if err != nil {
		return nil, err
	}

	out := make([]cloudprovider.Record, 0, len(records))
	for _, r := range records {
		zid := r.ZoneID
		if zid == "" {
			zid = zoneID
		}
		out = append(out, cloudprovider.Record{
			ID:      r.ID,
			ZoneID:  zid,
			Name:    r.Name,
			Type:    r.Type,
			Content: r.Content,
			TTL:     r.TTL,
			Proxied: r.Proxied,
		})
	}
	c.log.V(1).Info("listed dns records", "zone", zoneID, "count", len(out))
	return out, nil
}

func (c *CloudflareProvider) UpdateRecordContent(ctx context.Context, zoneID, recordID, recordName, content string) error {
	if zoneID == "" {
		return fmt.Errorf("cloudflare: update dns record: %w", cloudprovider.ErrEmptyZoneID)
	}

	path := "zones/" + url.PathEscape(zoneID) + "/dns_records/" + url.PathEscape(recordID)
	payload := updateRequest{
		Type:    cloudprovider.RecordTypeA,
		Name:    recordName,
		TTL:     automaticTTL,
		Content: content,
	}

	_, err := c.do(ctx, "update dns record", http.MethodPut, path, payload)
	if err != nil {
		var perr *cloudprovider.ProviderError
		if errors.As(err, &perr) {
			c.log.Error(err, "failed to change record", "status", perr.StatusCode, "record", recordName, "zone", zoneID)
		} else {
			c.log.Error(err, "failed to change record", "record", recordName, "zone", zoneID)
		}
		return err
	}

	c.log.Info("successfully changed record", "record", recordName, "zone", zoneID, "content", content)
	return nil
}

func listAll[T any](ctx context.Context, c *CloudflareProvider, op, path string, perPage int) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		body, err := c.do(ctx, op, http.MethodGet, fmt.Sprintf("%s?page=%d&per_page=%d", path, page, perPage), nil)
		if err != nil {
			return nil, err
		}

		var resp listResponse[T]
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("cloudflare: %s: decoding response: %w", op, err)
		}
		all = append(all, resp.Result...)

		if resp.ResultInfo == nil || len(resp.Result) == 0 || page >= resp.ResultInfo.TotalPages {
			return all, nil
		}
	}
}

func (c *CloudflareProvider) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("cloudflare: %s: marshal request body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+"/"+path, reader)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: %s: build request: %w", op, err)
	}
	c.setHeaders(req)

	c.log.V(1).Info("calling api", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveAPICall(providerName, op, 0)
		return nil, &cloudprovider.NetworkError{Op: "cloudflare: " + op, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveAPICall(providerName, op, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &cloudprovider.NetworkError{Op: "cloudflare: " + op + ": reading response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &cloudprovider.ProviderError{
			Provider:   providerName,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}
	return body, nil
}

func (c *CloudflareProvider) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")
}
