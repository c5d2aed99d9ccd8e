package cloudprovider_test

import (
	"errors"
	"net"
	"testing"

	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider"
	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider/cloudflare"
	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider/route53"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestProvider_ImplementedByAllBackends(t *testing.T) {
	var _ cloudprovider.Provider = &cloudflare.CloudflareProvider{}
	var _ cloudprovider.Provider = &route53.Route53Provider{}
}

func TestFindZoneID_ExactMatchOnly(t *testing.T) {
	zones := []cloudprovider.Zone{
		{ID: "z1", Name: "example.com"},
		{ID: "z2", Name: "home.example.com"},
		{ID: "z3", Name: "example.com"},
	}

	tests := []struct {
		name   string
		wantID string
		wantOK bool
	}{
		{"example.com", "z1", true},
		{"home.example.com", "z2", true},
		{"Example.com", "", false},
		{"www.example.com", "", false},
		{"example", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := cloudprovider.FindZoneID(zones, tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestFilterA_KeepsOrder(t *testing.T) {
	records := []cloudprovider.Record{
		{ID: "1", Type: "A", Content: "1.1.1.1"},
		{ID: "2", Type: "CNAME", Content: "example.com"},
		{ID: "3", Type: "TXT", Content: "v=spf1"},
		{ID: "4", Type: "A", Content: "2.2.2.2"},
		{ID: "5", Type: "AAAA", Content: "::1"},
	}

	got := cloudprovider.FilterA(records)
	assert.Assert(t, is.Len(got, 2))
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}

func TestProviderError_Message(t *testing.T) {
	err := &cloudprovider.ProviderError{Provider: "cloudflare", Op: "list zones", StatusCode: 500, Body: `{"success":false}`}
	assert.Error(t, err, `cloudflare: list zones returned status 500: {"success":false}`)
}

func TestNetworkError_Unwraps(t *testing.T) {
	inner := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	err := &cloudprovider.NetworkError{Op: "GET zones", Err: inner}

	var opErr *net.OpError
	assert.Assert(t, errors.As(err, &opErr))
	assert.ErrorContains(t, err, "connection refused")
}
