package ipprovider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/larivierec/ddns-reconciler/pkg/ipprovider"
	"gotest.tools/v3/assert"
)

func echoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIpify(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "203.0.113.7")

	var counted []string
	ip, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.Ipify{BaseUrl: srv.URL}, func(p string) {
		counted = append(counted, p)
	})
	assert.NilError(t, err)
	assert.Equal(t, "203.0.113.7", ip)
	assert.DeepEqual(t, []string{"ipify"}, counted)
}

func TestICanHaz_TrimsNewline(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "203.0.113.8\n")

	ip, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.ICanHazIp{BaseUrl: srv.URL}, nil)
	assert.NilError(t, err)
	assert.Equal(t, "203.0.113.8", ip)
}

func TestGetCurrentIP_NoFormatCheck(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "not-an-ip")

	ip, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.Ipify{BaseUrl: srv.URL}, nil)
	assert.NilError(t, err)
	assert.Equal(t, "not-an-ip", ip)
}

func TestGetCurrentIP_BadStatus(t *testing.T) {
	srv := echoServer(t, http.StatusServiceUnavailable, "down")

	_, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.Ipify{BaseUrl: srv.URL}, nil)

	var lerr *ipprovider.LookupError
	assert.Assert(t, errors.As(err, &lerr))
	assert.Equal(t, http.StatusServiceUnavailable, lerr.StatusCode)
}

func TestGetCurrentIP_EmptyBody(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "  \n")

	_, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.Ipify{BaseUrl: srv.URL}, nil)
	assert.Assert(t, errors.Is(err, ipprovider.ErrEmptyResponse))
}

func TestGetCurrentIP_Unreachable(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "203.0.113.7")
	srv.Close()

	_, err := ipprovider.GetCurrentIP(context.Background(), &ipprovider.Ipify{BaseUrl: srv.URL}, nil)

	var lerr *ipprovider.LookupError
	assert.Assert(t, errors.As(err, &lerr))
	assert.Equal(t, "ipify", lerr.Provider)
	assert.Equal(t, 0, lerr.StatusCode)
}

func TestRandom_UsesOneOfItsProviders(t *testing.T) {
	a := echoServer(t, http.StatusOK, "198.51.100.1")
	b := echoServer(t, http.StatusOK, "198.51.100.1")

	r := &ipprovider.Random{Providers: []ipprovider.Provider{
		&ipprovider.Ipify{BaseUrl: a.URL},
		&ipprovider.ICanHazIp{BaseUrl: b.URL},
	}}
	for i := 0; i < 5; i++ {
		ip, err := r.GetCurrentIP(context.Background())
		assert.NilError(t, err)
		assert.Equal(t, "198.51.100.1", ip)
	}
}

func TestRandom_Empty(t *testing.T) {
	_, err := (&ipprovider.Random{}).GetCurrentIP(context.Background())
	assert.ErrorContains(t, err, "no ip providers")
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
	}{
		{"", "ipify"},
		{"ipify", "ipify"},
		{"icanhazip", "icanhazip"},
		{"icanhaz", "icanhazip"},
		{"random", "random"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ipprovider.New(tt.name, "", nil)
			assert.NilError(t, err)
			assert.Equal(t, tt.wantName, ipprovider.GetProviderName(p))
		})
	}

	_, err := ipprovider.New("whatismyip", "", nil)
	assert.ErrorContains(t, err, `unknown ip provider "whatismyip"`)
}

func TestNew_URLOverride(t *testing.T) {
	srv := echoServer(t, http.StatusOK, "192.0.2.44\n")

	p, err := ipprovider.New("icanhazip", srv.URL, nil)
	assert.NilError(t, err)

	ip, err := p.GetCurrentIP(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, "192.0.2.44", ip)
}
