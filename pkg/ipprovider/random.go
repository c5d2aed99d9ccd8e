package ipprovider

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
)

const randomName = "random"

// Random asks one of its providers, picked per lookup.
type Random struct {
	Providers []Provider
}

func (r *Random) GetProviderName() string {
	return randomName
}

func (r *Random) GetCurrentIP(ctx context.Context) (string, error) {
	if len(r.Providers) == 0 {
		return "", fmt.Errorf("%s: no ip providers configured", randomName)
	}
	return r.Providers[rand.Intn(len(r.Providers))].GetCurrentIP(ctx)
}

// New returns the ip provider registered under name. A non-empty url replaces
// the provider's default endpoint; it is ignored for random.
func New(name, url string, client *http.Client) (Provider, error) {
	switch name {
	case ipifyName, "":
		return &Ipify{BaseUrl: url, Client: client}, nil
	case icanHazName, "icanhaz":
		return &ICanHazIp{BaseUrl: url, Client: client}, nil
	case randomName:
		return &Random{Providers: []Provider{
			&Ipify{Client: client},
			&ICanHazIp{Client: client},
		}}, nil
	default:
		return nil, fmt.Errorf("unknown ip provider %q", name)
	}
}
