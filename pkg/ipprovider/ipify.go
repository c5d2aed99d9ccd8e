package ipprovider

import (
	"context"
	"net/http"
)

const (
	ipifyName = "ipify"
	ipifyURL  = "https://api.ipify.org"
)

type Ipify struct {
	BaseUrl string
	Client  *http.Client
}

func (i *Ipify) GetProviderName() string {
	return ipifyName
}

func (i *Ipify) GetCurrentIP(ctx context.Context) (string, error) {
	url := i.BaseUrl
	if url == "" {
		url = ipifyURL
	}
	return fetchText(ctx, i.Client, ipifyName, url)
}
