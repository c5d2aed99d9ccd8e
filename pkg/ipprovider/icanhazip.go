package ipprovider

import (
	"context"
	"net/http"
)

const (
	icanHazName = "icanhazip"
	icanHazURL  = "https://ipv4.icanhazip.com"
)

type ICanHazIp struct {
	BaseUrl string
	Client  *http.Client
}

func (i *ICanHazIp) GetProviderName() string {
	return icanHazName
}

func (i *ICanHazIp) GetCurrentIP(ctx context.Context) (string, error) {
	url := i.BaseUrl
	if url == "" {
		url = icanHazURL
	}
	return fetchText(ctx, i.Client, icanHazName, url)
}
