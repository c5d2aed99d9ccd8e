// Package reconcile points the A records of configured zones at the current public ip.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider"
	"github.com/larivierec/ddns-reconciler/pkg/ipprovider"
	"github.com/larivierec/ddns-reconciler/pkg/metrics"
)

var ErrZoneNotFound = errors.New("no zone matches domain")

type Options struct {
	// FailFast stops the run at the first failing domain instead of moving on to the next one.
	FailFast bool
}

type Reconciler struct {
	log  logr.Logger
	ip   ipprovider.Provider
	dns  cloudprovider.Provider
	opts Options
}

// Result summarises one domain.
type Result struct {
	Domain   string
	ZoneID   string
	Skipped  bool
	Updated  int
	UpToDate int
}

func New(log logr.Logger, ip ipprovider.Provider, dns cloudprovider.Provider, opts Options) *Reconciler {
	return &Reconciler{log: log, ip: ip, dns: dns, opts: opts}
}

// Run resolves the public ip once and reconciles each domain in order.
// Domain failures are joined into the returned error.
func (r *Reconciler) Run(ctx context.Context, domains []string) ([]Result, error) {
	currentIP, err := ipprovider.GetCurrentIP(ctx, r.ip, metrics.IncrementProvider)
	if err != nil {
		return nil, fmt.Errorf("resolving current ip: %w", err)
	}
	r.log.Info("resolved current ip", "ip", currentIP, "source", r.ip.GetProviderName())

	var (
		results []Result
		errs    []error
	)
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		r.log.Info("checking if domain is up to date", "domain", domain)
		res, err := r.ReconcileDomain(ctx, domain, currentIP)
		results = append(results, res)
		if err == nil {
			continue
		}

		r.log.Error(err, "reconciling domain failed", "domain", domain)
		errs = append(errs, err)
		if r.opts.FailFast {
			break
		}
	}
	return results, errors.Join(errs...)
}

// ReconcileDomain overwrites every A record of the zone named domain whose
// content differs from currentIP. A domain without a zone is skipped.
func (r *Reconciler) ReconcileDomain(ctx context.Context, domain, currentIP string) (Result, error) {
	res := Result{Domain: domain}
	log := r.log.WithValues("domain", domain)

	zoneID, ok, err := r.dns.FindZoneIDByName(ctx, domain)
	if err != nil {
		return res, fmt.Errorf("looking up zone for %s: %w", domain, err)
	}
	if !ok {
		log.Error(ErrZoneNotFound, "skipping domain", "provider", r.dns.Name())
		res.Skipped = true
		return res, nil
	}
	res.ZoneID = zoneID

	records, err := r.dns.ListDNSRecords(ctx, zoneID)
	if err != nil {
		return res, fmt.Errorf("listing records of %s: %w", domain, err)
	}

	aRecords := cloudprovider.FilterA(records)
	if len(aRecords) == 0 {
		log.Info("zone has no A records", "zone", zoneID)
		return res, nil
	}

	for _, rec := range aRecords {
		if rec.Content == currentIP {
			log.Info("record is up to date", "record", rec.Name, "ip", currentIP)
			res.UpToDate++
			continue
		}

		log.Info("record is stale", "record", rec.Name, "old", rec.Content, "new", currentIP)
		err := r.dns.UpdateRecordContent(ctx, zoneID, rec.ID, rec.Name, currentIP)
		metrics.IncrementUpdate(err)
		if err != nil {
			return res, fmt.Errorf("updating %s in zone %s: %w", rec.Name, zoneID, err)
		}
		res.Updated++
	}
	return res, nil
}
