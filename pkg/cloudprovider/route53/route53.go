package route53

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsroute53 "github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"
	"github.com/go-logr/logr"

	"github.com/larivierec/ddns-reconciler/pkg/cloudprovider"
	"github.com/larivierec/ddns-reconciler/pkg/metrics"
)

const (
	providerName = "route53"

	// route53 is a global service but the sdk still wants a region to sign with.
	defaultRegion = "us-east-1"
	defaultTTL    = 300

	hostedZonePrefix = "/hostedzone/"
)

// API is the subset of the route53 client used here.
type API interface {
	ListHostedZones(ctx context.Context, params *awsroute53.ListHostedZonesInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ListHostedZonesOutput, error)
	ListResourceRecordSets(ctx context.Context, params *awsroute53.ListResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ListResourceRecordSetsOutput, error)
	ChangeResourceRecordSets(ctx context.Context, params *awsroute53.ChangeResourceRecordSetsInput, optFns ...func(*awsroute53.Options)) (*awsroute53.ChangeResourceRecordSetsOutput, error)
}

type Configuration struct {
	Region     string
	HTTPClient *http.Client
}

type Route53Provider struct {
	api API
	log logr.Logger
}

// NewRoute53Provider builds a client from the standard aws credential chain.
func NewRoute53Provider(ctx context.Context, log logr.Logger, config Configuration) (*Route53Provider, error) {
	region := config.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if config.HTTPClient != nil {
		opts = append(opts, awsconfig.WithHTTPClient(config.HTTPClient))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("route53: loading aws config: %w", err)
	}
	return New(log, awsroute53.NewFromConfig(cfg)), nil
}

func New(log logr.Logger, api API) *Route53Provider {
	return &Route53Provider{api: api, log: log.WithValues("provider", providerName)}
}

func (p *Route53Provider) Name() string {
	return providerName
}

func (p *Route53Provider) ListZones(ctx context.Context) ([]cloudprovider.Zone, error) {
	var zones []cloudprovider.Zone
	input := &awsroute53.ListHostedZonesInput{}
	for {
		out, err := p.api.ListHostedZones(ctx, input)
		if err := p.observe("list zones", err); err != nil {
			return nil, err
		}

		for _, z := range out.HostedZones {
			zones = append(zones, cloudprovider.Zone{
				ID:   strings.TrimPrefix(aws.ToString(z.Id), hostedZonePrefix),
				Name: trimDot(aws.ToString(z.Name)),
			})
		}

		if !out.IsTruncated || out.NextMarker == nil {
			break
		}
		input = &awsroute53.ListHostedZonesInput{Marker: out.NextMarker}
	}
	p.log.V(1).Info("listed zones", "count", len(zones))
	return zones, nil
}

func (p *Route53Provider) FindZoneIDByName(ctx context.Context, name string) (string, bool, error) {
	zones, err := p.ListZones(ctx)
	if err != nil {
		return "", false, err
	}
	id, ok := cloudprovider.FindZoneID(zones, name)
	return id, ok, nil
}

// ListDNSRecords returns one record per plain record set. Alias sets and sets
// carrying a routing policy identifier are left out since they have no single
// address to overwrite.
func (p *Route53Provider) ListDNSRecords(ctx context.Context, zoneID string) ([]cloudprovider.Record, error) {
	if zoneID == "" {
		return nil, fmt.Errorf("route53: list dns records: %w", cloudprovider.ErrEmptyZoneID)
	}

	var records []cloudprovider.Record
	input := &awsroute53.ListResourceRecordSetsInput{HostedZoneId: aws.String(zoneID)}
	for {
		out, err := p.api.ListResourceRecordSets(ctx, input)
		if err := p.observe("list dns records", err); err != nil {
			return nil, err
		}

		for _, set := range out.ResourceRecordSets {
			if set.AliasTarget != nil || set.SetIdentifier != nil || len(set.ResourceRecords) == 0 {
				p.log.V(1).Info("skipping record set", "name", aws.ToString(set.Name), "type", string(set.Type))
				continue
			}
			name := trimDot(aws.ToString(set.Name))
			records = append(records, cloudprovider.Record{
				ID:      name,
				ZoneID:  zoneID,
				Name:    name,
				Type:    string(set.Type),
				Content: aws.ToString(set.ResourceRecords[0].Value),
				TTL:     int(aws.ToInt64(set.TTL)),
			})
		}

		if !out.IsTruncated || out.NextRecordName == nil {
			break
		}
		input = &awsroute53.ListResourceRecordSetsInput{
			HostedZoneId:          aws.String(zoneID),
			StartRecordName:       out.NextRecordName,
			StartRecordType:       out.NextRecordType,
			StartRecordIdentifier: out.NextRecordIdentifier,
		}
	}
	p.log.V(1).Info("listed dns records", "zone", zoneID, "count", len(records))
	return records, nil
}

// UpdateRecordContent upserts the A set named recordName with a single value,
// keeping the set's current ttl.
func (p *Route53Provider) UpdateRecordContent(ctx context.Context, zoneID, recordID, recordName, content string) error {
	if zoneID == "" {
		return fmt.Errorf("route53: update dns record: %w", cloudprovider.ErrEmptyZoneID)
	}

	ttl, err := p.currentTTL(ctx, zoneID, recordName)
	if err != nil {
		return err
	}

	_, err = p.api.ChangeResourceRecordSets(ctx, &awsroute53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(zoneID),
		ChangeBatch: &types.ChangeBatch{
			Comment: aws.String("ddns-reconciler"),
			Changes: []types.Change{{
				Action: types.ChangeActionUpsert,
				ResourceRecordSet: &types.ResourceRecordSet{
					Name:            aws.String(recordName),
					Type:            types.RRTypeA,
					TTL:             aws.Int64(ttl),
					ResourceRecords: []types.ResourceRecord{{Value: aws.String(content)}},
				},
			}},
		},
	})
	if err := p.observe("update dns record", err); err != nil {
		p.log.Error(err, "failed to change record", "record", recordName, "zone", zoneID)
		return err
	}

	p.log.Info("successfully changed record", "record", recordName, "zone", zoneID, "content", content)
	return nil
}

func (p *Route53Provider) currentTTL(ctx context.Context, zoneID, name string) (int64, error) {
	out, err := p.api.ListResourceRecordSets(ctx, &awsroute53.ListResourceRecordSetsInput{
		HostedZoneId:    aws.String(zoneID),
		StartRecordName: aws.String(name),
		StartRecordType: types.RRTypeA,
	})
	if err := p.observe("get dns record", err); err != nil {
		return 0, err
	}

	for _, set := range out.ResourceRecordSets {
		if set.Type == types.RRTypeA && trimDot(aws.ToString(set.Name)) == trimDot(name) && set.TTL != nil {
			return *set.TTL, nil
		}
	}
	return defaultTTL, nil
}

// observe counts the call and maps sdk failures onto the provider error types.
func (p *Route53Provider) observe(op string, err error) error {
	if err == nil {
		metrics.ObserveAPICall(providerName, op, http.StatusOK)
		return nil
	}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		metrics.ObserveAPICall(providerName, op, re.HTTPStatusCode())
		return &cloudprovider.ProviderError{
			Provider:   providerName,
			Op:         op,
			StatusCode: re.HTTPStatusCode(),
			Body:       re.Error(),
		}
	}
	metrics.ObserveAPICall(providerName, op, 0)
	return &cloudprovider.NetworkError{Op: "route53: " + op, Err: err}
}

func trimDot(name string) string {
	return strings.TrimSuffix(name, ".")
}
