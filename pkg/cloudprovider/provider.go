package cloudprovider

import (
	"context"
	"errors"
	"fmt"
)

// RecordTypeA is the only record type the reconciler reads or writes.
const RecordTypeA = "A"

type Zone struct {
	ID   string
	Name string
}

type Record struct {
	ID      string
	ZoneID  string
	Name    string
	Type    string
	Content string
	TTL     int
	Proxied bool
}

// Provider is a DNS hosting API holding zones of records.
//
// FindZoneIDByName reports false without an error when no zone carries
// exactly the given name.
type Provider interface {
	Name() string
	ListZones(ctx context.Context) ([]Zone, error)
	FindZoneIDByName(ctx context.Context, name string) (string, bool, error)
	ListDNSRecords(ctx context.Context, zoneID string) ([]Record, error)
	UpdateRecordContent(ctx context.Context, zoneID, recordID, recordName, content string) error
}

var ErrEmptyZoneID = errors.New("zone id must not be empty")

// ProviderError is returned when the provider answers with a non-success status.
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s returned status %d: %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

// NetworkError wraps a transport failure (dns, connect, timeout) on an outbound call.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// FindZoneID scans zones in order and returns the id of the first zone named exactly name.
func FindZoneID(zones []Zone, name string) (string, bool) {
	for _, z := range zones {
		if z.Name == name {
			return z.ID, true
		}
	}
	return "", false
}

// FilterA keeps A records in the order they were listed.
func FilterA(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Type == RecordTypeA {
			out = append(out, r)
		}
	}
	return out
}
