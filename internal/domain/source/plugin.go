package source

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/offer"
)

// RawOffer is one unparsed record from an affiliate network feed.
// Its shape is network-specific; only the owning plugin interprets it.
type RawOffer map[string]any

// String returns a string field, or empty when missing or mistyped
func (r RawOffer) String(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric field, accepting JSON numbers and int values
func (r RawOffer) Float(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}

// Bool returns a boolean field, or false when missing or mistyped
func (r RawOffer) Bool(key string) bool {
	if v, ok := r[key].(bool); ok {
		return v
	}
	return false
}

// Plugin is the capability contract one affiliate network adapter must
// implement. Plugins are stateful per source: Initialize is called with the
// source's opaque config before any other method.
type Plugin interface {
	// Slug returns the stable registry key for this network, e.g. "amazon-partners"
	Slug() string
	// Initialize parses and validates the network-specific config blob
	Initialize(config json.RawMessage) error
	// TestConnection verifies credentials against the network
	TestConnection(ctx context.Context) error
	// FetchOffers pulls the current raw feed for the configured account
	FetchOffers(ctx context.Context) ([]RawOffer, error)
	// ValidateOffer checks one raw record's shape before transformation
	ValidateOffer(raw RawOffer) error
	// TransformOffer normalizes one validated record into a canonical offer,
	// including an initial quality score derived from network signals
	TransformOffer(raw RawOffer, sourceID uuid.UUID) (*offer.Offer, error)
}

// SyncResult summarizes one sync run for a source. Record-level failures are
// collected in Errors and never abort the run.
type SyncResult struct {
	SourceID  uuid.UUID `json:"source_id"`
	Processed int       `json:"processed"`
	Added     int       `json:"added"`
	Updated   int       `json:"updated"`
	Removed   int       `json:"removed"`
	Errors    []string  `json:"errors,omitempty"`
}
