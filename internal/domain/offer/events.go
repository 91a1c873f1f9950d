package offer

import (
	"github.com/google/uuid"
	"github.com/redakta/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeOffer = "Offer"

// Event type constants
const (
	EventTypeOfferCreated     = "OfferCreated"
	EventTypeOfferUpdated     = "OfferUpdated"
	EventTypeOfferDeactivated = "OfferDeactivated"
	EventTypeOfferRemediated  = "OfferRemediated"
)

// OfferCreatedEvent is published when a new offer is synced in
type OfferCreatedEvent struct {
	shared.BaseDomainEvent
	OfferID  uuid.UUID `json:"offer_id"`
	SourceID uuid.UUID `json:"source_id"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Category string    `json:"category,omitempty"`
}

// NewOfferCreatedEvent creates a new OfferCreatedEvent
func NewOfferCreatedEvent(o *Offer) *OfferCreatedEvent {
	return &OfferCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOfferCreated, AggregateTypeOffer, o.ID),
		OfferID:         o.ID,
		SourceID:        o.SourceID,
		Slug:            o.Slug,
		Title:           o.Title,
		Category:        o.Category,
	}
}

// OfferUpdatedEvent is published when an offer's details change
type OfferUpdatedEvent struct {
	shared.BaseDomainEvent
	OfferID uuid.UUID `json:"offer_id"`
	Slug    string    `json:"slug"`
	Title   string    `json:"title"`
}

// NewOfferUpdatedEvent creates a new OfferUpdatedEvent
func NewOfferUpdatedEvent(o *Offer) *OfferUpdatedEvent {
	return &OfferUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOfferUpdated, AggregateTypeOffer, o.ID),
		OfferID:         o.ID,
		Slug:            o.Slug,
		Title:           o.Title,
	}
}

// OfferDeactivatedEvent is published when an offer is withdrawn from display
type OfferDeactivatedEvent struct {
	shared.BaseDomainEvent
	OfferID uuid.UUID `json:"offer_id"`
	Slug    string    `json:"slug"`
}

// NewOfferDeactivatedEvent creates a new OfferDeactivatedEvent
func NewOfferDeactivatedEvent(o *Offer) *OfferDeactivatedEvent {
	return &OfferDeactivatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOfferDeactivated, AggregateTypeOffer, o.ID),
		OfferID:         o.ID,
		Slug:            o.Slug,
	}
}

// OfferRemediatedEvent is published when a compliance auto-fix modified the offer
type OfferRemediatedEvent struct {
	shared.BaseDomainEvent
	OfferID     uuid.UUID `json:"offer_id"`
	Slug        string    `json:"slug"`
	Remediation string    `json:"remediation"`
}

// NewOfferRemediatedEvent creates a new OfferRemediatedEvent
func NewOfferRemediatedEvent(o *Offer, remediation string) *OfferRemediatedEvent {
	return &OfferRemediatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOfferRemediated, AggregateTypeOffer, o.ID),
		OfferID:         o.ID,
		Slug:            o.Slug,
		Remediation:     remediation,
	}
}
