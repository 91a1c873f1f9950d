package source

import (
	"strings"
	"time"

	"github.com/redakta/backend/internal/domain/shared"
)

// SyncStatus represents the outcome of the last sync run for a source
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// Source represents one configured integration with an external affiliate
// network. The Config blob is opaque to this core; only the plugin named by
// PluginSlug can interpret it.
type Source struct {
	shared.BaseAggregateRoot
	Name           string `gorm:"type:varchar(120);not null"`
	PluginSlug     string `gorm:"type:varchar(60);not null;index"`
	Config         string `gorm:"type:jsonb"` // opaque per-network JSON blob
	IsActive       bool   `gorm:"not null;default:true;index"`
	LastSyncAt     *time.Time
	LastSyncStatus SyncStatus `gorm:"type:varchar(20);not null;default:'idle'"`
	LastSyncError  string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Source) TableName() string {
	return "sources"
}

// NewSource creates a new source configuration
func NewSource(name, pluginSlug, config string) (*Source, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Source name cannot be empty")
	}
	if pluginSlug == "" {
		return nil, shared.NewDomainError("INVALID_PLUGIN", "Source plugin slug cannot be empty")
	}
	if config == "" {
		config = "{}"
	}
	trimmed := strings.TrimSpace(config)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, shared.NewDomainError("INVALID_CONFIG", "Source config must be a JSON object")
	}

	return &Source{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		PluginSlug:        strings.ToLower(pluginSlug),
		Config:            trimmed,
		IsActive:          true,
		LastSyncStatus:    SyncStatusIdle,
	}, nil
}

// RecordSyncSuccess updates sync bookkeeping after a successful run
func (s *Source) RecordSyncSuccess() {
	now := time.Now()
	s.LastSyncAt = &now
	s.LastSyncStatus = SyncStatusSuccess
	s.LastSyncError = ""
	s.UpdatedAt = now
	s.IncrementVersion()
}

// RecordSyncFailure updates sync bookkeeping after a failed run
func (s *Source) RecordSyncFailure(reason string) {
	now := time.Now()
	s.LastSyncAt = &now
	s.LastSyncStatus = SyncStatusFailed
	s.LastSyncError = reason
	s.UpdatedAt = now
	s.IncrementVersion()
}
