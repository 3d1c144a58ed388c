package domain

import "time"

// ReferenceImage is a banned image registered by an operator.
// Seq is allocated by the database on first insert and is the number shown
// to operators in list/del commands. ContentID is unique across the table.
type ReferenceImage struct {
	Seq         uint      `gorm:"primaryKey;autoIncrement" json:"seq"`
	ContentID   string    `gorm:"type:text;not null;uniqueIndex:idx_reference_images_content" json:"content_id"`
	Fingerprint string    `gorm:"type:text;not null" json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ReferenceImage.
func (ReferenceImage) TableName() string {
	return "reference_images"
}

// StorageKey returns the object key the normalized PNG is stored under.
func (r *ReferenceImage) StorageKey() string {
	return ReferenceStorageKey(r.Seq)
}

// ScopeRegistration links a reference image to a scope (channel or guild).
// The same image may be registered independently in any number of scopes.
type ScopeRegistration struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScopeID   string    `gorm:"type:text;not null;uniqueIndex:idx_scope_registrations_scope_content" json:"scope_id"`
	ContentID string    `gorm:"type:text;not null;uniqueIndex:idx_scope_registrations_scope_content;index:idx_scope_registrations_content" json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for ScopeRegistration.
func (ScopeRegistration) TableName() string {
	return "scope_registrations"
}

// ScopedFingerprint is one entry of a scope's rule set as seen by the matcher.
type ScopedFingerprint struct {
	Seq         uint
	ContentID   string
	Fingerprint string
}

// FingerprintCacheEntry backs the database fingerprint cache.
type FingerprintCacheEntry struct {
	ContentID   string    `gorm:"type:text;primaryKey"`
	Fingerprint string    `gorm:"type:text;not null"`
	ExpiresAt   time.Time `gorm:"index:idx_fingerprint_cache_expires"`
	UpdatedAt   time.Time
}

// TableName returns the database table name for FingerprintCacheEntry.
func (FingerprintCacheEntry) TableName() string {
	return "fingerprint_cache"
}
