package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// contentIDPrefix marks identifiers derived from image bytes rather than
// supplied by the chat platform.
const contentIDPrefix = "sha256:"

// ContentIDFromBytes derives a stable content identifier from raw image bytes.
// Used when the host platform does not provide a file-unique token.
func ContentIDFromBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return contentIDPrefix + hex.EncodeToString(sum[:])
}

// ReferenceStorageKey returns the storage key for a reference image PNG.
func ReferenceStorageKey(seq uint) string {
	return fmt.Sprintf("%d.png", seq)
}

// Candidate is one image attached to an inbound message.
// At least one of Fingerprint, Data or URL must be set.
type Candidate struct {
	ContentID   string `json:"content_id"`
	URL         string `json:"url"`
	Data        []byte `json:"-"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Message is an inbound chat message as delivered by the host platform.
type Message struct {
	ScopeID   string      `json:"scope_id"`
	MessageID string      `json:"message_id"`
	UserID    string      `json:"user_id"`
	Images    []Candidate `json:"images"`
}
