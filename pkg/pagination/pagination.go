package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the page size applied when a list request omits one.
	DefaultLimit = 25
	// MaxLimit caps the page size for every tenant-scoped list endpoint.
	MaxLimit = 100
)

// Params carries the limit and opaque cursor from a list request down to the
// repository layer.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor is the decoded position within a (created_at, id) ordered list.
// Contacts, invoices and notifications all page on this pair.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// NormalizeLimit clamps a requested limit into [1, MaxLimit], substituting
// DefaultLimit for zero or negative values.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer is the normalized limit plus one sentinel row, used to
// detect whether another page exists without a second count query.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// EncodeCursor renders a cursor as an opaque base64 token for clients.
func EncodeCursor(cursor Cursor) string {
	raw := cursor.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + cursor.ID.String()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes a client-supplied token. An empty token means the
// first page and yields a nil cursor without error.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	tsPart, idPart, found := strings.Cut(string(decoded), "|")
	if !found {
		return nil, fmt.Errorf("cursor is missing its separator")
	}

	createdAt, err := time.Parse(time.RFC3339Nano, tsPart)
	if err != nil {
		return nil, fmt.Errorf("cursor timestamp: %w", err)
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return nil, fmt.Errorf("cursor id: %w", err)
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}
