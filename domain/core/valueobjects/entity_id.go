package valueobjects

import (
	"errors"
	"strconv"
)

// EntityID identifies an extracted entity. Ids are assigned upstream by the
// extraction pipeline and are always positive.
type EntityID int64

// NewEntityID validates a raw id
func NewEntityID(raw int64) (EntityID, error) {
	if raw <= 0 {
		return 0, errors.New("entity ID must be a positive integer")
	}
	return EntityID(raw), nil
}

// Int64 returns the raw value
func (id EntityID) Int64() int64 {
	return int64(id)
}

// String returns the decimal representation
func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsValid reports whether the id is usable as a graph key
func (id EntityID) IsValid() bool {
	return id > 0
}
