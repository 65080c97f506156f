package models

import "github.com/oklog/ulid/v2"

// NewID returns a ULID string. ULIDs sort by creation time, which keeps
// run listings ordered without an extra index.
func NewID() string {
	return ulid.Make().String()
}
