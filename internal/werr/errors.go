// Package werr holds the error types shared across the worklog core,
// mirroring the teacher's sentinel-error style (events.ErrBusClosed).
package werr

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup (e.g. by stream prefix) matches no
// record.
var ErrNotFound = errors.New("not found")

// ErrInvalidRecord is returned by the ingress layer when a raw record is
// missing a required field or carries a timestamp that does not parse. It
// never escapes the ingest package.
type ErrInvalidRecord struct {
	Field string
}

func (e *ErrInvalidRecord) Error() string {
	return fmt.Sprintf("invalid record: missing or invalid %s", e.Field)
}

// ErrAmbiguousPrefix is returned by GetStreamByPrefix when more than one
// stream id matches the given prefix.
type ErrAmbiguousPrefix struct {
	Prefix     string
	Candidates []string
}

func (e *ErrAmbiguousPrefix) Error() string {
	return fmt.Sprintf("ambiguous prefix %q: matches %s", e.Prefix, strings.Join(e.Candidates, ", "))
}
