package settlement

import "errors"

var (
	// ErrInvalidPeriod is returned for an out-of-range year/month pair.
	ErrInvalidPeriod = errors.New("settlement: invalid period")
	// ErrSnapshotNotFound is returned when a snapshot id is unknown.
	ErrSnapshotNotFound = errors.New("settlement: snapshot not found")
	// ErrNilSnapshot is returned when saving a nil snapshot.
	ErrNilSnapshot = errors.New("settlement: nil snapshot")
)
