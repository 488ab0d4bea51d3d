package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrFetch marks an archive or transport failure. It is distinct from
	// "no data", which is never an error.
	ErrFetch = errors.New("archive fetch failed")

	// ErrPersistenceCorrupt marks a stored cache blob that is not well-formed.
	ErrPersistenceCorrupt = errors.New("persisted cache corrupt")

	// ErrConfigInvalid marks widget settings that fail validation.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrSourceUnresolved marks a monitored source id that is unset or unknown.
	ErrSourceUnresolved = errors.New("monitored source unresolved")
)

// FetchError describes a failed archive query.
type FetchError struct {
	Source string
	Start  time.Time
	End    time.Time
	Agg    Aggregation
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("archive query %s [%s, %s] (%s): %v",
		e.Source, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), e.Agg, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrFetch) match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
