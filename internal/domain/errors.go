package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtentMismatch reports grids that do not share extent, resolution,
	// or shape and therefore cannot be combined.
	ErrExtentMismatch = errors.New("grid extent mismatch")

	// ErrMissingBand reports a scene that lacks a band required by the
	// requested computation.
	ErrMissingBand = errors.New("required band missing")

	// ErrNoDataExcessive reports a grid whose no-data coverage exceeds the
	// usability threshold for the year.
	ErrNoDataExcessive = errors.New("no-data coverage exceeds usable limit")

	// ErrEmptyShoreline reports a mask that produced no polygon with
	// positive area after cleanup.
	ErrEmptyShoreline = errors.New("empty shoreline after cleanup")

	// ErrInsufficientData reports a multi-year operation invoked with fewer
	// years than it can work with.
	ErrInsufficientData = errors.New("insufficient historical data")

	// ErrDegenerateLabels reports a training set containing only one class.
	ErrDegenerateLabels = errors.New("degenerate single-class label set")

	// ErrMisaligned reports feature and label collections of different
	// lengths.
	ErrMisaligned = errors.New("feature/label misalignment")
)

// YearError attaches year and stage context to a failure local to one
// analysis year. Errors wrapped in a YearError do not abort the whole run;
// the pipeline excludes the year and continues.
type YearError struct {
	Year  int
	Stage string
	Err   error
}

func (e *YearError) Error() string {
	return fmt.Sprintf("year %d: stage %s: %v", e.Year, e.Stage, e.Err)
}

func (e *YearError) Unwrap() error { return e.Err }
