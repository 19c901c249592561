// Package progress defines the stage events emitted while crawling targets.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a per-target milestone in the crawl state machine.
type Stage string

// Crawl stages in lifecycle order. Failed may follow any other stage.
const (
	StageFetching   Stage = "FETCHING"
	StageExtracting Stage = "EXTRACTING"
	StageNormalized Stage = "NORMALIZED"
	StageDone       Stage = "DONE"
	StageFailed     Stage = "FAILED"
)

// Event captures a single stage transition for one university target.
type Event struct {
	// Target is the university name the event belongs to.
	Target string
	// URL optionally identifies the page being worked on.
	URL string
	// Stage is the milestone reached.
	Stage Stage
	// At is the timestamp recorded by the emitter.
	At time.Time
	// Detail carries low-volume context such as error text for failures.
	Detail string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Target == "" {
		return errors.New("target is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageFetching, StageExtracting, StageNormalized, StageDone:
	case StageFailed:
		if e.Detail == "" {
			return errors.New("failed stage requires detail")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}
