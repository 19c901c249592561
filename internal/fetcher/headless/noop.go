package headless

import (
	"context"

	"github.com/campusdata/admissions-crawler/internal/admissions"
)

// Noop implements the renderer contract but always reports that headless
// browsing is unavailable. Used when headless mode is disabled.
type Noop struct{}

// NewNoop creates a new Noop renderer.
func NewNoop() *Noop {
	return &Noop{}
}

// Render returns ErrDisabled since this is a stub implementation.
func (Noop) Render(_ context.Context, _ string) (admissions.RawPage, error) {
	return admissions.RawPage{}, ErrDisabled
}
