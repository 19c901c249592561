package admissions

import (
	"context"
	"time"
)

// Fetcher retrieves one admissions page, applying rate limits, retries, and
// the fallback URL policy.
type Fetcher interface {
	Fetch(ctx context.Context, target UniversityTarget) (RawPage, error)
}

// Extractor produces provisional fields from a fetched page, plus a map of
// field name to the strategy that produced it. Extraction never fails as a
// whole; fields without a match stay absent.
type Extractor interface {
	Extract(ctx context.Context, page RawPage) (ProvisionalFields, map[string]string)
}

// EnrichmentProvider restructures one record via an AI provider (or the
// deterministic simulation).
type EnrichmentProvider interface {
	Name() string
	Enrich(ctx context.Context, record AdmissionsRecord) (EnrichedRecord, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for archive object keys.
type Hasher interface {
	Hash(data []byte) (string, error)
}
