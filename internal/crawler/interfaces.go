package crawler

import (
	"context"
	"net/url"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata. Any HTTP status
// is a successful fetch; errors are reserved for transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Guard vets outbound targets before they are fetched.
type Guard interface {
	AssertSafeTargetURL(ctx context.Context, u *url.URL) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
