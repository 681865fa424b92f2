package cache

import "context"

// Storage is the pluggable backend a bundle blob is stored in and fetched
// from, keyed by fingerprint. Implementations must tolerate concurrent
// calls for distinct fingerprints.
type Storage interface {
	// Store uploads the bundle directory under the given fingerprint.
	Store(ctx context.Context, fingerprint, bundleDir string) error

	// Fetch downloads the bundle stored under the given fingerprint and
	// unpacks it at destDir. It returns false with a nil error when no
	// entry exists for the fingerprint.
	Fetch(ctx context.Context, fingerprint, destDir string) (bool, error)
}
