//go:build !gcp

package audit

import (
	"context"
	"fmt"
)

// NewGCSArchiver is stubbed out in default builds; build with `-tags gcp` to
// get a real Google Cloud Storage archiver.
func NewGCSArchiver(ctx context.Context, cfg GCSArchiverConfig) (Archiver, error) {
	return nil, fmt.Errorf("audit: gcs archiving not enabled in this build (use -tags gcp)")
}
