package audit

import "context"

// Archiver uploads a sealed (rotated-out) audit log segment to durable
// storage. It is entirely optional: the no-op Archiver is the default, and
// a project opts in by configuring a bucket.
type Archiver interface {
	Archive(ctx context.Context, segmentName string, data []byte) error
}

// NoopArchiver discards every segment. Used when no archive destination is
// configured.
type NoopArchiver struct{}

func (NoopArchiver) Archive(context.Context, string, []byte) error { return nil }
