package audit

// GCSArchiverConfig configures a GCSArchiver. Declared independent of the
// `gcp` build tag so callers can construct it regardless of which archiver
// implementation the build includes.
type GCSArchiverConfig struct {
	Bucket string
	Prefix string
}
