package repository

// SyncRepository is the aggregate persistence interface for the engine's
// metadata store. It embeds the per-aggregate repositories to separate
// concerns while letting one backend serve all of them.
type SyncRepository interface {
	SyncJobRepository
	ConflictRepository

	// Close releases resources (such as database connections) used by the
	// repository.
	Close() error
}
