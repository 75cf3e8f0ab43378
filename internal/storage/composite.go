package storage

// CompositeStore satisfies Store by pairing the GORM-backed session
// store with the separate database/sql-backed buffer store, per the
// split described in buffer.go's PqBufferStore doc comment.
type CompositeStore struct {
	*PostgresStore
	*PqBufferStore
}

// NewCompositeStore pairs a session store and a buffer store into one
// Store.
func NewCompositeStore(sessions *PostgresStore, buffer *PqBufferStore) *CompositeStore {
	return &CompositeStore{PostgresStore: sessions, PqBufferStore: buffer}
}
