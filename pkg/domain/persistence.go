package domain

// RecordStore is the contract shared by the in-memory store and the durable
// backends that wrap it. Every method is safe for concurrent use.
type RecordStore interface {
	Add(Record) error
	Get(id int) (Record, bool)
	Update(Record) error
	Delete(id int) error
	ListSorted() []Record
	Len() int
}

// Snapshot is a point-in-time copy of every stored record.
type Snapshot struct {
	Records []Record `json:"records"`
}

// SnapshotStore is implemented by stores that can export and replace their
// whole state atomically.
type SnapshotStore interface {
	RecordStore
	ExportState() Snapshot
	ImportState(Snapshot) error
}

// PersistentStore is a SnapshotStore that owns external resources.
type PersistentStore interface {
	SnapshotStore
	Close() error
}
