package index

// ItemIndex is the catalog surface consumers depend on.
type ItemIndex interface {
	UpsertItem(it ItemRow, body string, refs []string) error
	DeleteItem(path string) error
	GetChecksum(path string) (string, error)
	GetItem(name string) (*ItemRow, error)
	ListItems(limit, offset int, symbolType string) ([]ItemRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Dependents(name string) ([]string, error)
	Dependencies(name string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ ItemIndex = (*DB)(nil)
