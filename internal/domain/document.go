package domain

// Document is a corpus entry. Immutable once the corpus store is loaded.
type Document struct {
	ID       int64
	Title    string
	Abstract string
	URL      string
}
