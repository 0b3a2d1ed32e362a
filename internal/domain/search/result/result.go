package result

import "github.com/kailas-cloud/scisearch/internal/domain"

// Result is a single ranked hit.
type Result struct {
	doc        domain.Document
	distance   float64
	similarity float64
}

// New creates a result from a document and its angular distance to the query.
// Similarity is derived from the distance.
func New(doc domain.Document, distance float64) Result {
	return Result{
		doc:        doc,
		distance:   distance,
		similarity: domain.Similarity(distance),
	}
}

// DocumentID returns the corpus identifier.
func (r *Result) DocumentID() int64 { return r.doc.ID }

// Title returns the document title.
func (r *Result) Title() string { return r.doc.Title }

// Abstract returns the document abstract.
func (r *Result) Abstract() string { return r.doc.Abstract }

// URL returns the document link.
func (r *Result) URL() string { return r.doc.URL }

// Distance returns the angular distance to the query, in [0, 2].
func (r *Result) Distance() float64 { return r.distance }

// Similarity returns 1 - distance²/2, in [-1, 1].
func (r *Result) Similarity() float64 { return r.similarity }
