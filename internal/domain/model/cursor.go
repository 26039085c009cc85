package model

// CollectionCursor tracks pagination through the workflow runs of one
// repository during a single collection pass. It is never persisted.
type CollectionCursor struct {
	Repository   RepositoryRef
	Page         int // Next page to request; 1-based.
	Exhausted    bool
	PagesFetched int
}

// NewCollectionCursor returns a cursor positioned at the first page.
func NewCollectionCursor(repo RepositoryRef) CollectionCursor {
	return CollectionCursor{Repository: repo, Page: 1}
}

// Advance records a fetched page. A next page of 0 marks the cursor exhausted.
func (c *CollectionCursor) Advance(nextPage int) {
	c.PagesFetched++
	if nextPage == 0 {
		c.Exhausted = true
		return
	}
	c.Page = nextPage
}

// PageRequest describes a single paginated API request.
type PageRequest struct {
	Repository RepositoryRef
	Kind       ResourceKind
	RunID      int64 // Required when Kind is ResourceJobs.
	Page       int   // 1-based; 0 is treated as 1.
}

// Page is one page of results. Only the slice matching the request kind is set.
type Page struct {
	Runs       []WorkflowRun
	Jobs       []JobRecord
	NextPage   int // 0 when there are no further pages.
	TotalCount int
}
