package remote

import "context"

// SubResourceLister binds a Client to one queryable sub-resource and a page
// size, presenting the listing endpoint as a plain page-by-cursor source.
type SubResourceLister struct {
	client        *Client
	subResourceID string
	pageSize      int
}

// NewSubResourceLister creates a lister for the given sub-resource. A
// pageSize of zero means the API default of 20.
func NewSubResourceLister(client *Client, subResourceID string, pageSize int) *SubResourceLister {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &SubResourceLister{
		client:        client,
		subResourceID: subResourceID,
		pageSize:      pageSize,
	}
}

// FetchPage fetches one page of listing results. An empty startCursor
// requests the first page.
func (l *SubResourceLister) FetchPage(ctx context.Context, startCursor string) (*Page, error) {
	return l.client.QuerySubResource(ctx, l.subResourceID, startCursor, l.pageSize)
}
