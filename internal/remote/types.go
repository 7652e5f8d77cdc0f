package remote

// ListEntry is one lightweight result from the listing endpoint: the record
// id plus an optional display title. Full detail comes from hydration.
type ListEntry struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Page is one page of listing results.
type Page struct {
	Results    []ListEntry `json:"results"`
	HasMore    bool        `json:"has_more"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// SchemaProperty is one declared property of the remote source.
type SchemaProperty struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Schema describes the remote source: the full property name->id map and
// the queryable sub-resources it exposes. Properties are sorted by name so
// the derived cache file is deterministic.
type Schema struct {
	Properties   []SchemaProperty `json:"properties"`
	SubResources []string         `json:"sub_resources"`
}
