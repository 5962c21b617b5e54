package models

// ParseRequest is a page handed to the parser, either fetched, read from a
// file, or snapshotted from a live browser tab.
type ParseRequest struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}
