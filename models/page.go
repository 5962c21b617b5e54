package models

// Page carries the metadata read from a page alongside its DOM.
type Page struct {
	URL      string `json:"url" yaml:"url"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	SiteName string `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	Host     string `json:"host" yaml:"host"`
}
