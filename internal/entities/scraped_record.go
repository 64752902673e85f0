package entities

// ScrapedRecord is a listing extracted from a page; it lives only for the duration of a run.
type ScrapedRecord struct {
	Title          string
	Description    string
	Organization   string
	Location       string
	Deadline       string
	PostedDate     string
	Tags           []string
	SourceURL      string
	ApplicationURL string
}
