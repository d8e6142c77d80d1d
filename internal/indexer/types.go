package indexer

// Event names pushed to the client during ingestion.
const (
	EventFileStart  = "file_start"
	EventFileDone   = "file_done"
	EventFileError  = "file_error"
	EventURLStart   = "url_start"
	EventURLDone    = "url_done"
	EventURLError   = "url_error"
	EventIngestDone = "ingest_done"
)

// Event is one progress notification. Added is a pointer so a count of
// zero is still sent.
type Event struct {
	Event string `json:"event"`
	File  string `json:"file,omitempty"`
	URL   string `json:"url,omitempty"`
	Added *int   `json:"added,omitempty"`
	Error string `json:"error,omitempty"`
}

// FileItem is an uploaded file.
type FileItem struct {
	Name string
	Data []byte
}

func added(n int) *int {
	return &n
}
