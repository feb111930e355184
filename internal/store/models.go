package store

// Status is the lifecycle state of a record. A record is created open,
// promoted to in-progress when its first comment arrives, and closed
// explicitly.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusClosed     Status = "closed"
)

type Comment struct {
	Author  string `json:"author"`
	Message string `json:"message"`
}

type Record struct {
	ID          int       `json:"id"`
	Author      string    `json:"author"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Comments    []Comment `json:"comments"`
}

// RecordMap is the full record set keyed by record id. It is the unit of
// persistence: backends load and save it whole.
type RecordMap map[int]Record

// Clone returns a deep copy. Comments slices are copied so callers can
// hand clones across goroutine boundaries.
func (m RecordMap) Clone() RecordMap {
	out := make(RecordMap, len(m))
	for id, rec := range m {
		comments := make([]Comment, len(rec.Comments))
		copy(comments, rec.Comments)
		rec.Comments = comments
		out[id] = rec
	}
	return out
}
