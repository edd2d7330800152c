package settlement

import "time"

// Snapshot is a saved settlement: the aggregation payload frozen at
// save time, so later fee or data changes never rewrite past books.
type Snapshot struct {
	ID        int64     `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Title     string    `json:"title"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Payload   []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotTitle builds the canonical title for a period, e.g.
// "2024-03-01_2024-03-31".
func SnapshotTitle(p Period) string {
	return p.StartDate() + "_" + p.EndDate()
}
