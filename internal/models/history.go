package models

// HistoryEntry is the last-viewed paper and scroll position for one user and day
type HistoryEntry struct {
	UserID   int64  `json:"userId" db:"user_id"`
	PaperID  string `json:"paperId" db:"paper_id"`
	Date     string `json:"date" db:"date"`
	Position int    `json:"position" db:"position"`
}
