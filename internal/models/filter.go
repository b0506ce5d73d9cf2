package models

import "time"

// TagFilter holds the tag whitelist and blacklist
type TagFilter struct {
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// UserFilter is a user's saved feed selection and resume cursor.
// HasRecord is false when the values are defaults and no row exists.
type UserFilter struct {
	UserID       int64     `json:"userId" db:"user_id"`
	Categories   []string  `json:"categories" db:"categories"`
	Tags         TagFilter `json:"tags" db:"tags"`
	SimFavorites []int64   `json:"simFavorites" db:"sim_favorites"`
	LastDate     string    `json:"lastDate,omitempty" db:"last_date"`
	LastPaperID  string    `json:"lastPaperId,omitempty" db:"last_paper_id"`
	LastPosition int       `json:"lastPosition" db:"last_position"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
	HasRecord    bool      `json:"-"`
}

// DefaultUserFilter returns the selection used when a user has no row
func DefaultUserFilter(userID int64) *UserFilter {
	return &UserFilter{
		UserID:       userID,
		Categories:   []string{},
		Tags:         TagFilter{Whitelist: []string{}, Blacklist: []string{}},
		SimFavorites: []int64{},
	}
}
