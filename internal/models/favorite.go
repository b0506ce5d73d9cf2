package models

// Favorite is a named folder of papers owned by one user.
// Embedding is the mean of the member paper embeddings, nil when unknown.
type Favorite struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Embedding []float64 `json:"embedding,omitempty" db:"embedding"`
}

// FavoritePaper is one membership row
type FavoritePaper struct {
	FavoriteID int64  `json:"favoriteId" db:"favorite_id"`
	PaperID    string `json:"paperId" db:"paper_id"`
}

// FavoriteSimilarity describes a folder relative to one paper
type FavoriteSimilarity struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	HasPaper   bool     `json:"has_paper"`
	Similarity *float64 `json:"similarity"`
	IsTop      bool     `json:"is_top"`

	// AutoChecked marks the folder that was created just before the page was rendered
	AutoChecked bool `json:"auto_checked,omitempty"`
}
