package models

import "github.com/arxiv-daily/internal/types"

// Paper is a normalized record read from a per-day JSON file
type Paper struct {
	ID         string    `json:"id"`
	TitleEN    string    `json:"title_en"`
	TitleZH    string    `json:"title_zh"`
	AbstractEN string    `json:"abstract_en"`
	AbstractZH string    `json:"abstract_zh"`
	SummaryEN  string    `json:"summary_en"`
	SummaryZH  string    `json:"summary_zh"`
	Comment    string    `json:"comment"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	ImagePath  string    `json:"image_path"`
	PDFPath    string    `json:"pdf_path"`
	PubDate    string    `json:"pub_date"`
	CreatedAt  string    `json:"created_at"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

// PaperCard is a paper prepared for display
type PaperCard struct {
	Paper

	// Date is the day file the paper was read from
	Date string `json:"date"`

	GitHubURL     string            `json:"github_url,omitempty"`
	ImageURL      string            `json:"image_url,omitempty"`
	ThumbSmallURL string            `json:"thumb_small_url,omitempty"`
	ThumbFullURL  string            `json:"thumb_full_url,omitempty"`
	PDFLink       string            `json:"pdf_link"`
	Similarity    *float64          `json:"similarity"`
	FilterGroup   types.FilterGroup `json:"filter_group,omitempty"`
	InFavorites   bool              `json:"in_favorites"`
}

// Title returns the title in lang, falling back to English
func (c *PaperCard) Title(lang types.Language) string {
	if lang == types.LanguageChinese && c.TitleZH != "" {
		return c.TitleZH
	}
	return c.TitleEN
}

// Abstract returns the abstract in lang, falling back to English
func (c *PaperCard) Abstract(lang types.Language) string {
	if lang == types.LanguageChinese && c.AbstractZH != "" {
		return c.AbstractZH
	}
	return c.AbstractEN
}

// Summary returns the summary in lang, falling back to the other language
func (c *PaperCard) Summary(lang types.Language) string {
	if lang == types.LanguageChinese {
		if c.SummaryZH != "" {
			return c.SummaryZH
		}
		return c.SummaryEN
	}
	if c.SummaryEN != "" {
		return c.SummaryEN
	}
	return c.SummaryZH
}
