// Package types provides common type definitions for the paper reader.
package types

// Language is a user interface language preference
type Language string

const (
	// LanguageEnglish is the default interface language
	LanguageEnglish Language = "en"
	// LanguageChinese shows translated titles and summaries where present
	LanguageChinese Language = "zh"
)

// ParseLanguage returns the language for a stored preference, defaulting to English
func ParseLanguage(s string) Language {
	switch Language(s) {
	case LanguageChinese:
		return LanguageChinese
	default:
		return LanguageEnglish
	}
}

// Valid reports whether the language is one the interface supports
func (l Language) Valid() bool {
	return l == LanguageEnglish || l == LanguageChinese
}

// FilterGroup is the tag bucket a paper falls into on the feed
type FilterGroup string

const (
	// GroupWhite holds papers matching a whitelisted tag and no blacklisted tag
	GroupWhite FilterGroup = "white"
	// GroupNeutral holds papers matching neither list
	GroupNeutral FilterGroup = "neutral"
	// GroupBlack holds papers matching a blacklisted tag
	GroupBlack FilterGroup = "black"
)

// DefaultCategories are the arXiv categories offered on the feed and settings pages
var DefaultCategories = []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}

// DateLayout is the layout of per-day data files and history dates
const DateLayout = "2006-01-02"

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
