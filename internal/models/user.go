// Package models provides the persistent row types of the reader and the
// paper card rendered by the pages.
package models

import (
	"github.com/arxiv-daily/internal/types"
)

// User represents an account. Password holds a bcrypt hash.
type User struct {
	ID                 int64          `json:"id" db:"id"`
	Username           string         `json:"username" db:"username"`
	Password           string         `json:"-" db:"password"`
	LanguagePreference types.Language `json:"languagePreference" db:"language_preference"`
}

// Language returns the user's UI language, defaulting to English
func (u *User) Language() types.Language {
	if u == nil || !u.LanguagePreference.Valid() {
		return types.LanguageEnglish
	}
	return u.LanguagePreference
}
