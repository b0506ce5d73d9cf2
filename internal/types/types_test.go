package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestParseLanguage(t *testing.T) {
	assert.Equal(t, LanguageChinese, ParseLanguage("zh"))
	assert.Equal(t, LanguageEnglish, ParseLanguage("en"))
	assert.Equal(t, LanguageEnglish, ParseLanguage(""))
	assert.Equal(t, LanguageEnglish, ParseLanguage("fr"))
}

func TestParseLanguageAlwaysValid(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parsed language is supported", prop.ForAll(
		func(s string) bool {
			return ParseLanguage(s).Valid()
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestServiceErrorMessage(t *testing.T) {
	err := &ServiceError{Code: "NOT_FOUND", Message: "Favorite not found."}
	assert.Equal(t, "Favorite not found.", err.Error())
}
