package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
)

const (
	flashCookieName     = "flash"
	lastCreatedFavorite = "last_created_fav"
)

// flashMessage is a one-shot notice shown on the next rendered page
type flashMessage struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// setFlash queues a message for the next page the client loads
func setFlash(w http.ResponseWriter, category, message string) {
	data, err := json.Marshal([]flashMessage{{Category: category, Message: message}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes returns the queued messages and clears them
func popFlashes(w http.ResponseWriter, r *http.Request) []flashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	clearCookie(w, flashCookieName)

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var messages []flashMessage
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil
	}
	return messages
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// rememberCreatedFavorite marks a folder to be pre-checked on the next paper page
func rememberCreatedFavorite(w http.ResponseWriter, id int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     lastCreatedFavorite,
		Value:    strconv.FormatInt(id, 10),
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popCreatedFavorite returns and clears the folder remembered by rememberCreatedFavorite
func popCreatedFavorite(w http.ResponseWriter, r *http.Request) int64 {
	cookie, err := r.Cookie(lastCreatedFavorite)
	if err != nil {
		return 0
	}
	clearCookie(w, lastCreatedFavorite)
	id, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
