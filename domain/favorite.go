package domain

import "time"

// Favorite bookmarks a series for a member. At most one per (user, series).
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SeriesID  string    `json:"series_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteView is a favorite together with the series it points at.
type FavoriteView struct {
	Favorite
	Series ActivitySeries `json:"series"`
}

// FavoriteState answers whether the viewer has favorited a series.
type FavoriteState struct {
	SeriesID  string `json:"series_id"`
	Favorited bool   `json:"favorited"`
}
