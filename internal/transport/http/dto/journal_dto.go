package dto

import "time"

type CreateEntryRequest struct {
	Text  string `json:"text"`
	Emoji string `json:"emoji"`
}

type EntryResponse struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Text      string    `json:"text"`
	Emoji     string    `json:"emoji,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type EntryListResponse struct {
	Entries []EntryResponse `json:"entries"`
}
