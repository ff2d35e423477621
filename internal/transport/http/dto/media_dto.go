package dto

import "time"

type MediaResponse struct {
	ID          int64     `json:"id"`
	ProfileID   int64     `json:"profile_id"`
	ContentType string    `json:"content_type"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

type MediaListResponse struct {
	Media []MediaResponse `json:"media"`
}
