package dto

import "time"

type CreateProfileRequest struct {
	Name string `json:"name"`
}

type ProfileResponse struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateTopicRequest struct {
	Name      string `json:"name"`
	TopicType string `json:"topic_type"`
}

type TopicResponse struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Name      string    `json:"name"`
	TopicType string    `json:"topic_type"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TopicListResponse struct {
	Topics []TopicResponse `json:"topics"`
}

type CreateItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ItemResponse struct {
	ID          int64     `json:"id"`
	TopicID     int64     `json:"topic_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ItemListResponse struct {
	Items []ItemResponse `json:"items"`
}

type GrantAccessorRequest struct {
	UserID   int64 `json:"user_id"`
	CanWrite bool  `json:"can_write"`
}

type AccessorResponse struct {
	ID         int64     `json:"id"`
	ProfileID  int64     `json:"profile_id"`
	UserID     int64     `json:"user_id"`
	CanWrite   bool      `json:"can_write"`
	IsAccepted bool      `json:"is_accepted"`
	CreatedAt  time.Time `json:"created_at"`
}

type AccessorListResponse struct {
	Accessors []AccessorResponse `json:"accessors"`
}
