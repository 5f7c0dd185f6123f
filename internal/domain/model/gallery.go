package model

import "time"

// Photo is a single stored image. MediaKey identifies the object at the media host.
type Photo struct {
	ID          string    `json:"id"`
	MediaURL    string    `json:"mediaUrl"`
	MediaKey    string    `json:"mediaKey"`
	Description string    `json:"description"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Batch groups the photos created by one upload call, in upload order.
type Batch struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	PhotoIDs    []string  `json:"photoIds"`
	Comments    []Comment `json:"comments"`
	CreatedAt   time.Time `json:"createdAt"`
}
