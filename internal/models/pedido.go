package models

import (
	"time"

	"github.com/google/uuid"
)

// Image is one stored photo attached to a pedido. RemoteID is the image
// store's handle, required to delete the object later.
type Image struct {
	URL      string `json:"url"`
	RemoteID string `json:"remote_id"`
}

type Pedido struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Description string
	Quantity    int
	Time        int
	Images      []Image
	Seq         int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
