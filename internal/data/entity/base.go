package entity

import (
	"time"

	"github.com/google/uuid"
)

// BaseNoDelete is embedded by every transactional entity. Rows are never
// physically deleted; terminal statuses take the place of deletion.
type BaseNoDelete struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
