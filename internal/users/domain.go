package users

import (
	"time"

	"github.com/payflow-app/payflow/internal/shared"
)

// User represents a staff account. Role and department are plain data values
// consumed by the notification routing rules.
type User struct {
	ID         int64       `json:"id"`
	Email      string      `json:"email"`
	Name       string      `json:"name"`
	Role       shared.Role `json:"role"`
	Department string      `json:"department"`
	ManagerID  *int64      `json:"manager_id,omitempty"`
	IsActive   bool        `json:"is_active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
