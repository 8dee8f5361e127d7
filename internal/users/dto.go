package users

// CreateUserRequest is the payload for creating an account.
type CreateUserRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required,max=120"`
	Role       string `json:"role" validate:"required"`
	Department string `json:"department" validate:"required,max=60"`
	ManagerID  *int64 `json:"manager_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateUserRequest carries partial account updates.
type UpdateUserRequest struct {
	Name       *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty" validate:"omitempty,max=60"`
	ManagerID  *int64  `json:"manager_id,omitempty" validate:"omitempty,gt=0"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// ListUsersRequest filters the account listing.
type ListUsersRequest struct {
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
	Limit      int     `json:"limit" validate:"gte=0,lte=1000"`
	Offset     int     `json:"offset" validate:"gte=0"`
}
