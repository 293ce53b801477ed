package user

// UpdateUserRequest is the user edit form. The username is read-only.
type UpdateUserRequest struct {
	Nickname string `json:"nickname" form:"nickname" binding:"max=50"`
	Email    string `json:"email" form:"email" binding:"required,email,max=255"`
}
