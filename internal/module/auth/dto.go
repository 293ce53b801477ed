package auth

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
	Return   string `form:"return"`
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Username        string `form:"username" binding:"required,min=3,max=50"`
	Password        string `form:"password" binding:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" binding:"required"`
}
