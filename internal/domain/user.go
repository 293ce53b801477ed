package domain

// User is an account managed by the backend.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// RecordID implements listing.Record.
func (u User) RecordID() int64 { return u.ID }

// SessionUser is the identity returned by /api/user/current.
type SessionUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Nickname string `json:"nickname,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName prefers the nickname.
func (u SessionUser) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Username
}
