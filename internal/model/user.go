package model

// User is the authenticated client user as returned by the backend.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FullName  string `json:"full_name,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`
	CreatedAt Time   `json:"created_at,omitempty"`
}

// DisplayName returns the full name when known and the username otherwise.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// UserPatch carries a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	Username *string
	Email    *string
	FullName *string
}

// Apply merges the non-nil fields of p into u.
func (p UserPatch) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FullName != nil {
		u.FullName = *p.FullName
	}
	return u
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the register request body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// LoginResponse covers both login response shapes the backend may send:
// {user, token} and the OAuth-style {access_token, token_type}.
type LoginResponse struct {
	User        *User  `json:"user,omitempty"`
	Token       string `json:"token,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	TokenType   string `json:"token_type,omitempty"`
}

// BearerToken returns whichever token field the backend populated.
func (r LoginResponse) BearerToken() string {
	if r.Token != "" {
		return r.Token
	}
	return r.AccessToken
}

// StatusMessage is the generic {"message": ...} acknowledgement body.
type StatusMessage struct {
	Message string `json:"message"`
}
