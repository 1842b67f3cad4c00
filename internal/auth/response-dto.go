package auth

import "time"

// represents the login response
type AuthResponse struct {
	Account     AccountResponse `json:"account"`
	AccessToken string          `json:"access_token"`
	ExpiresIn   int64           `json:"expires_in"`
}

// account data without the password hash
type AccountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func ToAccountResponse(a *Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID.String(),
		Name:      a.Name,
		Email:     a.Email,
		Role:      string(a.Role),
		CreatedAt: a.CreatedAt,
	}
}
