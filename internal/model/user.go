package model

import "time"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  UserAccount `json:"user"`
}

type UserAccount struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserSummary is the public listing shape. The password hash never leaves
// the db package, so there is no field for it to leak through.
type UserSummary struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

type AuthUser struct {
	ID       string
	Username string
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	DBStatus  string `json:"dbStatus"`
	Timestamp string `json:"timestamp"`
}
