package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleAdmin   UserRole = "admin"
)

// User is the identity supplied by the upstream auth layer. Nothing here is persisted
// by this service.
type User struct {
	ID       string   `json:"id"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Role     UserRole `json:"role"`

	// Candidate category used for category-wise cutoffs
	Category string `json:"category,omitempty"`

	AvatarURL *string `json:"avatar_url,omitempty"`
}
