package backend

// Wire types for the coordination backend REST API. Field names follow the
// backend's camelCase JSON.

// User is the application user record owned by the backend, keyed by email.
type User struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Avatar     string `json:"avatar,omitempty"`
	Role       string `json:"role"`
	Status     string `json:"status"`
	BloodGroup string `json:"bloodGroup,omitempty"`
	District   string `json:"district,omitempty"`
	Upazila    string `json:"upazila,omitempty"`
}

// User status values recognized by the backend.
const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// DonationRequest is a donation request as listed by the backend.
type DonationRequest struct {
	ID            string `json:"_id"`
	RequesterName string `json:"requesterName"`
	RecipientName string `json:"recipientName"`
	BloodGroup    string `json:"bloodGroup"`
	District      string `json:"district"`
	Upazila       string `json:"upazila"`
	Hospital      string `json:"hospital"`
	DonationDate  string `json:"donationDate"`
	DonationTime  string `json:"donationTime"`
	Status        string `json:"status"`
}

// Blog is a published content entry.
type Blog struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}
