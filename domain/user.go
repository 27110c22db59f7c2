package domain

const (
	RoleRecipient = "recipient"
	RoleAdmin     = "admin"
)

type User struct {
	ID          int64  `json:"id" db:"id"`
	Username    string `json:"username" db:"username"`
	Email       string `json:"email" db:"email"`
	Password    string `json:"password,omitempty" db:"password"`
	Phone       string `json:"phone,omitempty" db:"phone"`
	DateOfBirth string `json:"date_of_birth,omitempty" db:"dateofbirth"`
	Address     string `json:"address,omitempty" db:"address"`
	Gender      string `json:"gender,omitempty" db:"gender"`
	Role        string `json:"role" db:"role"`
	HospitalID  *int64 `json:"hospital_id,omitempty" db:"hospital_id"`
	CreatedAt   string `json:"created_at,omitempty" db:"created_at"`
}

// Profile holds the mutable recipient fields keyed by Email.
type Profile struct {
	Name        string
	Email       string
	Phone       string
	DateOfBirth string
	Address     string
	Gender      string
}

// Admin is the acting administrator. A nil HospitalID means the admin is
// not bound to a hospital and may act on all of them.
type Admin struct {
	UserID     int64
	HospitalID *int64
}

type UserMessage struct {
	ID             int64  `db:"id" json:"id"`
	FromHospitalID int64  `db:"from_hospital_id" json:"from_hospital_id"`
	ToUserID       int64  `db:"to_user_id" json:"to_user_id"`
	Message        string `db:"message" json:"message"`
	SentAt         string `db:"sent_at" json:"sent_at"`
	IsRead         bool   `db:"is_read" json:"is_read"`
}
