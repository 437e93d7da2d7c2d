package users

import "time"

// UserRecord maps a client IP address to the username it last chose.
type UserRecord struct {
	IP        string    `gorm:"primarykey;size:64" json:"ip"`
	Username  string    `gorm:"size:30;not null" json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for UserRecord model.
func (UserRecord) TableName() string {
	return "users"
}
