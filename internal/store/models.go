package store

import "time"

type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

type Project struct {
	ID          int64
	Name        string
	Description string
	Status      string
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Contract struct {
	ID        int64
	ProjectID int64
	Title     string
	Content   string
	WordCount int
	Status    string
	CreatedBy int64
	LockedBy  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Comment struct {
	ID         int64
	ContractID int64
	UserID     int64
	Body       string
	LineNumber *int
	Resolved   bool
	CreatedAt  time.Time
}
