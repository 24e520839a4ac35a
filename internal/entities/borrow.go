package entities

import (
	"time"

	"gorm.io/gorm"
)

type BorrowStatus string

const (
	BorrowStatusBorrowed BorrowStatus = "borrowed"
	BorrowStatusReturned BorrowStatus = "returned"
	BorrowStatusOverdue  BorrowStatus = "overdue"
)

// ActiveBorrowStatuses are the statuses of a record that still holds a copy.
var ActiveBorrowStatuses = []BorrowStatus{BorrowStatusBorrowed, BorrowStatusOverdue}

type BookCondition string

const (
	ConditionExcellent BookCondition = "excellent"
	ConditionGood      BookCondition = "good"
	ConditionFair      BookCondition = "fair"
	ConditionPoor      BookCondition = "poor"
	ConditionDamaged   BookCondition = "damaged"
)

func (c BookCondition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor, ConditionDamaged:
		return true
	}
	return false
}

type Fine struct {
	Amount   float64    `gorm:"not null;default:0" json:"amount"`
	Paid     bool       `gorm:"not null;default:false" json:"paid"`
	PaidDate *time.Time `json:"paid_date,omitempty"`
}

type BorrowRecord struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	UserID       uint          `gorm:"index;not null" json:"user_id"`
	BookID       uint          `gorm:"index;not null" json:"book_id"`
	BorrowDate   time.Time     `gorm:"not null" json:"borrow_date"`
	DueDate      time.Time     `gorm:"index;not null" json:"due_date"`
	ReturnDate   *time.Time    `json:"return_date,omitempty"`
	Status       BorrowStatus  `gorm:"index;size:20;not null" json:"status"`
	Fine         Fine          `gorm:"embedded;embeddedPrefix:fine_" json:"fine"`
	RenewalCount int           `gorm:"not null;default:0" json:"renewal_count"`
	Notes        string        `gorm:"size:500" json:"notes,omitempty"`
	Condition    BookCondition `gorm:"size:20" json:"condition,omitempty"`
	IssuedBy     uint          `json:"issued_by,omitempty"`
	ReturnedBy   *uint         `json:"returned_by,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`

	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (BorrowRecord) TableName() string {
	return "borrow_records"
}

// IsActive reports whether the record still holds a copy of the book.
func (r *BorrowRecord) IsActive() bool {
	return r.ReturnDate == nil && (r.Status == BorrowStatusBorrowed || r.Status == BorrowStatusOverdue)
}

// BeforeSave flips an unreturned record past its due date to overdue.
func (r *BorrowRecord) BeforeSave(tx *gorm.DB) error {
	if r.ReturnDate == nil && r.Status == BorrowStatusBorrowed && time.Now().After(r.DueDate) {
		r.Status = BorrowStatusOverdue
	}
	return nil
}
