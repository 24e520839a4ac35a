package entities

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex:idx_review_user_book;not null" json:"user_id"`
	BookID       uint      `gorm:"uniqueIndex:idx_review_user_book;index;not null" json:"book_id"`
	Rating       int       `gorm:"not null;check:rating >= 1 AND rating <= 5" json:"rating"`
	Title        string    `gorm:"size:100;not null" json:"title"`
	Comment      string    `gorm:"size:1000;not null" json:"comment"`
	IsApproved   bool      `gorm:"index;default:true" json:"is_approved"`
	HelpfulCount int       `gorm:"not null;default:0" json:"helpful_count"`
	IsReported   bool      `gorm:"not null;default:false" json:"is_reported"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Book *Book `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

// ReviewVote is one user's helpfulness vote on a review.
type ReviewVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ReviewID  uint      `gorm:"uniqueIndex:idx_vote_review_user;not null" json:"review_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_vote_review_user;not null" json:"user_id"`
	Helpful   bool      `gorm:"not null" json:"helpful"`
	CreatedAt time.Time `json:"created_at"`
}

type ReportReason string

const (
	ReportInappropriate ReportReason = "inappropriate"
	ReportSpam          ReportReason = "spam"
	ReportOffensive     ReportReason = "offensive"
	ReportFake          ReportReason = "fake"
	ReportOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReportInappropriate, ReportSpam, ReportOffensive, ReportFake, ReportOther:
		return true
	}
	return false
}

type ReviewReport struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	ReviewID  uint         `gorm:"uniqueIndex:idx_report_review_user;not null" json:"review_id"`
	UserID    uint         `gorm:"uniqueIndex:idx_report_review_user;not null" json:"user_id"`
	Reason    ReportReason `gorm:"size:20;not null" json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
}
