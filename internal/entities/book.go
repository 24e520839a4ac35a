package entities

import "time"

type Category string

const (
	CategoryFiction    Category = "Fiction"
	CategoryNonFiction Category = "Non-Fiction"
	CategoryScience    Category = "Science"
	CategoryTechnology Category = "Technology"
	CategoryHistory    Category = "History"
	CategoryBiography  Category = "Biography"
	CategoryEducation  Category = "Education"
	CategoryLiterature Category = "Literature"
	CategoryBusiness   Category = "Business"
	CategoryHealth     Category = "Health"
	CategoryArts       Category = "Arts"
	CategoryReligion   Category = "Religion"
	CategoryPhilosophy Category = "Philosophy"
	CategoryOther      Category = "Other"
)

// Categories lists every catalog category in display order.
var Categories = []Category{
	CategoryFiction, CategoryNonFiction, CategoryScience, CategoryTechnology,
	CategoryHistory, CategoryBiography, CategoryEducation, CategoryLiterature,
	CategoryBusiness, CategoryHealth, CategoryArts, CategoryReligion,
	CategoryPhilosophy, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ShelfLocation is where the physical copies live inside the library.
type ShelfLocation struct {
	Shelf   string `gorm:"size:50" json:"shelf,omitempty"`
	Section string `gorm:"size:50" json:"section,omitempty"`
}

type Book struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Title           string        `gorm:"index;size:200;not null" json:"title"`
	Author          string        `gorm:"index;size:100;not null" json:"author"`
	ISBN            string        `gorm:"uniqueIndex;size:17;not null" json:"isbn"`
	Publisher       string        `gorm:"size:100" json:"publisher,omitempty"`
	PublishedYear   int           `json:"published_year,omitempty"`
	Category        Category      `gorm:"index;size:30;not null" json:"category"`
	Description     string        `gorm:"size:1000" json:"description,omitempty"`
	TotalCopies     int           `gorm:"not null;default:1" json:"total_copies"`
	AvailableCopies int           `gorm:"not null" json:"available_copies"`
	Language        string        `gorm:"size:50;default:English" json:"language"`
	Pages           int           `json:"pages,omitempty"`
	CoverImage      string        `gorm:"size:2048" json:"cover_image,omitempty"`
	Location        ShelfLocation `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	IsActive        bool          `gorm:"index;default:true" json:"is_active"`
	AddedBy         uint          `json:"added_by,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// BorrowedCopies is the number of copies currently out on loan.
func (b Book) BorrowedCopies() int {
	return b.TotalCopies - b.AvailableCopies
}
