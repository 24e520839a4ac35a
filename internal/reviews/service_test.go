package reviews

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"pgregory.net/rapid"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/database"
	"github.com/mrlokans/elibrary/internal/entities"
)

func TestSummarize(t *testing.T) {
	stats := Summarize([]int{5, 4, 3})

	assert.Equal(t, 4.0, stats.AverageRating)
	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, map[int]int{1: 0, 2: 0, 3: 1, 4: 1, 5: 1}, stats.Distribution)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)

	assert.Zero(t, stats.AverageRating)
	assert.Zero(t, stats.TotalReviews)
	assert.Len(t, stats.Distribution, 5)
}

func TestSummarize_RoundsToOneDecimal(t *testing.T) {
	assert.Equal(t, 4.7, Summarize([]int{5, 5, 4}).AverageRating)
	assert.Equal(t, 3.3, Summarize([]int{5, 4, 1}).AverageRating)
}

func TestSummarize_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ratings := rapid.SliceOfN(rapid.IntRange(1, 5), 1, 200).Draw(t, "ratings")
		stats := Summarize(ratings)

		sum := 0
		for r := 1; r <= 5; r++ {
			sum += stats.Distribution[r]
		}
		if sum != len(ratings) || stats.TotalReviews != len(ratings) {
			t.Fatalf("distribution counts %d of %d ratings", sum, len(ratings))
		}
		if stats.AverageRating < 1 || stats.AverageRating > 5 {
			t.Fatalf("average %v out of range", stats.AverageRating)
		}
		if scaled := stats.AverageRating * 10; math.Abs(scaled-math.Round(scaled)) > 1e-9 {
			t.Fatalf("average %v has more than one decimal", stats.AverageRating)
		}
	})
}

type fixture struct {
	db     *gorm.DB
	svc    *Service
	book   *entities.Book
	author entities.Actor
	reader entities.Actor
	admin  entities.Actor
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	users := []*entities.User{
		{Name: "Author", Email: "author@example.com", Role: entities.RoleUser},
		{Name: "Reader", Email: "reader@example.com", Role: entities.RoleUser},
		{Name: "Admin", Email: "admin@example.com", Role: entities.RoleAdmin},
	}
	for _, u := range users {
		require.NoError(t, db.DB.Create(u).Error)
	}
	book := &entities.Book{Title: "Dune", Author: "Frank Herbert", ISBN: "9780441172719",
		Category: entities.CategoryFiction, TotalCopies: 1, AvailableCopies: 1, IsActive: true}
	require.NoError(t, db.DB.Create(book).Error)

	return fixture{
		db:     db.DB,
		svc:    NewService(db.DB),
		book:   book,
		author: entities.Actor{UserID: users[0].ID, Role: entities.RoleUser},
		reader: entities.Actor{UserID: users[1].ID, Role: entities.RoleUser},
		admin:  entities.Actor{UserID: users[2].ID, Role: entities.RoleAdmin},
	}
}

func (f fixture) create(t *testing.T, actor entities.Actor, rating int) *entities.Review {
	t.Helper()
	review, err := f.svc.Create(context.Background(), actor, CreateRequest{
		BookID:  f.book.ID,
		Rating:  rating,
		Title:   "A solid read",
		Comment: "Worth the time it takes to finish.",
	})
	require.NoError(t, err)
	return review
}

func TestCreate_DuplicateRejected(t *testing.T) {
	f := setup(t)
	review := f.create(t, f.author, 5)
	require.NotNil(t, review.User)
	assert.Equal(t, "Author", review.User.Name)

	_, err := f.svc.Create(context.Background(), f.author, CreateRequest{
		BookID: f.book.ID, Rating: 1, Title: "Changed my mind", Comment: "Second thoughts on this one.",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Create(context.Background(), f.author, CreateRequest{BookID: f.book.ID, Rating: 6, Title: "Hi", Comment: "short"})
	require.Error(t, err)
	ae, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindValidation, ae.Kind)
	assert.Contains(t, ae.Fields, "rating")
	assert.Contains(t, ae.Fields, "title")
	assert.Contains(t, ae.Fields, "comment")
}

func TestCreate_MissingOrInactiveBook(t *testing.T) {
	f := setup(t)
	req := CreateRequest{Rating: 4, Title: "Good book", Comment: "Enjoyed every page."}

	req.BookID = 9999
	_, err := f.svc.Create(context.Background(), f.author, req)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	require.NoError(t, f.db.Model(f.book).UpdateColumn("is_active", false).Error)
	req.BookID = f.book.ID
	_, err = f.svc.Create(context.Background(), f.author, req)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestStats_OverApprovedReviews(t *testing.T) {
	f := setup(t)
	f.create(t, f.author, 5)
	f.create(t, f.reader, 4)
	hidden := f.create(t, f.admin, 3)
	require.NoError(t, f.db.Model(hidden).UpdateColumn("is_approved", false).Error)

	stats, err := f.svc.Stats(context.Background(), f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, 2, stats.TotalReviews)
	assert.Equal(t, 0, stats.Distribution[3])

	list, total, err := f.svc.ListByBook(context.Background(), f.book.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)
}

func TestMarkHelpful(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	review := f.create(t, f.author, 5)

	_, err := f.svc.MarkHelpful(ctx, f.author, review.ID, true)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	count, err := f.svc.MarkHelpful(ctx, f.reader, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = f.svc.MarkHelpful(ctx, f.reader, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "second vote from the same user replaces the first")

	count, err = f.svc.MarkHelpful(ctx, f.admin, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.svc.MarkHelpful(ctx, f.reader, review.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = f.svc.MarkHelpful(ctx, f.reader, 9999, true)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	review := f.create(t, f.author, 1)

	err := f.svc.Report(ctx, f.reader, review.ID, "boring")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	require.NoError(t, f.svc.Report(ctx, f.reader, review.ID, entities.ReportSpam))

	err = f.svc.Report(ctx, f.reader, review.ID, entities.ReportFake)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	var stored entities.Review
	require.NoError(t, f.db.First(&stored, review.ID).Error)
	assert.True(t, stored.IsReported)
}

func TestDelete_OwnerOrAdmin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	mine := f.create(t, f.author, 4)
	theirs := f.create(t, f.reader, 2)

	err := f.svc.Delete(ctx, f.author, theirs.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	require.NoError(t, f.svc.Delete(ctx, f.author, mine.ID))
	require.NoError(t, f.svc.Delete(ctx, f.admin, theirs.ID))

	left, err := f.svc.ListByUser(ctx, f.reader.UserID)
	require.NoError(t, err)
	assert.Empty(t, left)

	err = f.svc.Delete(ctx, f.admin, mine.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}
