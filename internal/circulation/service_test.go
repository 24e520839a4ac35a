package circulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mrlokans/elibrary/internal/apperrors"
	"github.com/mrlokans/elibrary/internal/entities"
)

func TestBorrow_CreatesRecordAndTakesCopy(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 2)

	record, err := svc.Borrow(context.Background(), actorOf(env.reader), BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	assert.Equal(t, entities.BorrowStatusBorrowed, record.Status)
	assert.Equal(t, env.reader.ID, record.UserID)
	assert.Equal(t, env.reader.ID, record.IssuedBy)
	assert.True(t, record.DueDate.After(record.BorrowDate))
	require.NotNil(t, record.Book)
	assert.Equal(t, "Dune", record.Book.Title)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	require.Len(t, env.auditor.borrows, 1)
	assert.NoError(t, env.auditor.borrows[0])
}

func TestBorrow_SecondBorrowOfSameBookRejected(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 3)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, actorOf(env.reader), BorrowRequest{BookID: book.ID})
	require.NoError(t, err)

	_, err = svc.Borrow(ctx, actorOf(env.reader), BorrowRequest{BookID: book.ID})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "already have this book")
	assert.Equal(t, 2, env.reloadBook(t, book.ID).AvailableCopies)

	var active int64
	require.NoError(t, env.db.Model(&entities.BorrowRecord{}).
		Where("user_id = ? AND book_id = ?", env.reader.ID, book.ID).Count(&active).Error)
	assert.Equal(t, int64(1), active)
}

func TestBorrow_LoanLimit(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		book := env.createBook(t, fmt.Sprintf("Book %d", i), 1)
		_, err := svc.Borrow(ctx, actorOf(env.reader), BorrowRequest{BookID: book.ID})
		require.NoError(t, err)
	}

	sixth := env.createBook(t, "Sixth", 1)
	_, err := svc.Borrow(ctx, actorOf(env.reader), BorrowRequest{BookID: sixth.ID})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "maximum borrowing limit (5 books)")
	assert.Equal(t, 1, env.reloadBook(t, sixth.ID).AvailableCopies)
}

func TestBorrow_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	ctx := context.Background()

	shelf := env.createBook(t, "On shelf", 1)
	empty := env.createBook(t, "All out", 1)
	require.NoError(t, env.db.Model(empty).UpdateColumn("available_copies", 0).Error)
	retired := env.createBook(t, "Withdrawn", 1)
	require.NoError(t, env.db.Model(retired).UpdateColumn("is_active", false).Error)

	inactive := env.createUser(t, "Gone", "gone@example.com", entities.RoleUser)
	require.NoError(t, env.db.Model(inactive).UpdateColumn("is_active", false).Error)

	tests := []struct {
		name  string
		actor entities.Actor
		req   BorrowRequest
		kind  apperrors.Kind
	}{
		{"missing book", actorOf(env.reader), BorrowRequest{BookID: 9999}, apperrors.KindNotFound},
		{"inactive book", actorOf(env.reader), BorrowRequest{BookID: retired.ID}, apperrors.KindNotFound},
		{"no copies left", actorOf(env.reader), BorrowRequest{BookID: empty.ID}, apperrors.KindConflict},
		{"due date in the past", actorOf(env.reader), BorrowRequest{BookID: shelf.ID, DueDate: time.Now().Add(-time.Hour)}, apperrors.KindValidation},
		{"deactivated account", actorOf(inactive), BorrowRequest{BookID: shelf.ID}, apperrors.KindForbidden},
		{"on behalf of someone else", actorOf(env.reader), BorrowRequest{BookID: shelf.ID, UserID: env.admin.ID}, apperrors.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Borrow(ctx, tt.actor, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
		})
	}

	assert.Equal(t, 1, env.reloadBook(t, shelf.ID).AvailableCopies)
}

func TestBorrow_AdminOnBehalfOfUser(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 1)
	due := time.Now().Add(21 * Day)

	record, err := svc.Borrow(context.Background(), actorOf(env.admin),
		BorrowRequest{UserID: env.reader.ID, BookID: book.ID, DueDate: due})
	require.NoError(t, err)

	assert.Equal(t, env.reader.ID, record.UserID)
	assert.Equal(t, env.admin.ID, record.IssuedBy)
	assert.True(t, record.DueDate.Equal(due.UTC()))
}

func TestReturn_LateReturnChargesFine(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now()
	svc := env.service(WithClock(func() time.Time { return now }))
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, now.Add(-7*Day+time.Minute))

	returned, err := svc.Return(context.Background(), actorOf(env.reader), record.ID, ReturnRequest{})
	require.NoError(t, err)

	assert.Equal(t, entities.BorrowStatusReturned, returned.Status)
	assert.Equal(t, 35.0, returned.Fine.Amount)
	require.NotNil(t, returned.ReturnDate)
	require.NotNil(t, returned.ReturnedBy)
	assert.Equal(t, env.reader.ID, *returned.ReturnedBy)
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)

	stored := env.reloadRecord(t, record.ID)
	assert.Equal(t, entities.BorrowStatusReturned, stored.Status)
	assert.Equal(t, 35.0, stored.Fine.Amount)

	confirmations := env.notifier.notices("returned")
	require.Len(t, confirmations, 1)
	assert.Equal(t, record.ID, confirmations[0].recordID)
	assert.Equal(t, 1, env.auditor.returns)
}

func TestReturn_ManualFine(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now()
	svc := env.service(WithClock(func() time.Time { return now }))
	ctx := context.Background()

	t.Run("on time return keeps manual fine", func(t *testing.T) {
		book := env.createBook(t, "On time", 1)
		record := env.insertLoan(t, env.reader, book, now.Add(5*Day))
		fine := 12.5

		returned, err := svc.Return(ctx, actorOf(env.admin), record.ID, ReturnRequest{ManualFine: &fine, Condition: entities.ConditionDamaged})
		require.NoError(t, err)
		assert.Equal(t, 12.5, returned.Fine.Amount)
		assert.Equal(t, entities.ConditionDamaged, returned.Condition)
	})

	t.Run("late return takes the larger amount", func(t *testing.T) {
		book := env.createBook(t, "Late", 1)
		record := env.insertLoan(t, env.reader, book, now.Add(-3*Day+time.Minute))
		fine := 10.0

		returned, err := svc.Return(ctx, actorOf(env.admin), record.ID, ReturnRequest{ManualFine: &fine})
		require.NoError(t, err)
		assert.Equal(t, 15.0, returned.Fine.Amount)
	})

	t.Run("only admins assess fines", func(t *testing.T) {
		book := env.createBook(t, "Self assessed", 1)
		record := env.insertLoan(t, env.reader, book, now.Add(5*Day))
		fine := 1.0

		_, err := svc.Return(ctx, actorOf(env.reader), record.ID, ReturnRequest{ManualFine: &fine})
		assert.True(t, apperrors.Is(err, apperrors.KindForbidden))
	})

	t.Run("negative fine rejected", func(t *testing.T) {
		book := env.createBook(t, "Negative", 1)
		record := env.insertLoan(t, env.reader, book, now.Add(5*Day))
		fine := -1.0

		_, err := svc.Return(ctx, actorOf(env.admin), record.ID, ReturnRequest{ManualFine: &fine})
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	})
}

func TestReturn_Rejections(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	ctx := context.Background()
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, time.Now().Add(5*Day))
	stranger := env.createUser(t, "Stranger", "stranger@example.com", entities.RoleUser)

	_, err := svc.Return(ctx, actorOf(env.reader), 9999, ReturnRequest{})
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.Return(ctx, actorOf(stranger), record.ID, ReturnRequest{})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = svc.Return(ctx, actorOf(env.reader), record.ID, ReturnRequest{Condition: "shredded"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.Return(ctx, actorOf(env.reader), record.ID, ReturnRequest{})
	require.NoError(t, err)

	_, err = svc.Return(ctx, actorOf(env.reader), record.ID, ReturnRequest{})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Equal(t, 1, env.reloadBook(t, book.ID).AvailableCopies)
}

func TestReturn_NotificationFailureIsNotSurfaced(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, time.Now().Add(5*Day))
	env.notifier.failOn[record.ID] = true

	returned, err := svc.Return(context.Background(), actorOf(env.reader), record.ID, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, entities.BorrowStatusReturned, returned.Status)
	assert.Empty(t, env.notifier.notices("returned"))
}

func TestRenew_ExtendsDueDate(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 1)
	due := time.Now().Add(2 * Day).UTC()
	record := env.insertLoan(t, env.reader, book, due)

	renewed, err := svc.Renew(context.Background(), actorOf(env.reader), record.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, renewed.RenewalCount)
	assert.Equal(t, entities.BorrowStatusBorrowed, renewed.Status)
	assert.True(t, renewed.DueDate.Equal(due.AddDate(0, 0, 14)))
	assert.True(t, env.reloadRecord(t, record.ID).DueDate.Equal(due.AddDate(0, 0, 14)))
	assert.Equal(t, 1, env.auditor.renews)
}

func TestRenew_LimitReachedRegardlessOfDueDate(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, time.Now().Add(30*Day))
	require.NoError(t, env.db.Model(record).UpdateColumn("renewal_count", 2).Error)

	_, err := svc.Renew(context.Background(), actorOf(env.reader), record.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "Maximum renewal limit")
}

func TestRenew_PastDueRejected(t *testing.T) {
	env := setupTestEnv(t)
	due := time.Now().Add(time.Hour)
	svc := env.service(WithClock(func() time.Time { return due.Add(time.Hour) }))
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, due)

	_, err := svc.Renew(context.Background(), actorOf(env.reader), record.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "Cannot renew overdue books")
	assert.Equal(t, 0, env.reloadRecord(t, record.ID).RenewalCount)
}

func TestRenew_OverdueStatusRejected(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, time.Now().Add(-2*Day))

	_, err := svc.Renew(context.Background(), actorOf(env.reader), record.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestRenew_AdminNeedsPolicy(t *testing.T) {
	env := setupTestEnv(t)
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, time.Now().Add(5*Day))

	_, err := env.service().Renew(context.Background(), actorOf(env.admin), record.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	policy := DefaultPolicy()
	policy.AdminCanRenew = true
	svc := NewService(env.db, policy, env.notifier)
	renewed, err := svc.Renew(context.Background(), actorOf(env.admin), record.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, renewed.RenewalCount)
}

func TestPayFine(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now()
	svc := env.service(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	book := env.createBook(t, "Dune", 1)
	record := env.insertLoan(t, env.reader, book, now.Add(-2*Day+time.Minute))

	_, err := svc.PayFine(ctx, actorOf(env.admin), record.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict), "unreturned loan")

	_, err = svc.Return(ctx, actorOf(env.reader), record.ID, ReturnRequest{})
	require.NoError(t, err)

	_, err = svc.PayFine(ctx, actorOf(env.reader), record.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	paid, err := svc.PayFine(ctx, actorOf(env.admin), record.ID)
	require.NoError(t, err)
	assert.True(t, paid.Fine.Paid)
	require.NotNil(t, paid.Fine.PaidDate)
	assert.Equal(t, 10.0, paid.Fine.Amount)

	_, err = svc.PayFine(ctx, actorOf(env.admin), record.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.Contains(t, err.Error(), "already paid")
	assert.Equal(t, 1, env.auditor.paid)
}

func TestListAndOverdue(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	ctx := context.Background()
	now := time.Now()

	onTime := env.insertLoan(t, env.reader, env.createBook(t, "On time", 1), now.Add(5*Day))
	late := env.insertLoan(t, env.reader, env.createBook(t, "Late", 1), now.Add(-3*Day))
	env.forceBorrowed(t, late.ID)

	overdue, err := svc.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].ID)

	records, total, err := svc.List(ctx, ListFilter{OverdueOnly: true, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)

	records, total, err = svc.List(ctx, ListFilter{Status: entities.BorrowStatusBorrowed})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, records, 2)

	mine, err := svc.MyBooks(ctx, env.reader.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.ElementsMatch(t, []uint{onTime.ID, late.ID}, []uint{mine[0].ID, mine[1].ID})
}

// Random borrow/return sequences never push the copy counter out of range.
func TestCopyCounter_StaysInBounds(t *testing.T) {
	env := setupTestEnv(t)
	svc := env.service()
	ctx := context.Background()

	readers := []*entities.User{env.reader, env.admin}
	for i := 0; i < 3; i++ {
		readers = append(readers, env.createUser(t, fmt.Sprintf("Reader %d", i), fmt.Sprintf("r%d@example.com", i), entities.RoleUser))
	}
	book := env.createBook(t, "Popular", 2)

	rapid.Check(t, func(rt *rapid.T) {
		require.NoError(rt, env.db.Exec("DELETE FROM borrow_records").Error)
		require.NoError(rt, env.db.Model(book).UpdateColumn("available_copies", book.TotalCopies).Error)

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			reader := readers[rapid.IntRange(0, len(readers)-1).Draw(rt, "reader")]
			actor := actorOf(reader)

			if rapid.Bool().Draw(rt, "borrow") {
				_, _ = svc.Borrow(ctx, actor, BorrowRequest{BookID: book.ID})
			} else {
				var active entities.BorrowRecord
				err := env.db.Where("user_id = ? AND book_id = ? AND status IN ?",
					reader.ID, book.ID, entities.ActiveBorrowStatuses).First(&active).Error
				if err == nil {
					_, err = svc.Return(ctx, actor, active.ID, ReturnRequest{})
					require.NoError(rt, err)
				}
			}

			current := env.reloadBook(t, book.ID)
			var out int64
			require.NoError(rt, env.db.Model(&entities.BorrowRecord{}).
				Where("book_id = ? AND status IN ?", book.ID, entities.ActiveBorrowStatuses).Count(&out).Error)

			if current.AvailableCopies < 0 || current.AvailableCopies > current.TotalCopies {
				rt.Fatalf("available copies %d out of [0, %d]", current.AvailableCopies, current.TotalCopies)
			}
			if int64(current.TotalCopies-current.AvailableCopies) != out {
				rt.Fatalf("%d copies out but %d active records", current.TotalCopies-current.AvailableCopies, out)
			}
		}
	})
}
