// Package database provides the data access layer for the application.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	├── books/           # Catalog: CRUD, search, copy counters
//	├── users/           # Member accounts and filters
//	├── borrows/         # Borrow ledger and sweep queries
//	├── reviews/         # Reviews, helpful votes, reports
//	├── settings/        # Key/value settings (schedules, sweep status)
//	└── audit/           # Audit trail
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	db, err := database.NewDatabase("./e-library.db")
//
//	booksRepo := books.NewRepository(db.DB)
//	borrowRepo := borrows.NewRepository(db.DB)
//
//	book, err := booksRepo.GetByID(42)
//
// # Transactions
//
// Repositories that take part in the borrow lifecycle expose WithTx, which
// returns a copy bound to a transaction:
//
//	err := db.DB.Transaction(func(tx *gorm.DB) error {
//		if err := borrowRepo.WithTx(tx).Create(record); err != nil {
//			return err
//		}
//		_, err := booksRepo.WithTx(tx).DecrementAvailable(record.BookID)
//		return err
//	})
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add the entity to the AutoMigrate list in database.go
package database
