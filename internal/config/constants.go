package config

// DefaultDatabasePath is the default path for the application database
const DefaultDatabasePath = "./e-library.db"

// Circulation policy defaults
const (
	DefaultFinePerDay     = 5.0
	DefaultMaxActiveLoans = 5
	DefaultMaxRenewals    = 2
	DefaultRenewalDays    = 14
)
