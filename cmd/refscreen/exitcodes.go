package main

// Exit codes used across all commands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (not a repository, invalid settings)
	ExitDataError   = 3 // Data error (malformed records, consistency violation)
	ExitSampleSize  = 4 // Pending dedup batch exceeds the sample ceiling
	ExitLocked      = 5 // Record store is locked by another operation
)
