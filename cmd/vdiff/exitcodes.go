package main

// Exit codes
const (
	ExitSuccess     = 0 // Success (including partial results, which are flagged in the output)
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing connection settings, invalid values)
	ExitRefNotFound = 3 // A ref does not exist
	ExitAuthError   = 4 // Token rejected
	ExitFetchError  = 5 // Server unreachable or failing
)
