package extract

import "errors"

// Extraction errors. Callers match them with errors.Is.
var (
	// ErrAuthentication is returned when the view redirected to a login page.
	// It is never retried here; the caller owns re-authentication.
	ErrAuthentication = errors.New("authentication required")

	// ErrScrapeParse is returned when no selector candidate recognizes the
	// page structure. It is distinct from an empty view.
	ErrScrapeParse = errors.New("page structure not recognized")

	// ErrNetwork is returned once transient navigation failures exhaust the
	// retry budget.
	ErrNetwork = errors.New("network failure")

	// errStillLoading marks a view whose loading placeholders never cleared.
	errStillLoading = errors.New("view still loading")
)
