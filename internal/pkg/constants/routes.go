package constants

// Static route constants
const (
	APIPrefix   = "/api/v1"
	PublicRoute = "/"
	// Proof photo route prefix without leading slash for URL construction
	ProofsPath = "proofs"
)
