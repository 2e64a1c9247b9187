package domain

// BuildDonationIdempotencyKey scopes a client reference id to its donor.
func BuildDonationIdempotencyKey(donor, referenceID string) string {
	return "donation:" + NormalizeAccount(donor) + ":" + referenceID
}
