package profiling

// ProfileError describes why a profile was dropped. The value is used as the outcome reason.
type ProfileError string

// Reasons for dropping a profile.
const (
	ErrInvalidJSON                ProfileError = "profiling_invalid_json"
	ErrMissingProfileMetadata     ProfileError = "profiling_invalid_profile_metadata"
	ErrInvalidDebugMeta           ProfileError = "profiling_invalid_debug_meta"
	ErrNoTransactionAssociated    ProfileError = "profiling_no_transaction_associated"
	ErrInvalidTransactionMetadata ProfileError = "profiling_invalid_transaction_metadata"
	ErrNotEnoughSamples           ProfileError = "profiling_not_enough_samples"
	ErrMalformedSamples           ProfileError = "profiling_malformed_samples"
	ErrMalformedStacks            ProfileError = "profiling_malformed_stacks"
	ErrCannotSerializePayload     ProfileError = "profiling_failed_serialization"
)

func (e ProfileError) Error() string {
	return string(e)
}
