package validation

const (
	// String lengths
	MaxNoteLength        = 255
	MaxDescriptionLength = 255
	MaxReferenceLength   = 128

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100
)
