package catalog

import (
	"fmt"
	"strings"
)

/*
Errors that can be returned by the catalog package. Dataset shape problems
are fatal for the load that hit them: no partial dataset is ever returned.
*/

////////////////////////////////////////////////////////////////////////////////

// MalformedDatasetError is returned when a dataset does not satisfy the
// record shape contract - missing required columns, inconsistent field
// counts, or a payload whose size is not a whole number of records.
type MalformedDatasetError struct {
	reason string
}

// Error returns a string representation of the error.
func (e MalformedDatasetError) Error() string {
	return fmt.Sprintf("malformed dataset: %s", e.reason)
}

// Is returns true if the target error is a MalformedDatasetError.
func (e MalformedDatasetError) Is(target error) bool {
	_, ok := target.(MalformedDatasetError)
	return ok
}

func newMissingColumnsError(missing []string) error {
	return MalformedDatasetError{
		reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
	}
}

func newFieldCountError(row int, want int, got int) error {
	return MalformedDatasetError{
		reason: fmt.Sprintf("record %d has %d extra fields, layout requires %d", row, got, want),
	}
}

func newPayloadSizeError(size int, stride int) error {
	return MalformedDatasetError{
		reason: fmt.Sprintf("payload size %d is not a multiple of record stride %d", size, stride),
	}
}

func newBadValueError(row int, column string, value string) error {
	return MalformedDatasetError{
		reason: fmt.Sprintf("row %d column %q: cannot parse %q as float", row, column, value),
	}
}
