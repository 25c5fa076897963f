package docstore

import (
	"errors"
	"fmt"
)

// Operation names, as reported in OpError.Op.
const (
	OpGetDocument     = "GetDocument"
	OpAddUser         = "AddUser"
	OpAddCartItem     = "AddCartItem"
	OpRemoveCartItem  = "RemoveCartItem"
	OpClearCart       = "ClearCart"
	OpAddPurchases    = "AddPurchases"
	OpReplaceUser     = "ReplaceUser"
	OpSetImage        = "SetImage"
	OpSetProfileImage = "SetProfileImage"
)

var (
	// ErrRead wraps any failure to load the document from the backend.
	ErrRead = errors.New("failed to read the document")

	ErrUserNotFound    = errors.New("user not found")
	ErrProductNotFound = errors.New("product not found in the shopping cart")

	// ErrMissingField and ErrInvalidInput are reported before the backend is touched.
	ErrMissingField = errors.New("missing required field")
	ErrInvalidInput = errors.New("invalid input")
)

// OpError tells which operation failed, and for which user.
// Use errors.Is against the sentinel errors above or those of the storage package.
type OpError struct {
	Op       string
	Username string
	Err      error
}

func (e *OpError) Error() string {
	if e.Username == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %q: %v", e.Op, e.Username, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, name)
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
