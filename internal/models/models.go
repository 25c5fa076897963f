package models

// AddCartItemRequest is the body of POST /add-cart. The product may be any JSON value.
type AddCartItemRequest struct {
	Product Product `json:"product"`
}

// RemoveCartItemRequest is the body of POST /remove-cart. ID and Size are kept
// as decoded values because product ids may be numbers or strings.
type RemoveCartItemRequest struct {
	ID   any `json:"id"`
	Size any `json:"size"`
}

type AddPurchasesRequest struct {
	Products any `json:"products"`
}

type SetImageRequest struct {
	Image any `json:"image"`
}

type SetProfileImageRequest struct {
	ProfileImg any `json:"profileImg"`
}

// UserResponse is returned by every operation that changes one user.
type UserResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

type NewUserResponse struct {
	Message string `json:"message"`
	NewUser *User  `json:"newUser"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeRedis
	StorageTypeFile
	StorageTypeMemory
)
