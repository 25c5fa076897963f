package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

// Well-known user record keys. Everything else in a record is kept in User.Fields untouched.
const (
	FieldUsername        = "username"
	FieldShoppingCart    = "shoppingCart"
	FieldPurchaseHistory = "purchaseHistory"
	FieldImage           = "image"
	FieldProfileImage    = "profileImg"

	fieldUsers = "users"

	productFieldID   = "id"
	productFieldSize = "size"
)

var (
	// ErrNotAnObject is returned when a record that must be a JSON object is something else.
	ErrNotAnObject = errors.New("record is not an object")

	// ErrNotAList is returned when a collection that must be a JSON array is something else.
	ErrNotAList = errors.New("value is not a list")

	// ErrMissingUsers is returned when a document has no "users" list.
	ErrMissingUsers = errors.New(`document has no "users" list`)
)

// Product is one cart or purchase history entry, kept exactly as decoded.
// Usually it is an object; only its "id" and "size" keys mean anything to the
// store, and together they identify an item in a shopping cart.
type Product = any

// ProductMatches reports whether product has the given cart identity.
// Numbers compare by value, so 7 and 7.0 are the same id. Products that are
// not objects never match.
func ProductMatches(product Product, id, size any) bool {
	record, ok := product.(map[string]any)
	if !ok {
		return false
	}
	productID, ok := record[productFieldID]
	if !ok {
		return false
	}
	productSize, ok := record[productFieldSize]
	if !ok {
		return false
	}

	return sameValue(productID, id) && sameValue(productSize, size)
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(normalizeValue(a), normalizeValue(b))
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	}

	return v
}

// User is one entry of the document's "users" list.
//
// PurchaseHistory is nil while the user has never purchased anything; it is
// omitted from the JSON form in that case. ShoppingCart is always written,
// as an empty list when there is nothing in it.
type User struct {
	Username        string
	ShoppingCart    []Product
	PurchaseHistory []Product

	// Fields holds every other key of the record (image, profileImg, ...) as decoded.
	// A null username is kept here too.
	Fields map[string]any

	// noUsername is set for records read without a username (absent or null);
	// such a record is written back without one until Username is assigned.
	noUsername bool
}

// MarshalJSON writes the user back as a flat JSON object.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Fields)+3)
	for key, value := range u.Fields {
		out[key] = value
	}

	if !u.noUsername || u.Username != "" {
		out[FieldUsername] = u.Username
	}

	cart := u.ShoppingCart
	if cart == nil {
		cart = []Product{}
	}
	out[FieldShoppingCart] = cart

	if u.PurchaseHistory != nil {
		out[FieldPurchaseHistory] = u.PurchaseHistory
	}

	return json.Marshal(out)
}

// UnmarshalJSON reads a user record. A missing shopping cart becomes an empty one.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw any
	if err := DecodeJSON(data, &raw); err != nil {
		return err
	}

	record, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("user: %w", ErrNotAnObject)
	}

	usr, err := UserFromMap(record)
	if err != nil {
		return err
	}
	*u = usr

	return nil
}

// UserFromMap builds a User from an already decoded JSON object.
func UserFromMap(record map[string]any) (User, error) {
	usr := User{
		ShoppingCart: []Product{},
		Fields:       make(map[string]any, len(record)),
	}

	switch value, ok := record[FieldUsername]; {
	case !ok:
		usr.noUsername = true
	case value == nil:
		usr.noUsername = true
		usr.Fields[FieldUsername] = nil
	default:
		username, ok := value.(string)
		if !ok {
			return User{}, fmt.Errorf("user: %q must be a string, got %T", FieldUsername, value)
		}
		usr.Username = username
	}

	for key, value := range record {
		switch key {
		case FieldUsername:
			continue

		case FieldShoppingCart:
			if value == nil {
				continue
			}
			cart, err := ProductsFromValue(value)
			if err != nil {
				return User{}, fmt.Errorf("user %q: %s: %w", usr.Username, FieldShoppingCart, err)
			}
			usr.ShoppingCart = cart

		case FieldPurchaseHistory:
			if value == nil {
				continue
			}
			history, err := ProductsFromValue(value)
			if err != nil {
				return User{}, fmt.Errorf("user %q: %s: %w", usr.Username, FieldPurchaseHistory, err)
			}
			usr.PurchaseHistory = history

		default:
			usr.Fields[key] = value
		}
	}

	return usr, nil
}

// ProductsFromValue converts a decoded JSON array into products.
// Elements are taken as they are.
func ProductsFromValue(value any) ([]Product, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotAList, value)
	}

	return append(make([]Product, 0, len(items)), items...), nil
}

// Document is the single persisted root object.
type Document struct {
	Users []User

	// Fields holds root-level keys other than "users".
	Fields map[string]any
}

// FindUser returns the index of the first user with the given username, or -1.
func (d *Document) FindUser(username string) int {
	for i := range d.Users {
		if d.Users[i].Username == username {
			return i
		}
	}

	return -1
}

// MarshalJSON writes the document as {"users": [...]} plus any extra root keys.
func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+1)
	for key, value := range d.Fields {
		out[key] = value
	}

	users := d.Users
	if users == nil {
		users = []User{}
	}
	out[fieldUsers] = users

	return json.Marshal(out)
}

// UnmarshalJSON reads a document. The "users" key must be present and hold a list.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("document: %w", ErrNotAnObject)
	}

	usersData, ok := raw[fieldUsers]
	if !ok || bytes.Equal(bytes.TrimSpace(usersData), []byte("null")) {
		return ErrMissingUsers
	}

	var users []User
	if err := json.Unmarshal(usersData, &users); err != nil {
		return fmt.Errorf("document: users: %w", err)
	}
	if users == nil {
		users = []User{}
	}

	fields := make(map[string]any, len(raw)-1)
	for key, value := range raw {
		if key == fieldUsers {
			continue
		}
		var decoded any
		if err := DecodeJSON(value, &decoded); err != nil {
			return fmt.Errorf("document: %s: %w", key, err)
		}
		fields[key] = decoded
	}

	d.Users = users
	d.Fields = fields

	return nil
}

// DecodeJSON unmarshals data keeping numbers as json.Number, so that
// numeric values are written back exactly as they were read.
func DecodeJSON(data []byte, target any) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after the top-level value")
	}

	return nil
}
