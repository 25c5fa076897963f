// Package docstore serves every read and change of the shared users document.
//
// Each mutating operation is one critical section: load the document from the
// backend, change the in-memory copy, save the whole document back. A single
// RWMutex per Store makes these sections strictly sequential, so no change is
// ever lost to a concurrent save of a stale copy. GetDocument takes the lock in
// read mode and may run alongside other reads, never alongside a write.
//
// Request payload checks happen before the lock is taken and before any I/O;
// an operation that fails validation or lookup never writes anything.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/logger"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

// Store owns the document lock and the backend. Create one per backend and share it.
type Store struct {
	mu      sync.RWMutex
	backend storage.Backend
}

func New(backend storage.Backend) *Store {
	return &Store{
		backend: backend,
	}
}

// GetDocument returns the whole current document.
func (s *Store) GetDocument(ctx context.Context) (*models.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: OpGetDocument, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.backend.Load(context.WithoutCancel(ctx))
	if err != nil {
		logger.Log.Errorw("unable to load the document", "op", OpGetDocument, zap.Error(err))
		return nil, &OpError{Op: OpGetDocument, Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}

	return doc, nil
}

// AddUser appends a new user record. Usernames are not checked for uniqueness;
// lookups always resolve to the first user with a given name.
func (s *Store) AddUser(ctx context.Context, record any) (*models.User, error) {
	newUser, err := userFromRecord(record)
	if err != nil {
		return nil, &OpError{Op: OpAddUser, Err: err}
	}

	return s.update(ctx, OpAddUser, newUser.Username, func(doc *models.Document) (*models.User, error) {
		doc.Users = append(doc.Users, newUser)
		return &doc.Users[len(doc.Users)-1], nil
	})
}

// AddCartItem appends product to the user's shopping cart.
func (s *Store) AddCartItem(ctx context.Context, username string, product any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpAddCartItem, Err: missingField(models.FieldUsername)}
	}
	if !isTruthy(product) {
		return nil, &OpError{Op: OpAddCartItem, Username: username, Err: missingField("product")}
	}

	return s.mutateUser(ctx, OpAddCartItem, username, func(usr *models.User) error {
		usr.ShoppingCart = append(usr.ShoppingCart, product)
		return nil
	})
}

// RemoveCartItem removes the first cart product whose (id, size) matches.
// Further products with the same identity stay in the cart.
func (s *Store) RemoveCartItem(ctx context.Context, username string, id, size any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpRemoveCartItem, Err: missingField(models.FieldUsername)}
	}
	if id == nil {
		return nil, &OpError{Op: OpRemoveCartItem, Username: username, Err: missingField("id")}
	}
	if size == nil {
		return nil, &OpError{Op: OpRemoveCartItem, Username: username, Err: missingField("size")}
	}

	return s.mutateUser(ctx, OpRemoveCartItem, username, func(usr *models.User) error {
		i := slices.IndexFunc(usr.ShoppingCart, func(product models.Product) bool {
			return models.ProductMatches(product, id, size)
		})
		if i < 0 {
			return fmt.Errorf("%w: id=%v size=%v", ErrProductNotFound, id, size)
		}
		usr.ShoppingCart = slices.Delete(usr.ShoppingCart, i, i+1)
		return nil
	})
}

// ClearCart empties the user's shopping cart.
func (s *Store) ClearCart(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpClearCart, Err: missingField(models.FieldUsername)}
	}

	return s.mutateUser(ctx, OpClearCart, username, func(usr *models.User) error {
		usr.ShoppingCart = []models.Product{}
		return nil
	})
}

// AddPurchases appends products, in order, to the user's purchase history,
// creating the history on first use. products must be a non-empty list.
func (s *Store) AddPurchases(ctx context.Context, username string, products any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpAddPurchases, Err: missingField(models.FieldUsername)}
	}
	purchases, err := models.ProductsFromValue(products)
	if err != nil {
		return nil, &OpError{Op: OpAddPurchases, Username: username, Err: invalidInput("products: %v", err)}
	}
	if len(purchases) == 0 {
		return nil, &OpError{Op: OpAddPurchases, Username: username, Err: invalidInput("products: list is empty")}
	}

	return s.mutateUser(ctx, OpAddPurchases, username, func(usr *models.User) error {
		if usr.PurchaseHistory == nil {
			usr.PurchaseHistory = []models.Product{}
		}
		usr.PurchaseHistory = append(usr.PurchaseHistory, purchases...)
		return nil
	})
}

// ReplaceUser overwrites the user record with record. The username always stays
// the one used for the lookup. A purchase history, once created, is kept as an
// empty list if the replacement does not carry one.
func (s *Store) ReplaceUser(ctx context.Context, username string, record any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpReplaceUser, Err: missingField(models.FieldUsername)}
	}
	replacement, err := userFromRecord(record)
	if err != nil {
		return nil, &OpError{Op: OpReplaceUser, Username: username, Err: err}
	}

	return s.mutateUser(ctx, OpReplaceUser, username, func(usr *models.User) error {
		replacement.Username = username
		if replacement.PurchaseHistory == nil && usr.PurchaseHistory != nil {
			replacement.PurchaseHistory = []models.Product{}
		}
		*usr = replacement
		return nil
	})
}

// SetImage overwrites the user's "image" field.
func (s *Store) SetImage(ctx context.Context, username string, image any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpSetImage, Err: missingField(models.FieldUsername)}
	}
	value, ok := image.(string)
	if !ok {
		return nil, &OpError{Op: OpSetImage, Username: username, Err: invalidInput("image must be a string, got %T", image)}
	}

	return s.mutateUser(ctx, OpSetImage, username, func(usr *models.User) error {
		setField(usr, models.FieldImage, value)
		return nil
	})
}

// SetProfileImage overwrites the user's "profileImg" field with any non-empty value.
func (s *Store) SetProfileImage(ctx context.Context, username string, source any) (*models.User, error) {
	if username == "" {
		return nil, &OpError{Op: OpSetProfileImage, Err: missingField(models.FieldUsername)}
	}
	if !isTruthy(source) {
		return nil, &OpError{Op: OpSetProfileImage, Username: username, Err: missingField(models.FieldProfileImage)}
	}

	return s.mutateUser(ctx, OpSetProfileImage, username, func(usr *models.User) error {
		setField(usr, models.FieldProfileImage, source)
		return nil
	})
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close waits for the running operation, if any, and closes the backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Close()
}

func (s *Store) mutateUser(
	ctx context.Context,
	op string,
	username string,
	apply func(usr *models.User) error,
) (*models.User, error) {
	return s.update(ctx, op, username, func(doc *models.Document) (*models.User, error) {
		i := doc.FindUser(username)
		if i < 0 {
			return nil, ErrUserNotFound
		}
		if err := apply(&doc.Users[i]); err != nil {
			return nil, err
		}
		return &doc.Users[i], nil
	})
}

// update runs one load-modify-save critical section. A context that is already
// done when the lock is acquired aborts the operation; after that it runs to completion.
func (s *Store) update(
	ctx context.Context,
	op string,
	username string,
	apply func(doc *models.Document) (*models.User, error),
) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: op, Username: username, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &OpError{Op: op, Username: username, Err: err}
	}
	ctx = context.WithoutCancel(ctx)

	doc, err := s.backend.Load(ctx)
	if err != nil {
		logger.Log.Errorw("unable to load the document", "op", op, "username", username, zap.Error(err))
		return nil, &OpError{Op: op, Username: username, Err: fmt.Errorf("%w: %w", ErrRead, err)}
	}

	changed, err := apply(doc)
	if err != nil {
		return nil, &OpError{Op: op, Username: username, Err: err}
	}
	result := *changed

	if err := s.backend.Save(ctx, doc); err != nil {
		if !errors.Is(err, storage.ErrWrite) {
			err = fmt.Errorf("%w: %w", storage.ErrWrite, err)
		}
		logger.Log.Errorw("unable to save the document", "op", op, "username", username, zap.Error(err))
		return nil, &OpError{Op: op, Username: username, Err: err}
	}

	logger.Log.Debugw("document updated", "op", op, "username", username)

	return &result, nil
}

func userFromRecord(record any) (models.User, error) {
	fields, ok := record.(map[string]any)
	if !ok {
		return models.User{}, invalidInput("user record must be an object, got %T", record)
	}

	usr, err := models.UserFromMap(fields)
	if err != nil {
		return models.User{}, invalidInput("%v", err)
	}

	return usr, nil
}

func setField(usr *models.User, key string, value any) {
	if usr.Fields == nil {
		usr.Fields = map[string]any{}
	}
	usr.Fields[key] = value
}
