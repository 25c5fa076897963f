// Package router exposes the document store over HTTP.
//
// Every route that works on one user takes the username from the "username"
// query parameter; bodies are JSON. Successful responses carry a message and
// the affected user, failures carry {"error", "details"}.
package router

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shopdoc/internal/corsmw"
	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/docstore"
	"github.com/patric-chuzhbe/shopdoc/internal/gzippedhttp"
	"github.com/patric-chuzhbe/shopdoc/internal/logger"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

// maxBodySize leaves room for base64-encoded profile images.
const maxBodySize = 10 << 20

type documentReader interface {
	GetDocument(ctx context.Context) (*models.Document, error)
}

type userKeeper interface {
	AddUser(ctx context.Context, record any) (*models.User, error)
	ReplaceUser(ctx context.Context, username string, record any) (*models.User, error)
	SetImage(ctx context.Context, username string, image any) (*models.User, error)
	SetProfileImage(ctx context.Context, username string, source any) (*models.User, error)
}

type cartKeeper interface {
	AddCartItem(ctx context.Context, username string, product any) (*models.User, error)
	RemoveCartItem(ctx context.Context, username string, id, size any) (*models.User, error)
	ClearCart(ctx context.Context, username string) (*models.User, error)
	AddPurchases(ctx context.Context, username string, products any) (*models.User, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type documentStore interface {
	documentReader
	userKeeper
	cartKeeper
	pinger
}

var errMalformedBody = errors.New("request body is not valid JSON")

type Router struct {
	store documentStore
}

// New builds the chi router with logging, gzip and CORS middleware.
func New(store documentStore, allowedOrigins []string) *chi.Mux {
	myRouter := Router{
		store: store,
	}

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		corsmw.New(allowedOrigins),
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/ping`, myRouter.GetPing)
	router.Get(`/data`, myRouter.GetData)
	router.Post(`/add-user`, myRouter.PostAddUser)
	router.Put(`/update-user`, myRouter.PutUpdateUser)
	router.Post(`/update-image`, myRouter.PostUpdateImage)
	router.Post(`/update-profile-img`, myRouter.PostUpdateProfileImg)
	router.Post(`/add-cart`, myRouter.PostAddCart)
	router.Post(`/remove-cart`, myRouter.PostRemoveCart)
	router.Post(`/clear-cart`, myRouter.PostClearCart)
	router.Post(`/add-purchases`, myRouter.PostAddPurchases)

	return router
}

// GetPing reports whether the backend is reachable.
func (theRouter *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := theRouter.store.Ping(request.Context()); err != nil {
		logger.Log.Errorw("ping failed", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// GetData returns the whole document.
func (theRouter *Router) GetData(response http.ResponseWriter, request *http.Request) {
	doc, err := theRouter.store.GetDocument(request.Context())
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, doc)
}

func (theRouter *Router) PostAddUser(response http.ResponseWriter, request *http.Request) {
	var record any
	if err := decodeBody(request, &record); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.AddUser(request.Context(), record)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.NewUserResponse{Message: "New user added", NewUser: usr})
}

func (theRouter *Router) PutUpdateUser(response http.ResponseWriter, request *http.Request) {
	var record any
	if err := decodeBody(request, &record); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.ReplaceUser(request.Context(), username(request), record)
	writeUserResult(response, "User updated", usr, err)
}

func (theRouter *Router) PostUpdateImage(response http.ResponseWriter, request *http.Request) {
	var body models.SetImageRequest
	if err := decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.SetImage(request.Context(), username(request), body.Image)
	writeUserResult(response, "Image updated", usr, err)
}

func (theRouter *Router) PostUpdateProfileImg(response http.ResponseWriter, request *http.Request) {
	var body models.SetProfileImageRequest
	if err := decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.SetProfileImage(request.Context(), username(request), body.ProfileImg)
	writeUserResult(response, "Profile image updated", usr, err)
}

func (theRouter *Router) PostAddCart(response http.ResponseWriter, request *http.Request) {
	var body models.AddCartItemRequest
	if err := decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.AddCartItem(request.Context(), username(request), body.Product)
	writeUserResult(response, "Product added to cart", usr, err)
}

func (theRouter *Router) PostRemoveCart(response http.ResponseWriter, request *http.Request) {
	var body models.RemoveCartItemRequest
	if err := decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.RemoveCartItem(request.Context(), username(request), body.ID, body.Size)
	writeUserResult(response, "Product removed from cart", usr, err)
}

func (theRouter *Router) PostClearCart(response http.ResponseWriter, request *http.Request) {
	usr, err := theRouter.store.ClearCart(request.Context(), username(request))
	writeUserResult(response, "Cart cleared", usr, err)
}

func (theRouter *Router) PostAddPurchases(response http.ResponseWriter, request *http.Request) {
	var body models.AddPurchasesRequest
	if err := decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := theRouter.store.AddPurchases(request.Context(), username(request), body.Products)
	writeUserResult(response, "Purchases added", usr, err)
}

func username(request *http.Request) string {
	return request.URL.Query().Get("username")
}

// decodeBody reads a JSON body keeping numbers exact. An empty body leaves target untouched.
func decodeBody(request *http.Request, target any) error {
	data, err := io.ReadAll(http.MaxBytesReader(nil, request.Body, maxBodySize))
	if err != nil {
		return errors.Join(errMalformedBody, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := models.DecodeJSON(data, target); err != nil {
		return errors.Join(errMalformedBody, err)
	}

	return nil
}

func writeUserResult(response http.ResponseWriter, message string, usr *models.User, err error) {
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, models.UserResponse{Message: message, User: usr})
}

func writeError(response http.ResponseWriter, err error) {
	status, summary := classifyError(err)
	if status == http.StatusInternalServerError {
		logger.Log.Errorw("request failed", zap.Error(err))
	}

	writeJSON(response, status, models.ErrorResponse{Error: summary, Details: err.Error()})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, errMalformedBody):
		return http.StatusBadRequest, "Malformed request body"
	case errors.Is(err, docstore.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, docstore.ErrProductNotFound):
		return http.StatusNotFound, "Product not found in cart"
	case errors.Is(err, docstore.ErrMissingField):
		return http.StatusBadRequest, "Missing required field"
	case errors.Is(err, docstore.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Request cancelled"
	case errors.Is(err, storage.ErrWrite):
		return http.StatusInternalServerError, "Error writing the data file"
	}

	return http.StatusInternalServerError, "Error reading the data file"
}
