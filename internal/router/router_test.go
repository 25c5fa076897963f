package router

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/shopdoc/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/docstore"
	"github.com/patric-chuzhbe/shopdoc/internal/logger"
	"github.com/patric-chuzhbe/shopdoc/internal/mockstorage"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
)

const testDocument = `{
  "users": [
    {
      "username": "ana",
      "email": "ana@example.com",
      "shoppingCart": [
        {"id": 7, "size": "M", "name": "Shirt"},
        {"id": 7, "size": "L", "name": "Shirt"}
      ],
      "purchaseHistory": [
        {"id": 1, "size": "S"}
      ]
    },
    {
      "username": "bob",
      "shoppingCart": []
    }
  ]
}`

type tRequest struct {
	method string
	path   string
	body   string
}

type tExpectedResponse struct {
	code int
	body *regexp.Regexp
}

type tTestCase struct {
	name             string
	request          tRequest
	expectedResponse tExpectedResponse
}

func setupTestServer(t *testing.T, content string) (*httptest.Server, *memorystorage.MemoryStorage) {
	t.Helper()

	require.NoError(t, logger.Init("debug"))

	backend := memorystorage.NewWithContent([]byte(content))
	srv := httptest.NewServer(New(docstore.New(backend), []string{"*"}))
	t.Cleanup(srv.Close)

	return srv, backend
}

func runTestCases(t *testing.T, srv *httptest.Server, testCases []tTestCase) {
	t.Helper()

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			req := resty.New().R()
			req.Method = testCase.request.method
			req.URL = srv.URL + testCase.request.path

			if len(testCase.request.body) > 0 {
				req.SetHeader("Content-Type", "application/json")
				req.SetBody(testCase.request.body)
			}

			resp, err := req.Send()
			assert.NoError(t, err, "error making HTTP request")

			assert.Equal(t, testCase.expectedResponse.code, resp.StatusCode(), "Response code didn't match expected value")

			if testCase.expectedResponse.body != nil {
				assert.NotNil(
					t,
					testCase.expectedResponse.body.FindIndex(resp.Body()),
					fmt.Sprintf(
						"The response body %q should match expected value (%s)",
						resp.Body(),
						testCase.expectedResponse.body.String(),
					),
				)
			}
		})
	}
}

func decodeDocument(t *testing.T, content []byte) *models.Document {
	t.Helper()

	doc, err := storage.Decode(content)
	require.NoError(t, err)

	return doc
}

func TestGetData(t *testing.T) {
	srv, _ := setupTestServer(t, testDocument)

	resp, err := resty.New().R().Get(srv.URL + "/data")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, resp.Header().Get("Content-Type"), "application/json")

	doc := decodeDocument(t, resp.Body())
	require.Len(t, doc.Users, 2)
	assert.Equal(t, "ana", doc.Users[0].Username)
	assert.Equal(t, "ana@example.com", doc.Users[0].Fields["email"])
	assert.Len(t, doc.Users[0].ShoppingCart, 2)
}

func TestPostAddUser(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPost, "/add-user", `{"username": "carol", "age": 31}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"New user added","newUser":\{"age":31,"shoppingCart":\[\],"username":"carol"\}`),
			},
		},
		{
			name:    "not_an_object",
			request: tRequest{http.MethodPost, "/add-user", `[1, 2]`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Invalid input"`),
			},
		},
		{
			name:    "malformed_JSON",
			request: tRequest{http.MethodPost, "/add-user", `{"username": `},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Malformed request body"`),
			},
		},
		{
			name:    "empty_body",
			request: tRequest{http.MethodPost, "/add-user", ``},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Invalid input"`),
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	require.Len(t, doc.Users, 3)
	assert.Equal(t, "carol", doc.Users[2].Username)
}

func TestPostAddCart(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPost, "/add-cart?username=bob", `{"product": {"id": 3, "size": "XL", "price": 19.90}}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"Product added to cart","user":\{"shoppingCart":\[\{"id":3,"price":19.90,"size":"XL"\}\],"username":"bob"\}`),
			},
		},
		{
			name:    "unknown_user",
			request: tRequest{http.MethodPost, "/add-cart?username=nobody", `{"product": {"id": 3, "size": "XL"}}`},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				regexp.MustCompile(`"error":"User not found"`),
			},
		},
		{
			name:    "missing_username",
			request: tRequest{http.MethodPost, "/add-cart", `{"product": {"id": 3, "size": "XL"}}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Missing required field"`),
			},
		},
		{
			name:    "missing_product",
			request: tRequest{http.MethodPost, "/add-cart?username=bob", `{}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Missing required field"`),
			},
		},
		{
			name:    "product_is_a_plain_value",
			request: tRequest{http.MethodPost, "/add-cart?username=bob", `{"product": "sku-1"}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"shoppingCart":\[\{"id":3,"price":19.90,"size":"XL"\},"sku-1"\]`),
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	require.Len(t, doc.Users[1].ShoppingCart, 2)
	assert.Equal(t, "sku-1", doc.Users[1].ShoppingCart[1])
	assert.Equal(t, json.Number("19.90"), doc.Users[1].ShoppingCart[0].(map[string]any)["price"])
}

func TestPostRemoveCart(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPost, "/remove-cart?username=ana", `{"id": 7, "size": "L"}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"Product removed from cart"`),
			},
		},
		{
			name:    "product_not_in_cart",
			request: tRequest{http.MethodPost, "/remove-cart?username=ana", `{"id": 7, "size": "L"}`},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				regexp.MustCompile(`"error":"Product not found in cart"`),
			},
		},
		{
			name:    "id_type_matters",
			request: tRequest{http.MethodPost, "/remove-cart?username=ana", `{"id": "7", "size": "M"}`},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				nil,
			},
		},
		{
			name:    "missing_size",
			request: tRequest{http.MethodPost, "/remove-cart?username=ana", `{"id": 7}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"details":"RemoveCartItem \\"ana\\": missing required field: size"`),
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	require.Len(t, doc.Users[0].ShoppingCart, 1)
	assert.Equal(t, "M", doc.Users[0].ShoppingCart[0].(map[string]any)["size"])
}

func TestPostClearCart(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPost, "/clear-cart?username=ana", ``},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"Cart cleared".*"shoppingCart":\[\]`),
			},
		},
		{
			name:    "unknown_user",
			request: tRequest{http.MethodPost, "/clear-cart?username=nobody", ``},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				nil,
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	assert.Empty(t, doc.Users[0].ShoppingCart)
	assert.Len(t, doc.Users[0].PurchaseHistory, 1)
}

func TestPostAddPurchases(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPost, "/add-purchases?username=bob", `{"products": [{"id": 1}, {"id": 2}]}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"purchaseHistory":\[\{"id":1\},\{"id":2\}\]`),
			},
		},
		{
			name:    "empty_list",
			request: tRequest{http.MethodPost, "/add-purchases?username=bob", `{"products": []}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Invalid input"`),
			},
		},
		{
			name:    "not_a_list",
			request: tRequest{http.MethodPost, "/add-purchases?username=bob", `{"products": {"id": 1}}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				nil,
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	assert.Len(t, doc.Users[1].PurchaseHistory, 2)
}

func TestPutUpdateUser(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "positive",
			request: tRequest{http.MethodPut, "/update-user?username=ana", `{"username": "mallory", "email": "new@example.com"}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"User updated","user":\{"email":"new@example.com","purchaseHistory":\[\],"shoppingCart":\[\],"username":"ana"\}`),
			},
		},
		{
			name:    "unknown_user",
			request: tRequest{http.MethodPut, "/update-user?username=nobody", `{"email": "x@example.com"}`},
			expectedResponse: tExpectedResponse{
				http.StatusNotFound,
				nil,
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	assert.Equal(t, "ana", doc.Users[0].Username)
	assert.Equal(t, "new@example.com", doc.Users[0].Fields["email"])
}

func TestPostUpdateImages(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	runTestCases(t, srv, []tTestCase{
		{
			name:    "image",
			request: tRequest{http.MethodPost, "/update-image?username=bob", `{"image": "data:image/png;base64,AAAA"}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"Image updated"`),
			},
		},
		{
			name:    "image_not_a_string",
			request: tRequest{http.MethodPost, "/update-image?username=bob", `{"image": 42}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				nil,
			},
		},
		{
			name:    "profile_image",
			request: tRequest{http.MethodPost, "/update-profile-img?username=bob", `{"profileImg": "https://cdn.example.com/bob.png"}`},
			expectedResponse: tExpectedResponse{
				http.StatusOK,
				regexp.MustCompile(`"message":"Profile image updated"`),
			},
		},
		{
			name:    "empty_profile_image",
			request: tRequest{http.MethodPost, "/update-profile-img?username=bob", `{"profileImg": ""}`},
			expectedResponse: tExpectedResponse{
				http.StatusBadRequest,
				regexp.MustCompile(`"error":"Missing required field"`),
			},
		},
	})

	doc := decodeDocument(t, backend.Content())
	assert.Equal(t, "data:image/png;base64,AAAA", doc.Users[1].Fields[models.FieldImage])
	assert.Equal(t, "https://cdn.example.com/bob.png", doc.Users[1].Fields[models.FieldProfileImage])
}

func TestBackendFailures(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	type tTestCase struct {
		name         string
		setup        func(backend *mockstorage.BackendMock)
		method       string
		path         string
		body         string
		expectedCode int
		expectedBody *regexp.Regexp
	}

	testCases := []tTestCase{
		{
			name: "missing_file",
			setup: func(backend *mockstorage.BackendMock) {
				backend.On("Load", mock.Anything).Return(nil, storage.ErrNotFound)
			},
			method:       http.MethodGet,
			path:         "/data",
			expectedCode: http.StatusInternalServerError,
			expectedBody: regexp.MustCompile(`"error":"Error reading the data file"`),
		},
		{
			name: "save_failure",
			setup: func(backend *mockstorage.BackendMock) {
				doc := &models.Document{Users: []models.User{{Username: "ana", ShoppingCart: []models.Product{}}}}
				backend.On("Load", mock.Anything).Return(doc, nil)
				backend.On("Save", mock.Anything, mock.Anything).Return(errors.New("disk full"))
			},
			method:       http.MethodPost,
			path:         "/clear-cart?username=ana",
			expectedCode: http.StatusInternalServerError,
			expectedBody: regexp.MustCompile(`"error":"Error writing the data file","details":".*disk full"`),
		},
		{
			name: "ping_failure",
			setup: func(backend *mockstorage.BackendMock) {
				backend.On("Ping", mock.Anything).Return(errors.New("connection refused"))
			},
			method:       http.MethodGet,
			path:         "/ping",
			expectedCode: http.StatusInternalServerError,
		},
		{
			name: "ping",
			setup: func(backend *mockstorage.BackendMock) {
				backend.On("Ping", mock.Anything).Return(nil)
			},
			method:       http.MethodGet,
			path:         "/ping",
			expectedCode: http.StatusOK,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			backend := new(mockstorage.BackendMock)
			testCase.setup(backend)

			srv := httptest.NewServer(New(docstore.New(backend), []string{"*"}))
			defer srv.Close()

			req := resty.New().R()
			req.Method = testCase.method
			req.URL = srv.URL + testCase.path

			resp, err := req.Send()
			require.NoError(t, err)

			assert.Equal(t, testCase.expectedCode, resp.StatusCode())
			if testCase.expectedBody != nil {
				assert.Regexp(t, testCase.expectedBody, string(resp.Body()))
			}
			backend.AssertExpectations(t)
		})
	}
}

func TestGzippedRequest(t *testing.T) {
	srv, backend := setupTestServer(t, testDocument)

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	_, err := gzipWriter.Write([]byte(`{"product": {"id": 9, "size": "S"}}`))
	require.NoError(t, err)
	require.NoError(t, gzipWriter.Close())

	resp, err := resty.New().R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetBody(buf.Bytes()).
		Post(srv.URL + "/add-cart?username=bob")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Contains(t, string(resp.Body()), `"message":"Product added to cart"`)

	doc := decodeDocument(t, backend.Content())
	assert.Len(t, doc.Users[1].ShoppingCart, 1)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := setupTestServer(t, testDocument)

	resp, err := resty.New().R().
		SetHeader("Origin", "http://localhost:5173").
		SetHeader("Access-Control-Request-Method", http.MethodPut).
		Options(srv.URL + "/update-user")
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, resp.StatusCode())
	assert.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCancelledRequestIsNotApplied(t *testing.T) {
	require.NoError(t, logger.Init("debug"))

	backend := memorystorage.NewWithContent([]byte(testDocument))
	handler := New(docstore.New(backend), []string{"*"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	request := httptest.NewRequest(http.MethodPost, "/clear-cart?username=ana", nil).WithContext(ctx)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.JSONEq(t, testDocument, string(backend.Content()))
}
