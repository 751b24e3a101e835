package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coffee_shop/internal/app"
	"coffee_shop/internal/config"
	"coffee_shop/internal/models"
	"coffee_shop/internal/pkg/apperrors"
	"coffee_shop/internal/pkg/auth"
	"coffee_shop/internal/pkg/logger"
	"coffee_shop/internal/pkg/security"
	"coffee_shop/internal/storage"
	"coffee_shop/internal/storage/mocks"
)

const jsonContentType = "application/json"

func testConfig() *config.Config {
	return &config.Config{
		ServerRunAddress: "localhost:8080",
		JWTSecretKey:     "test-secret",
		RequestTimeout:   10 * time.Second,
		AllowedOrigins:   []string{"*"},
	}
}

func testRequest(t *testing.T, ts *httptest.Server, method, path, contentType string, requestBody []byte, token string) (*http.Response, string) {
	req, err := http.NewRequest(method, ts.URL+path, bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, string(body)
}

func newMockServer(t *testing.T) (*mocks.MockStorage, *auth.TokenManager, *httptest.Server) {
	l, err := logger.CreateLogger("error")
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	mockDB := mocks.NewMockStorage(ctrl)

	cfg := testConfig()
	tokens := auth.NewTokenManager(cfg.JWTSecretKey, 0, mockDB)
	appInstance := app.NewApp(mockDB, tokens, l)

	service := NewService(appInstance, cfg, l)
	testServer := httptest.NewServer(service.NewRouter())
	t.Cleanup(testServer.Close)

	return mockDB, tokens, testServer
}

type expectedData struct {
	expectedStatusCode  int
	expectedContentType string
	expectedBody        string
}

type handlerTestCase struct {
	name        string
	method      string
	path        string
	contentType string
	token       string
	requestBody []byte
	setupMock   func()
	expected    expectedData
}

func runHandlerTests(t *testing.T, testServer *httptest.Server, testCases []handlerTestCase) {
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()
			resp, body := testRequest(t, testServer, tc.method, tc.path, tc.contentType, tc.requestBody, tc.token)
			assert.Equal(t, tc.expected.expectedStatusCode, resp.StatusCode)
			if tc.expected.expectedContentType != "" {
				assert.Equal(t, tc.expected.expectedContentType, resp.Header.Get("Content-Type"))
			}
			if tc.expected.expectedBody != "" {
				assert.Equal(t, tc.expected.expectedBody, body)
			}
		})
	}
}

func TestRegisterHandler_Gomock(t *testing.T) {
	mockDB, _, testServer := newMockServer(t)

	testCases := []handlerTestCase{
		{
			name:        "Missing JSON",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: "text/plain",
			requestBody: []byte(`{"username": "alice"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"missing JSON in request\"}\n",
			},
		},
		{
			name:        "Invalid JSON",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte("some body"),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"invalid JSON in request\"}\n",
			},
		},
		{
			name:        "Missing fields",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "alice", "password": "pw1"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"missing required fields\"}\n",
			},
		},
		{
			name:        "Username already exists",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "alice", "email": "a@x.com", "password": "pw1"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(&models.User{ID: 1, Username: "alice"}, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"username already exists\"}\n",
			},
		},
		{
			name:        "Email already exists",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "bob", "email": "a@x.com", "password": "pw1"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "bob").Return(nil, storage.ErrUserNotFound)
				mockDB.EXPECT().GetUserByEmail(gomock.Any(), "a@x.com").Return(&models.User{ID: 1, Email: "a@x.com"}, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"email already exists\"}\n",
			},
		},
		{
			name:        "Password longer than bcrypt accepts",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "bob", "email": "b@x.com", "password": "` + strings.Repeat("p", 73) + `"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"password must be at most 72 bytes\"}\n",
			},
		},
		{
			name:        "Store failure hides the cause",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "bob", "email": "b@x.com", "password": "pw1"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "bob").Return(nil, errors.New("connection reset by peer"))
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusInternalServerError,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"internal server error\"}\n",
			},
		},
		{
			name:        "Successful registration ignores is_admin",
			method:      http.MethodPost,
			path:        "/auth/register",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "bob", "email": "b@x.com", "password": "pw1", "is_admin": true}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "bob").Return(nil, storage.ErrUserNotFound)
				mockDB.EXPECT().GetUserByEmail(gomock.Any(), "b@x.com").Return(nil, storage.ErrUserNotFound)
				mockDB.EXPECT().CreateUser(gomock.Any(), gomock.AssignableToTypeOf(&models.User{})).
					DoAndReturn(func(ctx context.Context, user *models.User) (*models.User, error) {
						assert.False(t, user.IsAdmin)
						assert.NoError(t, security.CheckPassword(user.PasswordHash, "pw1"))
						user.ID = 7
						return user, nil
					})
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusCreated,
				expectedContentType: jsonContentType,
				expectedBody:        `{"message":"User registered successfully","id":7}`,
			},
		},
	}

	runHandlerTests(t, testServer, testCases)
}

func TestLoginHandler_Gomock(t *testing.T) {
	mockDB, tokens, testServer := newMockServer(t)

	hash, err := security.HashPassword("pw1")
	require.NoError(t, err)
	alice := &models.User{ID: 5, Username: "alice", PasswordHash: hash}

	testCases := []handlerTestCase{
		{
			name:        "Missing password",
			method:      http.MethodPost,
			path:        "/auth/login",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "alice"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"missing username or password\"}\n",
			},
		},
		{
			name:        "Unknown user",
			method:      http.MethodPost,
			path:        "/auth/login",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "nobody", "password": "pw1"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "nobody").Return(nil, storage.ErrUserNotFound)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"invalid username or password\"}\n",
			},
		},
		{
			name:        "Incorrect password",
			method:      http.MethodPost,
			path:        "/auth/login",
			contentType: jsonContentType,
			requestBody: []byte(`{"username": "alice", "password": "wrong"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(alice, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"invalid username or password\"}\n",
			},
		},
	}

	runHandlerTests(t, testServer, testCases)

	t.Run("Successful login", func(t *testing.T) {
		mockDB.EXPECT().GetUserByUsername(gomock.Any(), "alice").Return(alice, nil)

		resp, body := testRequest(t, testServer, http.MethodPost, "/auth/login", jsonContentType, []byte(`{"username": "alice", "password": "pw1"}`), "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var loginResp models.LoginResponse
		require.NoError(t, json.Unmarshal([]byte(body), &loginResp))
		require.NotEmpty(t, loginResp.AccessToken, "token should not be empty")

		claims, err := tokens.ParseToken(loginResp.AccessToken)
		require.NoError(t, err)
		userID, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, alice.ID, userID)
	})
}

func TestCoffeeHandlers_Gomock(t *testing.T) {
	mockDB, tokens, testServer := newMockServer(t)
	mockDB.EXPECT().IsTokenRevoked(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()

	userToken, err := tokens.GenerateToken(1)
	require.NoError(t, err)
	adminToken, err := tokens.GenerateToken(2)
	require.NoError(t, err)
	goneToken, err := tokens.GenerateToken(3)
	require.NoError(t, err)

	user := &models.User{ID: 1, Username: "alice"}
	admin := &models.User{ID: 2, Username: "admin", IsAdmin: true}
	espresso := models.Coffee{ID: 1, Name: "Espresso", Description: "Strong", Price: decimal.RequireFromString("3.5"), Stock: 10}

	testCases := []handlerTestCase{
		{
			name:   "List without token",
			method: http.MethodGet,
			path:   "/coffee/",
			setupMock: func() {
				mockDB.EXPECT().ListCoffees(gomock.Any()).Return([]models.Coffee{}, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusOK,
				expectedContentType: jsonContentType,
				expectedBody:        "[]",
			},
		},
		{
			name:        "Add without token",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: jsonContentType,
			requestBody: []byte(`{"name": "Espresso"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"authorization token is required\"}\n",
			},
		},
		{
			name:        "Add with garbage token",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: jsonContentType,
			token:       "garbage",
			requestBody: []byte(`{"name": "Espresso"}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"invalid token\"}\n",
			},
		},
		{
			name:        "Add as non-admin is rejected before the body is read",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: "text/plain",
			token:       userToken,
			requestBody: []byte("some body"),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(1)).Return(user, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusForbidden,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"admin privileges required\"}\n",
			},
		},
		{
			name:        "Add by a user that no longer exists",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: jsonContentType,
			token:       goneToken,
			requestBody: []byte(`{"name": "Espresso"}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(3)).Return(nil, storage.ErrUserNotFound)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"user not found\"}\n",
			},
		},
		{
			name:        "Add with missing fields",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: jsonContentType,
			token:       adminToken,
			requestBody: []byte(`{"name": "Espresso", "price": 3.5}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"missing required fields\"}\n",
			},
		},
		{
			name:        "Add with negative stock",
			method:      http.MethodPost,
			path:        "/coffee/",
			contentType: jsonContentType,
			token:       adminToken,
			requestBody: []byte(`{"name": "Espresso", "description": "Strong", "price": 3.5, "stock": -1}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"price and stock must not be negative\"}\n",
			},
		},
		{
			name:        "Update unknown coffee",
			method:      http.MethodPut,
			path:        "/coffee/42",
			contentType: jsonContentType,
			token:       adminToken,
			requestBody: []byte(`{"stock": 5}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
				mockDB.EXPECT().UpdateCoffee(gomock.Any(), int64(42), gomock.AssignableToTypeOf(models.CoffeePatch{})).
					Return(nil, storage.ErrCoffeeNotFound)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusNotFound,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"coffee not found\"}\n",
			},
		},
		{
			name:        "Update with a non-numeric id",
			method:      http.MethodPut,
			path:        "/coffee/abc",
			contentType: jsonContentType,
			token:       adminToken,
			requestBody: []byte(`{"stock": 5}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusNotFound,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"coffee not found\"}\n",
			},
		},
		{
			name:        "Update with a non-numeric id as non-admin",
			method:      http.MethodPut,
			path:        "/coffee/abc",
			contentType: jsonContentType,
			token:       userToken,
			requestBody: []byte(`{"stock": 5}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(1)).Return(user, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusForbidden,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"admin privileges required\"}\n",
			},
		},
		{
			name:        "Update only the stock",
			method:      http.MethodPut,
			path:        "/coffee/1",
			contentType: jsonContentType,
			token:       adminToken,
			requestBody: []byte(`{"stock": 20}`),
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
				mockDB.EXPECT().UpdateCoffee(gomock.Any(), int64(1), gomock.AssignableToTypeOf(models.CoffeePatch{})).
					DoAndReturn(func(ctx context.Context, coffeeID int64, patch models.CoffeePatch) (*models.Coffee, error) {
						assert.Nil(t, patch.Name)
						assert.Nil(t, patch.Price)
						updated := espresso
						if assert.NotNil(t, patch.Stock) {
							updated.Stock = *patch.Stock
						}
						return &updated, nil
					})
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusOK,
				expectedContentType: jsonContentType,
			},
		},
		{
			name:   "Delete a coffee with purchases",
			method: http.MethodDelete,
			path:   "/coffee/1",
			token:  adminToken,
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
				mockDB.EXPECT().DeleteCoffee(gomock.Any(), int64(1)).Return(storage.ErrCoffeeReferenced)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"coffee has purchases and cannot be deleted\"}\n",
			},
		},
		{
			name:   "Delete as non-admin",
			method: http.MethodDelete,
			path:   "/coffee/1",
			token:  userToken,
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(1)).Return(user, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusForbidden,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"admin privileges required\"}\n",
			},
		},
		{
			name:   "Successful delete",
			method: http.MethodDelete,
			path:   "/coffee/1",
			token:  adminToken,
			setupMock: func() {
				mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
				mockDB.EXPECT().DeleteCoffee(gomock.Any(), int64(1)).Return(nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusOK,
				expectedContentType: jsonContentType,
				expectedBody:        `{"message":"Coffee deleted successfully"}`,
			},
		},
	}

	runHandlerTests(t, testServer, testCases)

	t.Run("Successful add", func(t *testing.T) {
		mockDB.EXPECT().GetUserByID(gomock.Any(), int64(2)).Return(admin, nil)
		mockDB.EXPECT().CreateCoffee(gomock.Any(), gomock.AssignableToTypeOf(&models.Coffee{})).
			DoAndReturn(func(ctx context.Context, coffee *models.Coffee) (*models.Coffee, error) {
				created := *coffee
				created.ID = 1
				return &created, nil
			})

		resp, body := testRequest(t, testServer, http.MethodPost, "/coffee/", jsonContentType,
			[]byte(`{"name": "Espresso", "description": "Strong", "price": 3.5, "stock": 10}`), adminToken)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Contains(t, body, `"price":3.5`)
		assert.Contains(t, body, `"stock":10`)
	})
}

func TestPurchaseHandlers_Gomock(t *testing.T) {
	mockDB, tokens, testServer := newMockServer(t)
	mockDB.EXPECT().IsTokenRevoked(gomock.Any(), gomock.Any()).Return(false, nil).AnyTimes()
	mockDB.EXPECT().GetUserByID(gomock.Any(), int64(1)).Return(&models.User{ID: 1, Username: "alice"}, nil).AnyTimes()

	token, err := tokens.GenerateToken(1)
	require.NoError(t, err)

	purchase := &models.Purchase{
		ID:         1,
		UserID:     1,
		CoffeeID:   1,
		CoffeeName: "Espresso",
		Quantity:   3,
		TotalPrice: decimal.RequireFromString("10.5"),
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	testCases := []handlerTestCase{
		{
			name:        "Purchase without token",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			requestBody: []byte(`{"coffee_id": 1, "quantity": 1}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusUnauthorized,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"authorization token is required\"}\n",
			},
		},
		{
			name:        "Zero quantity",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			token:       token,
			requestBody: []byte(`{"coffee_id": 1, "quantity": 0}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"quantity must be positive\"}\n",
			},
		},
		{
			name:        "Missing coffee id",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			token:       token,
			requestBody: []byte(`{"quantity": 1}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"missing required fields\"}\n",
			},
		},
		{
			name:        "Unknown coffee",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			token:       token,
			requestBody: []byte(`{"coffee_id": 9, "quantity": 1}`),
			setupMock: func() {
				mockDB.EXPECT().BuyCoffee(gomock.Any(), int64(1), int64(9), 1).Return(nil, storage.ErrCoffeeNotFound)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusNotFound,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"coffee not found\"}\n",
			},
		},
		{
			name:        "Insufficient stock",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			token:       token,
			requestBody: []byte(`{"coffee_id": 1, "quantity": 11}`),
			setupMock: func() {
				mockDB.EXPECT().BuyCoffee(gomock.Any(), int64(1), int64(1), 11).Return(nil, storage.ErrInsufficientStock)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusBadRequest,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"insufficient stock\"}\n",
			},
		},
		{
			name:        "Successful purchase",
			method:      http.MethodPost,
			path:        "/purchase/",
			contentType: jsonContentType,
			token:       token,
			requestBody: []byte(`{"coffee_id": 1, "quantity": 3}`),
			setupMock: func() {
				mockDB.EXPECT().BuyCoffee(gomock.Any(), int64(1), int64(1), 3).Return(purchase, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusCreated,
				expectedContentType: jsonContentType,
				expectedBody:        `{"id":1,"user_id":1,"coffee_id":1,"coffee_name":"Espresso","quantity":3,"total_price":10.5,"purchase_date":"2024-05-01T12:00:00Z"}`,
			},
		},
		{
			name:   "History",
			method: http.MethodGet,
			path:   "/purchase/",
			token:  token,
			setupMock: func() {
				mockDB.EXPECT().GetPurchases(gomock.Any(), int64(1)).Return([]models.Purchase{*purchase}, nil)
			},
			expected: expectedData{
				expectedStatusCode:  http.StatusOK,
				expectedContentType: jsonContentType,
				expectedBody:        `[{"id":1,"user_id":1,"coffee_id":1,"coffee_name":"Espresso","quantity":3,"total_price":10.5,"purchase_date":"2024-05-01T12:00:00Z"}]`,
			},
		},
	}

	runHandlerTests(t, testServer, testCases)

	t.Run("Lock timeout is retryable", func(t *testing.T) {
		mockDB.EXPECT().BuyCoffee(gomock.Any(), int64(1), int64(1), 1).
			Return(nil, apperrors.Wrap(apperrors.ErrTransient, "", context.DeadlineExceeded))

		resp, body := testRequest(t, testServer, http.MethodPost, "/purchase/", jsonContentType, []byte(`{"coffee_id": 1, "quantity": 1}`), token)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "1", resp.Header.Get("Retry-After"))
		assert.Equal(t, "{\"error\":\"temporary store failure, retry later\"}\n", body)
	})
}

func TestLogoutHandler_Gomock(t *testing.T) {
	mockDB, tokens, testServer := newMockServer(t)

	token, err := tokens.GenerateToken(1)
	require.NoError(t, err)
	claims, err := tokens.ParseToken(token)
	require.NoError(t, err)

	gomock.InOrder(
		mockDB.EXPECT().IsTokenRevoked(gomock.Any(), claims.ID).Return(false, nil),
		mockDB.EXPECT().GetUserByID(gomock.Any(), int64(1)).Return(&models.User{ID: 1}, nil),
		mockDB.EXPECT().RevokeToken(gomock.Any(), claims.ID, gomock.Nil()).Return(nil),
		mockDB.EXPECT().IsTokenRevoked(gomock.Any(), claims.ID).Return(true, nil),
	)

	resp, body := testRequest(t, testServer, http.MethodPost, "/auth/logout", "", nil, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"message":"Successfully logged out"}`, body)

	resp, body = testRequest(t, testServer, http.MethodGet, "/purchase/", "", nil, token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "{\"error\":\"token has been revoked\"}\n", body)
}

func TestRevocationLookupFailure_Gomock(t *testing.T) {
	mockDB, tokens, testServer := newMockServer(t)

	token, err := tokens.GenerateToken(1)
	require.NoError(t, err)

	mockDB.EXPECT().IsTokenRevoked(gomock.Any(), gomock.Any()).
		Return(false, apperrors.Wrap(apperrors.ErrTransient, "", context.DeadlineExceeded))

	resp, _ := testRequest(t, testServer, http.MethodGet, "/purchase/", "", nil, token)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIndexHandler(t *testing.T) {
	_, _, testServer := newMockServer(t)

	resp, body := testRequest(t, testServer, http.MethodGet, "/", "", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jsonContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, body, `"message":"Coffee Shop API"`)
}

func TestUnmatchedRoutes(t *testing.T) {
	_, _, testServer := newMockServer(t)

	testCases := []handlerTestCase{
		{
			name:      "Unknown path",
			method:    http.MethodGet,
			path:      "/menu",
			setupMock: func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusNotFound,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"not found\"}\n",
			},
		},
		{
			name:      "Unknown path below a known prefix",
			method:    http.MethodGet,
			path:      "/coffee/1/reviews",
			setupMock: func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusNotFound,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"not found\"}\n",
			},
		},
		{
			name:        "Unsupported method on a coffee",
			method:      http.MethodPatch,
			path:        "/coffee/1",
			contentType: jsonContentType,
			requestBody: []byte(`{"stock": 5}`),
			setupMock:   func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusMethodNotAllowed,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"method not allowed\"}\n",
			},
		},
		{
			name:      "Unsupported method on registration",
			method:    http.MethodGet,
			path:      "/auth/register",
			setupMock: func() {},
			expected: expectedData{
				expectedStatusCode:  http.StatusMethodNotAllowed,
				expectedContentType: jsonContentType,
				expectedBody:        "{\"error\":\"method not allowed\"}\n",
			},
		},
	}

	runHandlerTests(t, testServer, testCases)
}
