package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/restausimplon/api/internal/config"
	"github.com/restausimplon/api/internal/hash"
	authmw "github.com/restausimplon/api/internal/middleware/auth"
	"github.com/restausimplon/api/internal/models"
)

func InitTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

var testSecret = []byte("test-secret")

func seedUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	pwHash, err := hash.HashPassword("password")
	require.NoError(t, err)
	u := models.User{
		FirstName:    "Test",
		LastName:     "User",
		Email:        email,
		Role:         role,
		PasswordHash: pwHash,
	}
	require.NoError(t, db.Create(&u).Error)
	return &u
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64) *models.Product {
	t.Helper()
	p := models.Product{
		Name:      name,
		UnitPrice: price,
		Category:  models.CategoryPlatPrincipal,
		Stock:     10,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

// newContext builds an echo context with a JSON body and an authenticated
// caller, the way the auth middleware would have left it.
func newContext(t *testing.T, method, path string, body any, caller *models.User) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	e := echo.New()
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if caller != nil {
		authmw.SetCurrentUser(c, caller)
	}
	return c, rec
}

func requireHTTPError(t *testing.T, err error, code int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
	return he
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
