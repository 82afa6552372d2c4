package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traveldiary/server/internal/middleware"
	"github.com/traveldiary/server/internal/models"
	"github.com/traveldiary/server/internal/pkg/jwt"
	"github.com/traveldiary/server/internal/testutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func init() {
	jwt.SetSecret("auth-test-secret")
}

func newTestRouter(t *testing.T) (*gin.Engine, *Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	svc := NewService(db, time.Hour)
	svc.hashCost = bcrypt.MinCost

	r := gin.New()
	NewHandler(svc, false).RegisterRoutes(r.Group("/api"), middleware.Auth())
	return r, svc, db
}

func do(r http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const aliceSignup = `{"name":"Alice","username":"Alice_1","email":"Alice@Example.com","mobileNumber":"5550001111","password":"secret1"}`

func TestSignup(t *testing.T) {
	r, _, db := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/auth/signup", aliceSignup, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body signupResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Account created successfully", body.Message)
	assert.Equal(t, "alice@example.com", body.Email)
	assert.Equal(t, "alice_1", body.Username)
	assert.NotEmpty(t, body.UID)

	var u models.UserModel
	require.NoError(t, db.First(&u, "id = ?", body.UID).Error)
	assert.True(t, u.IsActive)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestSignup_Validation(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/api/auth/signup",
		`{"name":"A","username":"a b","email":"nope","mobileNumber":"123","password":"123"}`, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Invalid input", body.Message)

	fields := make([]string, 0, len(body.Details))
	for _, d := range body.Details {
		fields = append(fields, d.Field)
	}
	assert.ElementsMatch(t, []string{"name", "username", "email", "mobileNumber", "password"}, fields)
}

func TestSignup_ConflictListsEveryField(t *testing.T) {
	r, _, _ := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/auth/signup", aliceSignup, "").Code)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/auth/signup",
		`{"name":"Bob","username":"bob","email":"bob@example.com","mobileNumber":"5550002222","password":"secret2"}`, "").Code)

	cases := []struct {
		name   string
		body   string
		fields []string
	}{
		{"email only", `{"name":"Eve","username":"eve","email":"alice@example.com","mobileNumber":"5550009999","password":"secret3"}`, []string{"email"}},
		{"username case-insensitive", `{"name":"Eve","username":"ALICE_1","email":"eve@example.com","mobileNumber":"5550009999","password":"secret3"}`, []string{"username"}},
		{"across two users", `{"name":"Eve","username":"bob","email":"alice@example.com","mobileNumber":"5550001111","password":"secret3"}`, []string{"email", "username", "mobileNumber"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/auth/signup", tc.body, "")
			require.Equal(t, http.StatusConflict, w.Code)
			var body struct {
				Message   string   `json:"message"`
				Conflicts []string `json:"conflicts"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "User already exists", body.Message)
			assert.Equal(t, tc.fields, body.Conflicts)
		})
	}
}

func TestLoginAndMe(t *testing.T) {
	r, _, db := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/auth/signup", aliceSignup, "").Code)

	w := do(r, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"wrong!"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(r, http.MethodPost, "/api/auth/login", `{"email":"ghost@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodPost, "/api/auth/login", `{"email":"ALICE@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login loginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	var cookie *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == middleware.TokenCookie {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)

	var u models.UserModel
	require.NoError(t, db.First(&u, "id = ?", login.UID).Error)
	assert.NotNil(t, u.LastLoginAt)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/auth/me", "", "").Code)

	w = do(r, http.MethodGet, "/api/auth/me", "", login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var me profileResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, login.UID, me.ID)
	assert.Equal(t, "5550001111", me.MobileNumber)

	w = do(r, http.MethodPatch, "/api/auth/me", `{"bio":"  trips  ","location":"Lisbon"}`, login.Token)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "trips", me.Bio)
	assert.Equal(t, "Lisbon", me.Location)
	assert.Equal(t, "Alice", me.Name)
}

func TestLogin_Inactive(t *testing.T) {
	r, _, db := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/auth/signup", aliceSignup, "").Code)
	require.NoError(t, db.Model(&models.UserModel{}).Where("email = ?", "alice@example.com").
		Update("is_active", false).Error)

	w := do(r, http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLogout(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/api/auth/logout", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.TokenCookie, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

// hideFirstLookup makes the pre-insert conflict check see no rows, so the
// insert itself hits the unique index. Later lookups fail when failAfter is set.
func hideFirstLookup(t *testing.T, db *gorm.DB, failAfter bool) {
	t.Helper()
	calls := 0
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:signup_race", func(tx *gorm.DB) {
		calls++
		switch {
		case calls == 1:
			tx.Statement.AddClause(clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "1 = 0"}}})
		case failAfter:
			_ = tx.AddError(errors.New("connection reset"))
		}
	}))
}

func TestSignup_InsertRace(t *testing.T) {
	cases := []struct {
		name      string
		failAfter bool
	}{
		{"reports conflicting fields", false},
		{"surfaces lookup failure", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, svc, db := newTestRouter(t)
			first := &SignupDTO{Name: "Alice", Username: "alice_1", Email: "alice@example.com", MobileNumber: "5550001111", Password: "secret1"}
			_, err := svc.Signup(context.Background(), first)
			require.NoError(t, err)

			hideFirstLookup(t, db, tc.failAfter)
			dup := &SignupDTO{Name: "Eve", Username: "eve", Email: "alice@example.com", MobileNumber: "5550009999", Password: "secret3"}
			_, err = svc.Signup(context.Background(), dup)
			require.Error(t, err)

			var conflict *ConflictError
			if tc.failAfter {
				assert.False(t, errors.As(err, &conflict))
				assert.Contains(t, err.Error(), "connection reset")
				return
			}
			require.True(t, errors.As(err, &conflict))
			assert.Equal(t, []string{"email"}, conflict.Fields)
		})
	}
}
