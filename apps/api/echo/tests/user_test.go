package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/catechism/apps/api/echo"
	"github.com/trezcool/catechism/core/user"
	"github.com/trezcool/catechism/tests"
)

const pwd = "Pass1234!"

func Test_userApi_login(t *testing.T) {
	resetDB()

	usr := testutil.CreateUser(t, usrRepo, "Joe", "joe", "joe@catechism.test", pwd, []string{user.RoleCatechist}, true)
	_ = testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@catechism.test", pwd, nil, false)

	tests := []httpTest{
		{
			name: "Missing fields", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/users/login", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, LoginRequest{Username: "ghost", Password: pwd}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/users/login", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, LoginRequest{Username: "joe", Password: "nope"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated", method: http.MethodPost, path: "/v1/users/login", wantCode: http.StatusForbidden,
			body:     marchallObj(t, LoginRequest{Username: "ndog", Password: pwd}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, tests)

	for _, uname := range []string{"joe", " JOE@catechism.test "} {
		t.Run("Success "+uname, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marchallObj(t, LoginRequest{Username: uname, Password: pwd}))
			app.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var res LoginResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			token, err := jwt.ParseWithClaims(res.Token, new(Claims), func(*jwt.Token) (interface{}, error) {
				return []byte(conf.SecretKey), nil
			})
			require.NoError(t, err)
			claims := token.Claims.(*Claims)
			assert.Equal(t, usr.ID, claims.Subject)
			assert.Equal(t, []string{user.RoleCatechist}, claims.Roles)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	resetDB()

	usr := testutil.CreateUser(t, usrRepo, "Joe", "joe", "joe@catechism.test", pwd, nil, true)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndog", "ndog@catechism.test", pwd, nil, false)

	expiredRefresh := GetUserClaims(conf, usr, time.Now().Add(-conf.JWTRefreshExpirationDelta-time.Minute).Unix())
	expiredToken, err := GenerateToken(conf, expiredRefresh)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Deactivated", method: http.MethodPost, path: "/v1/users/token-refresh", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh", token: expiredToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	}
	runHTTPTests(t, tests)

	t.Run("Success", func(t *testing.T) {
		orig := GetUserClaims(conf, usr, time.Now().Add(-time.Hour).Unix())
		token, err := GenerateToken(conf, orig)
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		refreshed, err := jwt.ParseWithClaims(res.Token, new(Claims), func(*jwt.Token) (interface{}, error) {
			return []byte(conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, orig.OrigIssuedAt, refreshed.Claims.(*Claims).OrigIssuedAt)
	})
}

func Test_userApi_me(t *testing.T) {
	resetDB()

	usr := testutil.CreateUser(t, usrRepo, "Joe", "joe", "joe@catechism.test", pwd, []string{user.RoleParent}, true)
	ghost := user.User{ID: "00000000-0000-0000-0000-000000000000", Username: "ghost"}

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Invalid token", path: "/v1/users/me", token: "abc.def.ghi", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"})},
		{name: "Unknown user", path: "/v1/users/me", token: getToken(t, ghost), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})},
		{name: "Success", path: "/v1/users/me", token: getToken(t, usr), wantData: marchallObj(t, usr)},
	}
	runHTTPTests(t, tests)
}

func Test_userApi_query(t *testing.T) {
	resetDB()

	now := time.Now()
	usr1 := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@catechism.test", "", nil, true, now.Add(time.Hour))
	parent := testutil.CreateUser(t, usrRepo, "King", "user02", "king@catechism.test", "", []string{user.RoleParent}, true, now)
	student := testutil.CreateUser(t, usrRepo, "Hero", "hero", "user3@catechism.test", "", []string{user.RoleStudent}, true, now.Add(-time.Hour))
	catechist := testutil.CreateUser(t, usrRepo, "Catechist", "catechist", "catechist@catechism.test", "", []string{user.RoleCatechist}, true, now.Add(-2*time.Hour))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@catechism.test", "", []string{user.RoleAdmin}, true, now.Add(2*time.Hour))
	principal := testutil.CreateUser(t, usrRepo, "Principal", "princip", "princip@catechism.test", "", []string{user.RoleAdminPrincipal}, true, now.Add(-3*time.Hour))

	adminToken := getToken(t, admin)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Catechist forbidden", path: "/v1/users", token: getToken(t, catechist), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, admin, usr1, parent, student, catechist, principal)},
		{name: "search=USE", path: "/v1/users?search=USE", token: adminToken, wantData: marchallList(t, usr1, parent, student)},
		{name: "role=admin:", path: "/v1/users?role=admin:", token: adminToken, wantData: marchallList(t, admin, principal)},
		{name: "search (unknown)", path: "/v1/users?search=lol", token: adminToken, wantData: marchallList(t)},
		{name: "order by name", path: "/v1/users?ordering=name", token: adminToken, wantData: marchallList(t, admin, catechist, student, parent, principal, usr1)},
		{name: "Roles", path: "/v1/users/roles", token: adminToken, wantData: marchallObj(t, user.Roles)},
		{name: "Roles forbidden", path: "/v1/users/roles", token: getToken(t, parent), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
	}
	runHTTPTests(t, tests)
}

func Test_userApi_create(t *testing.T) {
	resetDB()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@catechism.test", "", []string{user.RoleAdmin}, true)
	catechist := testutil.CreateUser(t, usrRepo, "Catechist", "catechist", "catechist@catechism.test", "", []string{user.RoleCatechist}, true)
	adminToken := getToken(t, admin)

	newUser := func(uname, email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name: "New User", Username: uname, Email: email, Password: "Str0ng!Secret", PasswordConfirm: "Str0ng!Secret", Roles: roles,
		})
	}

	tests := []httpTest{
		{
			name: "Catechist forbidden", method: http.MethodPost, path: "/v1/users/register", body: newUser("newbie", ""),
			token: getToken(t, catechist), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Username taken", method: http.MethodPost, path: "/v1/users/register", body: newUser("catechist", ""),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "Weak password", method: http.MethodPost, path: "/v1/users/register", token: adminToken, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Name: "Weak", Username: "weakling", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, map[string]string{"password": user.PasswordPolicyText("pwdnotallnum")}),
		},
		{
			name: "Role above own", method: http.MethodPost, path: "/v1/users/register", body: newUser("newbie", "", user.RoleAdminPrincipal),
			token: adminToken, wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
	}
	runHTTPTests(t, tests)

	t.Run("Success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, newUser("NewCatechist", "new@catechism.test", user.RoleCatechist))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created user.User
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "newcatechist", created.Username)
		assert.True(t, created.IsActive)
		assert.Equal(t, []string{user.RoleCatechist}, created.Roles)
		assert.NotContains(t, rec.Body.String(), "password")

		stored, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: created.ID})
		require.NoError(t, err)
		assert.NoError(t, stored.CheckPassword("Str0ng!Secret"))
	})
}
