package tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/kimaro/shulebook/core/user"
	emailsvc "github.com/kimaro/shulebook/services/email"
	testutil "github.com/kimaro/shulebook/tests"
)

func Test_userApi_login(t *testing.T) {
	resetDB(t)

	usr := testutil.CreateUser(t, usrRepo, "Jane Doe", "jane", "jane@test.tz", "LeP@ssw0rd", user.RoleAdmin, true)
	testutil.CreateUser(t, usrRepo, "Numb", "numb", "numb@test.tz", "LeP@ssw0rd", user.RoleParent, false)

	tests := []httpTest{
		{
			name: "empty body", body: []byte("{}"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, map[string]string{"username": "lol", "password": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", body: marchallObj(t, map[string]string{"username": usr.Username, "password": "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, map[string]string{"username": "numb", "password": "LeP@ssw0rd"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", body: marchallObj(t, map[string]string{"username": usr.Username, "password": "LeP@ssw0rd"}),
			wantCode: http.StatusOK,
		},
		{
			name: "login with email", body: marchallObj(t, map[string]string{"username": usr.Email, "password": "LeP@ssw0rd"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				if !strings.Contains(rec.Body.String(), "token") {
					t.Errorf("expected a token in response; got %s", rec.Body.String())
				}
			}
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	resetDB(t)

	usr := testutil.CreateUser(t, usrRepo, "Jane Doe", "jane", "jane@test.tz", "0ldP@ssw0rd", user.RoleTeacher, true)

	// request: unknown emails get the same response, no mail goes out
	sent := len(emailsvc.SentMessages)
	body := marchallObj(t, map[string]string{"email": "ghost@test.tz"})
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-reset code = %v; want %v", rec.Code, http.StatusOK)
	}
	if len(emailsvc.SentMessages) != sent {
		t.Error("no mail should be sent for an unknown email")
	}

	// request: known email gets a reset mail with uid & token
	body = marchallObj(t, map[string]string{"email": usr.Email})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-reset code = %v; want %v", rec.Code, http.StatusOK)
	}
	if len(emailsvc.SentMessages) != sent+1 {
		t.Fatal("expected a password reset mail to be sent")
	}
	mail := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	uid := user.EncodeUID(usr)
	if !strings.Contains(mail.TextContent, uid) {
		t.Errorf("mail content should contain uid %q;\n%s", uid, mail.TextContent)
	}

	// confirm with a bad token
	data := user.ResetUserPassword{Token: "lol", UID: uid, Password: "n3wP@ssw0rd", PasswordConfirm: "n3wP@ssw0rd"}
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", marchallObj(t, data))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("password-reset-confirm code = %v; want %v", rec.Code, http.StatusBadRequest)
	}

	// confirm with the real token
	data.Token = user.MakeToken(usr)
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", marchallObj(t, data))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("password-reset-confirm code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// old password no longer works; new one does
	body = marchallObj(t, map[string]string{"username": usr.Username, "password": "0ldP@ssw0rd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("login with old password code = %v; want %v", rec.Code, http.StatusBadRequest)
	}
	body = marchallObj(t, map[string]string{"username": usr.Username, "password": "n3wP@ssw0rd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password code = %v; want %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func Test_userApi_query(t *testing.T) {
	resetDB(t)

	path := func(search, role string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if role != "" {
			v.Add("role", role)
		}
		return "/v1/users?" + v.Encode()
	}

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.tz", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.tz", "", user.RoleTeacher, true)
	parent := testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@test.tz", "", user.RoleParent, true)

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/v1/users", token: getToken(t, parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, admin, teacher, parent)},
		{name: "search (unknown)", path: path("lol", ""), token: adminToken, wantData: empty},
		{name: "search=teach", path: path("teach", ""), token: adminToken, wantData: marchallList(t, teacher)},
		{name: "role=parent", path: path("", user.RoleParent), token: adminToken, wantData: marchallList(t, parent)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_create(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.tz", "", user.RoleAdmin, true)
	parent := testutil.CreateUser(t, usrRepo, "Parent", "parent", "parent@test.tz", "", user.RoleParent, true)

	newUsr := func(uname, email, role string) []byte {
		return marchallObj(t, map[string]string{
			"name":             "New User",
			"username":         uname,
			"email":            email,
			"password":         "V3ry$ecret!",
			"password_confirm": "V3ry$ecret!",
			"role":             role,
		})
	}

	tests := []httpTest{
		{
			name: "Auth required", body: newUsr("u1", "u1@test.tz", user.RoleParent),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", body: newUsr("u1", "u1@test.tz", user.RoleParent), token: getToken(t, parent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "duplicate username", body: newUsr("admin", "u1@test.tz", user.RoleParent), token: getToken(t, admin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "cannot grant a higher role", body: newUsr("u1", "u1@test.tz", user.RoleSuperAdmin), token: getToken(t, admin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "not enough rights to set this role"}),
		},
		{
			name: "create", body: newUsr("u1", "u1@test.tz", user.RoleTeacher), token: getToken(t, admin),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
			} else if rec.Code != tt.wantCode {
				t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin", "admin@test.tz", "", user.RoleAdmin, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.tz", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.tz", "", user.RoleTeacher, true)

	adminToken := getToken(t, admin)
	teacherToken := getToken(t, teacher)

	// retrieve
	tests := []httpTest{
		{name: "retrieve: self", path: "/v1/users/" + teacher.ID, token: teacherToken, wantData: marchallObj(t, teacher)},
		{name: "retrieve: admin can fetch anyone", path: "/v1/users/" + teacher.ID, token: adminToken, wantData: marchallObj(t, teacher)},
		{
			name: "retrieve: others hidden", path: "/v1/users/" + other.ID, token: teacherToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// non-admin cannot flip admin-only fields
	t.Run("update: role change is admin-only", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"role": user.RoleAdmin})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+teacher.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("update: own name", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"name": "Renamed"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+teacher.ID, teacherToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "Renamed") {
			t.Errorf("expected updated name in response; got %s", rec.Body.String())
		}
	})

	t.Run("destroy: self-delete forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusForbidden)
		}
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+other.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
	})
}
