package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kanisa/core/member"
)

func Test_memberApi_login(t *testing.T) {
	srv := setup(t)

	mbr := createMember(t, srv.mbrRepo, "jdoe", "Jane Doe", member.RoleMember, "LePassword")

	deactivated := createMember(t, srv.mbrRepo, "gone", "Gone Member", member.RoleMember, "LePassword")
	deactivated.SetActive(false)
	if _, err := srv.mbrRepo.UpdateMember(context.Background(), deactivated); err != nil {
		t.Fatalf("UpdateMember() failed: %v", err)
	}

	tests := []httpTest{
		{
			name: "empty body", method: http.MethodPost, path: "/v1/members/login",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown member", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, LoginRequest{Username: "ghost", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, LoginRequest{Username: mbr.Username, Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", method: http.MethodPost, path: "/v1/members/login",
			body:     marchallObj(t, LoginRequest{Username: deactivated.Username, Password: "LePassword"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid credentials return a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/members/login",
			marchallObj(t, LoginRequest{Username: mbr.Username, Password: "LePassword"}))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.NotEmpty(t, res.Token)

		// the token works against an authed endpoint
		req, rec = newAuthRequest(http.MethodGet, "/v1/members/me", res.Token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var me member.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
		assert.Equal(t, mbr.ID, me.ID)
	})

	t.Run("email logs in too", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/members/login",
			marchallObj(t, LoginRequest{Username: mbr.Email, Password: "LePassword"}))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func Test_memberApi_managerOnly(t *testing.T) {
	srv := setup(t)

	mgr := createMember(t, srv.mbrRepo, "mgr", "Boss", member.RoleManager, "")
	plain := createMember(t, srv.mbrRepo, "pl", "Paul", member.RoleMember, "")

	tests := []httpTest{
		{
			name: "query requires auth", method: http.MethodGet, path: "/v1/members",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "query refused for non-managers", method: http.MethodGet, path: "/v1/members",
			token:    getToken(t, plain),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "retrieve refused for non-managers", method: http.MethodGet, path: "/v1/members/" + mgr.ID,
			token:    getToken(t, plain),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "retrieve unknown member", method: http.MethodGet, path: "/v1/members/ghost",
			token:    getToken(t, mgr),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("manager queries members", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/members", getToken(t, mgr))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var members []member.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
		assert.Len(t, members, 2)
	})

	t.Run("manager registers a member", func(t *testing.T) {
		body := marchallObj(t, member.NewMember{
			Name:            "New Member",
			Username:        "newbie",
			Email:           "newbie@test.ug",
			Password:        "LePassword",
			PasswordConfirm: "LePassword",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/register", getToken(t, mgr), body)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var created member.Member
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "newbie", created.Username)
		assert.Equal(t, member.RoleMember, created.Role)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		body := marchallObj(t, member.NewMember{
			Name:            "Clone",
			Username:        plain.Username,
			Email:           "clone@test.ug",
			Password:        "LePassword",
			PasswordConfirm: "LePassword",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/members/register", getToken(t, mgr), body)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
