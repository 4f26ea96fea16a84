package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
	"github.com/trezcool/kanisa/core/report"
	dummydb "github.com/trezcool/kanisa/storage/database/dummy"
)

type testServer struct {
	Server
	db      *dummydb.DB
	mbrRepo member.Repository
}

// nopLogger silences the error handler in tests.
type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) testServer {
	conf := &core.Config{
		TestMode:  true,
		AppName:   "Kanisa",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Report: core.ReportConfig{TrendLength: 5},
	}
	core.Conf = conf

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	mbrRepo := dummydb.NewMemberRepository(db)
	evtRepo := dummydb.NewEventRepository(db)
	pubRepo := dummydb.NewPublicationRepository(db)

	mbrSvc := member.NewService(mbrRepo)
	rptSvc := report.NewService(mbrRepo, evtRepo, pubRepo, nil, conf)

	srv := NewServer(ServerDeps{
		Conf:      conf,
		Logger:    nopLogger{},
		MemberSvc: mbrSvc,
		ReportSvc: rptSvc,
	})
	return testServer{Server: srv, db: db, mbrRepo: mbrRepo}
}

func createMember(t *testing.T, repo member.Repository, id, name, role, pwd string) member.Member {
	now := time.Now().UTC()
	mbr := member.Member{
		ID:        id,
		Name:      name,
		Username:  id,
		Email:     id + "@test.ug",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	mbr.SetActive(true)
	if pwd != "" {
		if err := mbr.SetPassword(pwd); err != nil {
			t.Fatalf("createMember() failed: %v", err)
		}
	}
	mbr, err := repo.CreateMember(context.Background(), mbr)
	if err != nil {
		t.Fatalf("createMember() failed: %v", err)
	}
	return mbr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, mbr member.Member) string {
	claims := GetMemberClaims(mbr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// seedEventWithAttendance seeds a past event with two members and a guest.
// Callers seed "fam1" themselves (it carries their family head).
func seedEventWithAttendance(db *dummydb.DB) {
	db.AddFamily(member.Family{ID: "fam2", Name: "Bereans", IsActive: true})
	db.AddFamilyMembership("m1", "fam1", true)
	db.AddFamilyMembership("m2", "fam2", true)
	db.AddEvent(event.Event{ID: "e1", Name: "Sunday Service", Type: "sunday", Date: time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC), Status: event.StatusPast})
	db.AddAttendance(event.Attendance{ID: "a1", EventID: "e1", MemberID: "m1", Gender: "F"})
	db.AddAttendance(event.Attendance{ID: "a2", EventID: "e1", MemberID: "m2", Gender: "M"})
	db.AddAttendance(event.Attendance{ID: "a3", EventID: "e1", IsGuest: true, GuestName: "Visitor", Gender: "F", FirstTimer: true})
}
