package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
	"github.com/trezcool/kanisa/core/report"
	emailsvc "github.com/trezcool/kanisa/services/email"
	dummydb "github.com/trezcool/kanisa/storage/database/dummy"
)

type testDeps struct {
	db      *dummydb.DB
	mbrRepo member.Repository
	svc     report.Service
}

func setup(t *testing.T) testDeps {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	mbrRepo := dummydb.NewMemberRepository(db)
	evtRepo := dummydb.NewEventRepository(db)
	pubRepo := dummydb.NewPublicationRepository(db)

	conf := &core.Config{}
	conf.Report.TrendLength = 5

	svc := report.NewService(mbrRepo, evtRepo, pubRepo, nil, conf)
	return testDeps{db: db, mbrRepo: mbrRepo, svc: svc}
}

func createMember(t *testing.T, repo member.Repository, id, name, role string) member.Member {
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
	mbr, err := repo.CreateMember(context.Background(), mbr)
	if err != nil {
		t.Fatalf("createMember() failed: %v", err)
	}
	return mbr
}

func date(day int) time.Time {
	return time.Date(2026, 3, day, 10, 0, 0, 0, time.UTC)
}

func TestService_ResolveScope(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)
	regHead := createMember(t, deps.mbrRepo, "rh", "Regina", member.RoleMember)
	famHead := createMember(t, deps.mbrRepo, "fh", "Frank", member.RoleMember)
	plain := createMember(t, deps.mbrRepo, "pl", "Paul", member.RoleMember)

	deps.db.AddRegion(member.Region{ID: "reg1", Name: "Wandegeya", HeadID: regHead.ID})
	deps.db.AddFamily(member.Family{ID: "fam1", Name: "Agape", HeadID: famHead.ID, IsActive: true})
	deps.db.AddFamily(member.Family{ID: "fam2", Name: "Closed", HeadID: famHead.ID, IsActive: false})

	scope, err := deps.svc.ResolveScope(ctx, "mgr")
	require.NoError(t, err)
	assert.Equal(t, report.Scope{Role: report.RoleFellowshipManager}, scope)

	scope, err = deps.svc.ResolveScope(ctx, regHead.ID)
	require.NoError(t, err)
	assert.Equal(t, report.RoleRegionalHead, scope.Role)
	assert.Equal(t, "Wandegeya", scope.RegionName)

	scope, err = deps.svc.ResolveScope(ctx, famHead.ID)
	require.NoError(t, err)
	assert.Equal(t, report.RoleFamilyHead, scope.Role)
	assert.Equal(t, []string{"fam1"}, scope.FamilyIDs)

	scope, err = deps.svc.ResolveScope(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, member.RoleMember, scope.Role)

	_, err = deps.svc.ResolveScope(ctx, "ghost")
	assert.Equal(t, member.ErrNotFound, err)
}

func TestService_EventReport_publicationGate(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)
	famHead := createMember(t, deps.mbrRepo, "fh", "Frank", member.RoleMember)
	plain := createMember(t, deps.mbrRepo, "pl", "Paul", member.RoleMember)
	deps.db.AddFamily(member.Family{ID: "fam1", Name: "Agape", HeadID: famHead.ID, IsActive: true})
	deps.db.AddFamily(member.Family{ID: "fam2", Name: "Bereans", IsActive: true})
	deps.db.AddFamilyMembership("m1", "fam1", true)
	deps.db.AddFamilyMembership("m2", "fam2", true)
	deps.db.AddFamilyMembership("m3", "fam1", false) // deactivated membership

	deps.db.AddEvent(event.Event{ID: "e1", Name: "Sunday Service", Type: "sunday", Date: date(8), Status: event.StatusPast})
	deps.db.AddAttendance(event.Attendance{ID: "a1", EventID: "e1", MemberID: "m1"})
	deps.db.AddAttendance(event.Attendance{ID: "a2", EventID: "e1", MemberID: "m2"})
	deps.db.AddAttendance(event.Attendance{ID: "a3", EventID: "e1", IsGuest: true, GuestName: "Visitor"})
	deps.db.AddAttendance(event.Attendance{ID: "a4", EventID: "e1", MemberID: "m3"})

	// managers see their own drafts
	res, err := deps.svc.EventReport(ctx, mgr.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalAttendance)
	assert.Equal(t, "Entire Fellowship", res.Scope)

	// unpublished: leaders refused before any aggregation
	_, err = deps.svc.EventReport(ctx, famHead.ID, "e1")
	assert.Equal(t, report.ErrReportUnavailable, err)

	_, err = deps.svc.Publish(ctx, mgr.ID, "e1")
	require.NoError(t, err)

	// published: family head sees only their population; m3's deactivated
	// membership does not count towards it
	res, err = deps.svc.EventReport(ctx, famHead.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalAttendance)
	assert.Equal(t, "Agape", res.Scope)

	// published or not, members without scope are refused
	_, err = deps.svc.EventReport(ctx, plain.ID, "e1")
	assert.Equal(t, report.ErrNoReportScope, err)

	// unknown event
	_, err = deps.svc.EventReport(ctx, mgr.ID, "ghost")
	assert.Equal(t, event.ErrNotFound, err)
}

func TestService_EventReport_scopedLeaders(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)
	regHead := createMember(t, deps.mbrRepo, "rh", "Regina", member.RoleMember)
	teamLead := createMember(t, deps.mbrRepo, "tl", "Tina", member.RoleMember)

	deps.db.AddRegion(member.Region{ID: "reg1", Name: "Wandegeya", HeadID: regHead.ID})
	deps.db.AddTeam(member.Team{ID: "t1", Name: "Ushers", LeaderID: teamLead.ID})
	deps.db.AddTeamMembership("m1", "t1", true)
	deps.db.AddTeamMembership("m3", "t1", false) // deactivated membership

	deps.db.AddEvent(event.Event{ID: "e1", Name: "Sunday Service", Type: "sunday", Date: date(8), Status: event.StatusPast})
	deps.db.AddAttendance(event.Attendance{ID: "a1", EventID: "e1", MemberID: "m1", RegionID: "reg1", RegionName: "Wandegeya"})
	deps.db.AddAttendance(event.Attendance{ID: "a2", EventID: "e1", MemberID: "m2", RegionID: "reg2", RegionName: "Kikoni"})
	deps.db.AddAttendance(event.Attendance{ID: "a3", EventID: "e1", MemberID: "m3", RegionID: "reg1", RegionName: "Wandegeya"})
	deps.db.AddAttendance(event.Attendance{ID: "a4", EventID: "e1", IsGuest: true, GuestName: "Visitor"})

	_, err := deps.svc.Publish(ctx, mgr.ID, "e1")
	require.NoError(t, err)

	// a regional head sees every member of their region and nobody else
	res, err := deps.svc.EventReport(ctx, regHead.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalAttendance)
	assert.Equal(t, "Wandegeya", res.Scope)
	assert.Equal(t, report.Breakdown{"Wandegeya": 2}, res.Region)
	assert.Equal(t, 0, res.GuestCount)

	// a team leader sees only members with an active membership in their team
	res, err = deps.svc.EventReport(ctx, teamLead.ID, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalAttendance)
	assert.Equal(t, "Ushers", res.Scope)
	assert.Equal(t, report.Breakdown{"Ushers": 1}, res.Team)
}

func TestService_EventReport_trend(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)

	deps.db.AddEvent(event.Event{ID: "d1", Name: "Sunday Service", Type: "sunday", Date: date(1)})
	deps.db.AddEvent(event.Event{ID: "d2", Name: "Sunday Service", Type: "sunday", Date: date(8)})
	// a different type never enters the comparison
	deps.db.AddEvent(event.Event{ID: "x1", Name: "Overnight", Type: "overnight", Date: date(5)})

	for i, eid := range []string{"d1", "d1", "d1", "d1", "d2", "d2", "d2", "d2", "d2"} {
		deps.db.AddAttendance(event.Attendance{ID: string(rune('a' + i)), EventID: eid, MemberID: "m1"})
	}
	deps.db.AddAttendance(event.Attendance{ID: "x", EventID: "x1", MemberID: "m1"})

	res, err := deps.svc.EventReport(ctx, mgr.ID, "d2")
	require.NoError(t, err)
	require.NotNil(t, res.Trend)

	trend := res.Trend
	assert.Equal(t, "d1", trend.PreviousEventID)
	assert.Equal(t, 4, trend.PreviousAttendance)
	assert.Equal(t, 1, trend.Difference)
	require.True(t, trend.PercentChange.Valid)
	assert.Equal(t, 25, trend.PercentChange.Int)

	// series runs oldest to newest with the current event last
	require.Len(t, trend.Series, 2)
	assert.Equal(t, "d1", trend.Series[0].EventID)
	assert.Equal(t, "d2", trend.Series[1].EventID)
	assert.Equal(t, 5, trend.Series[1].Attendance)

	// the oldest event of its type has no trend
	res, err = deps.svc.EventReport(ctx, mgr.ID, "d1")
	require.NoError(t, err)
	assert.Nil(t, res.Trend)
}

func TestService_Compare_zeroPreviousAttendance(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)

	deps.db.AddEvent(event.Event{ID: "d1", Name: "Sunday Service", Type: "sunday", Date: date(1)})
	deps.db.AddEvent(event.Event{ID: "d2", Name: "Sunday Service", Type: "sunday", Date: date(8)})
	deps.db.AddAttendance(event.Attendance{ID: "a1", EventID: "d2", MemberID: "m1"})

	trend, err := deps.svc.Compare(ctx, mgr.ID, "d2")
	require.NoError(t, err)
	assert.Equal(t, 0, trend.PreviousAttendance)
	assert.Equal(t, 1, trend.Difference)
	// percent change over an empty previous event stays null
	assert.False(t, trend.PercentChange.Valid)
}

func TestService_Publish_Unpublish(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)
	famHead := createMember(t, deps.mbrRepo, "fh", "Frank", member.RoleMember)
	deps.db.AddFamily(member.Family{ID: "fam1", Name: "Agape", HeadID: famHead.ID, IsActive: true})
	deps.db.AddEvent(event.Event{ID: "e1", Name: "Sunday Service", Type: "sunday", Date: date(8)})

	// never published reads as unpublished
	pub, err := deps.svc.Status(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, pub.IsPublished)
	assert.False(t, pub.PublishedAt.Valid)

	// non-managers cannot publish
	_, err = deps.svc.Publish(ctx, famHead.ID, "e1")
	assert.Equal(t, report.ErrManagerOnly, err)

	pub, err = deps.svc.Publish(ctx, mgr.ID, "e1")
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)
	assert.True(t, pub.PublishedAt.Valid)
	assert.Equal(t, mgr.ID, pub.PublisherID.String)
	assert.Equal(t, "Boss", pub.Publisher)
	firstPublishedAt := pub.PublishedAt.Time

	// re-publishing is not an error and refreshes the timestamp
	time.Sleep(10 * time.Millisecond)
	pub, err = deps.svc.Publish(ctx, mgr.ID, "e1")
	require.NoError(t, err)
	assert.True(t, pub.IsPublished)
	assert.True(t, pub.PublishedAt.Time.After(firstPublishedAt))

	pub, err = deps.svc.Unpublish(ctx, mgr.ID, "e1")
	require.NoError(t, err)
	assert.False(t, pub.IsPublished)
	assert.False(t, pub.PublishedAt.Valid)
	assert.False(t, pub.PublisherID.Valid)

	// leaders lose access again
	_, err = deps.svc.EventReport(ctx, famHead.ID, "e1")
	assert.Equal(t, report.ErrReportUnavailable, err)

	// publishing an unknown event
	_, err = deps.svc.Publish(ctx, mgr.ID, "ghost")
	assert.Equal(t, event.ErrNotFound, err)

	// an event that has not taken place yet has no report to publish
	deps.db.AddEvent(event.Event{ID: "e2", Name: "Retreat", Type: "retreat", Date: time.Now().Add(72 * time.Hour), Status: event.StatusUpcoming})
	_, err = deps.svc.Publish(ctx, mgr.ID, "e2")
	assert.IsType(t, &core.ValidationError{}, err)
}

func TestService_Publish_notifications(t *testing.T) {
	db, err := dummydb.Open()
	require.NoError(t, err)
	mbrRepo := dummydb.NewMemberRepository(db)
	evtRepo := dummydb.NewEventRepository(db)
	pubRepo := dummydb.NewPublicationRepository(db)

	conf := &core.Config{AppName: "Kanisa"}
	conf.Report.TrendLength = 5
	conf.Report.NotifyEmails = []string{"leaders@test.ug"}
	core.Conf = conf

	emailsvc.SentMessages = nil
	mailSvc := emailsvc.NewConsoleServiceMock()
	svc := report.NewService(mbrRepo, evtRepo, pubRepo, mailSvc, conf)

	mgr := createMember(t, mbrRepo, "mgr", "Boss", member.RoleManager)
	db.AddEvent(event.Event{ID: "e1", Name: "Sunday Service", Type: "sunday", Date: date(8), Status: event.StatusPast})

	ctx := context.Background()
	_, err = svc.Publish(ctx, mgr.ID, "e1")
	require.NoError(t, err)

	require.Len(t, emailsvc.SentMessages, 1)
	msg := emailsvc.SentMessages[0]
	assert.Equal(t, "Attendance report published: Sunday Service", msg.Subject)
	require.Len(t, msg.To, 1)
	assert.Equal(t, "leaders@test.ug", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "now available")

	_, err = svc.Unpublish(ctx, mgr.ID, "e1")
	require.NoError(t, err)

	require.Len(t, emailsvc.SentMessages, 2)
	msg = emailsvc.SentMessages[1]
	assert.Equal(t, "Attendance report revoked: Sunday Service", msg.Subject)
	assert.Contains(t, msg.TextContent, "no longer available")
}

func TestService_RangeReport(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	mgr := createMember(t, deps.mbrRepo, "mgr", "Boss", member.RoleManager)
	famHead := createMember(t, deps.mbrRepo, "fh", "Frank", member.RoleMember)
	deps.db.AddFamily(member.Family{ID: "fam1", Name: "Agape", HeadID: famHead.ID, IsActive: true})

	deps.db.AddEvent(event.Event{ID: "d1", Name: "Sunday Service", Type: "sunday", Date: date(1)})
	deps.db.AddEvent(event.Event{ID: "d2", Name: "Sunday Service", Type: "sunday", Date: date(8)})
	deps.db.AddAttendance(event.Attendance{ID: "a1", EventID: "d1", MemberID: "m1", RegionID: "reg1", RegionName: "Wandegeya"})
	deps.db.AddAttendance(event.Attendance{ID: "a2", EventID: "d1", MemberID: "m2", RegionID: "reg2", RegionName: "Kikoni"})
	deps.db.AddAttendance(event.Attendance{ID: "a3", EventID: "d2", MemberID: "m1", RegionID: "reg1", RegionName: "Wandegeya"})

	q := report.RangeQuery{From: date(1), To: date(9)}
	res, err := deps.svc.RangeReport(ctx, mgr.ID, q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalEvents)
	assert.Equal(t, 3, res.TotalAttendance)
	assert.Equal(t, 2, res.AverageAttendance)
	assert.Equal(t, 2, res.DistinctMembers)

	// narrowing to a region
	q = report.RangeQuery{From: date(1), To: date(9), RegionID: "reg1"}
	res, err = deps.svc.RangeReport(ctx, mgr.ID, q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalAttendance)
	assert.Equal(t, 1, res.DistinctMembers)

	// zero events in range is an empty report, not an error
	q = report.RangeQuery{From: date(20), To: date(25)}
	res, err = deps.svc.RangeReport(ctx, mgr.ID, q)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalEvents)
	assert.Equal(t, 0, res.TotalAttendance)
	assert.NotNil(t, res.Gender)

	// a scoped leader cannot widen their population with a region param
	q = report.RangeQuery{From: date(1), To: date(9), RegionID: "reg1"}
	_, err = deps.svc.RangeReport(ctx, famHead.ID, q)
	assert.Equal(t, report.ErrNoReportScope, err)

	// end before start
	q = report.RangeQuery{From: date(9), To: date(1)}
	_, err = deps.svc.RangeReport(ctx, mgr.ID, q)
	assert.IsType(t, &core.ValidationError{}, err)

	// range must not start in the future
	q = report.RangeQuery{From: time.Now().Add(48 * time.Hour), To: time.Now().Add(72 * time.Hour)}
	_, err = deps.svc.RangeReport(ctx, mgr.ID, q)
	assert.IsType(t, &core.ValidationError{}, err)
}
