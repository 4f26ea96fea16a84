package report

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kanisa/core"
	"github.com/trezcool/kanisa/core/event"
	"github.com/trezcool/kanisa/core/member"
)

var (
	// errors
	ErrPublicationNotFound = errors.New("publication not found")
)

type (
	// PublicationRepository persists per-event report publications. Concurrent
	// writes on the same event are serialized by a single atomic upsert keyed
	// by event id; the last writer's state and timestamp are authoritative.
	PublicationRepository interface {
		GetPublication(ctx context.Context, eventID string) (Publication, error)
		UpsertPublication(ctx context.Context, pub Publication) (Publication, error)
	}

	Service struct {
		members member.Repository
		events  event.Repository
		pubs    PublicationRepository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(
	members member.Repository,
	events event.Repository,
	pubs PublicationRepository,
	mailSvc core.EmailService,
	conf *core.Config,
) Service {
	return Service{
		members: members,
		events:  events,
		pubs:    pubs,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

// ResolveScope determines the viewer's leadership scope. The scope is
// recomputed on every call and is only valid for the request that made it.
func (svc Service) ResolveScope(ctx context.Context, viewerID string) (Scope, error) {
	mbr, err := svc.members.GetMember(ctx, member.GetFilter{ID: viewerID})
	if err != nil {
		return Scope{}, err
	}
	if mbr.IsManager() {
		return Scope{Role: RoleFellowshipManager}, nil
	}
	hs, err := svc.members.GetHeadships(ctx, mbr.ID)
	if err != nil {
		return Scope{}, errors.Wrap(err, "getting headships")
	}
	return resolveScope(mbr, hs), nil
}

// EventReport computes the full attendance report for a single event,
// restricted to the viewer's scope. Non-managers are refused until the
// event's report is published; the gate runs before any aggregation so that
// unpublished data leaks neither shape nor timing.
func (svc Service) EventReport(ctx context.Context, viewerID, eventID string) (Result, error) {
	scope, err := svc.ResolveScope(ctx, viewerID)
	if err != nil {
		return Result{}, err
	}

	ev, err := svc.events.GetEvent(ctx, eventID)
	if err != nil {
		return Result{}, err
	}

	if err = svc.gate(ctx, scope, ev.ID); err != nil {
		return Result{}, err
	}

	flt, err := BuildMemberFilter(scope)
	if err != nil {
		return Result{}, err
	}

	atts, err := svc.events.QueryAttendance(ctx, event.AttendanceFilter{EventID: ev.ID, Members: flt})
	if err != nil {
		return Result{}, errors.Wrap(err, "querying attendance")
	}

	res := tally(atts)
	res.EventID = ev.ID
	res.EventName = ev.Name
	res.EventType = ev.Type
	res.EventDate = ev.Date
	res.Scope = DescribeScope(scope)
	res.Fingerprint = fingerprint("event:"+ev.ID, scope)

	trend, err := svc.buildTrend(ctx, ev, flt, res.TotalAttendance)
	if err != nil {
		return Result{}, err
	}
	res.Trend = trend

	return res, nil
}

// Compare returns only the comparative trend for an event, under the same
// gating as the full report.
func (svc Service) Compare(ctx context.Context, viewerID, eventID string) (Trend, error) {
	scope, err := svc.ResolveScope(ctx, viewerID)
	if err != nil {
		return Trend{}, err
	}

	ev, err := svc.events.GetEvent(ctx, eventID)
	if err != nil {
		return Trend{}, err
	}

	if err = svc.gate(ctx, scope, ev.ID); err != nil {
		return Trend{}, err
	}

	flt, err := BuildMemberFilter(scope)
	if err != nil {
		return Trend{}, err
	}

	counts, err := svc.events.CountAttendance(ctx, []string{ev.ID}, flt)
	if err != nil {
		return Trend{}, errors.Wrap(err, "counting attendance")
	}

	trend, err := svc.buildTrend(ctx, ev, flt, counts[ev.ID])
	if err != nil {
		return Trend{}, err
	}
	if trend == nil {
		return Trend{Series: []TrendPoint{}}, nil
	}
	return *trend, nil
}

// RangeReport aggregates attendance over every event in a date range. There
// is no publication gate on this surface; routing restricts it to managers,
// and the scope filter still applies.
func (svc Service) RangeReport(ctx context.Context, viewerID string, q RangeQuery) (RangeResult, error) {
	scope, err := svc.ResolveScope(ctx, viewerID)
	if err != nil {
		return RangeResult{}, err
	}

	if err = q.Validate(); err != nil {
		return RangeResult{}, err
	}

	flt, err := BuildMemberFilter(scope)
	if err != nil {
		return RangeResult{}, err
	}
	if q.RegionID != "" && !flt.All {
		// a scoped leader cannot widen their population with a region param
		return RangeResult{}, ErrNoReportScope
	}

	evts, err := svc.events.QueryEvents(ctx, event.QueryFilter{Type: q.Type, From: q.From, To: q.To})
	if err != nil {
		return RangeResult{}, errors.Wrap(err, "querying events")
	}

	key := fmt.Sprintf("range:%s:%s:%s:%s", q.From.UTC().Format(time.RFC3339), q.To.UTC().Format(time.RFC3339), q.Type, q.RegionID)
	res := RangeResult{Result: Result{Breakdowns: newBreakdowns()}}
	res.Scope = DescribeScope(scope)
	res.Fingerprint = fingerprint(key, scope)
	res.TotalEvents = len(evts)
	if len(evts) == 0 {
		// zero events in range is an empty report, not an error
		return res, nil
	}

	if q.RegionID != "" {
		flt = member.Filter{RegionID: q.RegionID}
	}

	ids := make([]string, 0, len(evts))
	for _, ev := range evts {
		ids = append(ids, ev.ID)
	}
	atts, err := svc.events.QueryAttendance(ctx, event.AttendanceFilter{EventIDs: ids, Members: flt})
	if err != nil {
		return RangeResult{}, errors.Wrap(err, "querying attendance")
	}

	tallied := tally(atts)
	tallied.Scope = res.Scope
	tallied.Fingerprint = res.Fingerprint
	res.Result = tallied
	res.AverageAttendance = Avg(res.TotalAttendance, res.TotalEvents)
	res.DistinctMembers = distinctMembers(atts)

	return res, nil
}

// gate refuses non-manager viewers until the event's report is published.
func (svc Service) gate(ctx context.Context, scope Scope, eventID string) error {
	if scope.Role == RoleFellowshipManager {
		return nil // managers always see their own drafts
	}
	pub, err := svc.pubs.GetPublication(ctx, eventID)
	if err != nil {
		if err == ErrPublicationNotFound {
			return ErrReportUnavailable
		}
		return errors.Wrap(err, "getting publication")
	}
	if !pub.IsPublished {
		return ErrReportUnavailable
	}
	return nil
}

// buildTrend locates the chronologically previous event of the same type and
// the last comparable events for charting. Totals honor the same member
// filter as the report itself. Returns nil when no comparable event exists.
func (svc Service) buildTrend(ctx context.Context, ev event.Event, flt member.Filter, total int) (*Trend, error) {
	limit := svc.conf.Report.TrendLength
	if limit <= 0 {
		limit = 5
	}

	prior, err := svc.events.PreviousEvents(ctx, ev.Type, ev.Date, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying previous events")
	}
	if len(prior) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(prior))
	for _, p := range prior {
		ids = append(ids, p.ID)
	}
	counts, err := svc.events.CountAttendance(ctx, ids, flt)
	if err != nil {
		return nil, errors.Wrap(err, "counting attendance")
	}

	prev := prior[0] // most recent first
	prevTotal := counts[prev.ID]

	trend := &Trend{
		PreviousEventID:    prev.ID,
		PreviousEventName:  prev.Name,
		PreviousAttendance: prevTotal,
		Difference:         total - prevTotal,
	}
	if prevTotal > 0 {
		trend.PercentChange = null.IntFrom(Ratio(total-prevTotal, prevTotal))
	}

	// series runs oldest to newest, current event last
	series := make([]TrendPoint, 0, len(prior)+1)
	for i := len(prior) - 1; i >= 0; i-- {
		p := prior[i]
		series = append(series, TrendPoint{
			EventID:    p.ID,
			Label:      trendLabel(p),
			Date:       p.Date,
			Attendance: counts[p.ID],
		})
	}
	series = append(series, TrendPoint{
		EventID:    ev.ID,
		Label:      trendLabel(ev),
		Date:       ev.Date,
		Attendance: total,
	})
	trend.Series = series

	return trend, nil
}

func trendLabel(ev event.Event) string {
	return fmt.Sprintf("%s (%s)", ev.Name, ev.Date.Format("02 Jan 2006"))
}

// Publish makes the event's report visible to non-owning leadership roles.
// Only fellowship managers may publish, and only once the event has taken
// place. Re-publishing refreshes the timestamp; it is not an error.
func (svc Service) Publish(ctx context.Context, actorID, eventID string) (Publication, error) {
	ev, err := svc.managerEvent(ctx, actorID, eventID)
	if err != nil {
		return Publication{}, err
	}
	if ev.Status == event.StatusUpcoming || !ev.IsPast(time.Now().UTC()) {
		return Publication{}, core.NewValidationError(nil, errUpcomingEvent)
	}

	pub := Publication{
		EventID:     ev.ID,
		IsPublished: true,
		PublishedAt: null.TimeFrom(time.Now().UTC()),
		PublisherID: null.StringFrom(actorID),
	}
	pub, err = svc.pubs.UpsertPublication(ctx, pub)
	if err != nil {
		return Publication{}, errors.Wrap(err, "publishing report")
	}

	svc.notify(ev, true)
	return pub, nil
}

// Unpublish revokes the report's visibility. The publication row persists as
// an audit of the most recent action, with its UI-visible fields cleared.
func (svc Service) Unpublish(ctx context.Context, actorID, eventID string) (Publication, error) {
	ev, err := svc.managerEvent(ctx, actorID, eventID)
	if err != nil {
		return Publication{}, err
	}

	pub := Publication{
		EventID:     ev.ID,
		IsPublished: false,
	}
	pub, err = svc.pubs.UpsertPublication(ctx, pub)
	if err != nil {
		return Publication{}, errors.Wrap(err, "unpublishing report")
	}

	svc.notify(ev, false)
	return pub, nil
}

// Status returns the event's publication state; an event that was never
// published reads as unpublished.
func (svc Service) Status(ctx context.Context, eventID string) (Publication, error) {
	ev, err := svc.events.GetEvent(ctx, eventID)
	if err != nil {
		return Publication{}, err
	}
	pub, err := svc.pubs.GetPublication(ctx, ev.ID)
	if err != nil {
		if err == ErrPublicationNotFound {
			return Publication{EventID: ev.ID}, nil
		}
		return Publication{}, errors.Wrap(err, "getting publication")
	}
	return pub, nil
}

func (svc Service) managerEvent(ctx context.Context, actorID, eventID string) (event.Event, error) {
	scope, err := svc.ResolveScope(ctx, actorID)
	if err != nil {
		return event.Event{}, err
	}
	if scope.Role != RoleFellowshipManager {
		return event.Event{}, ErrManagerOnly
	}
	return svc.events.GetEvent(ctx, eventID)
}

// notify informs the configured recipients of a publication change.
// Fire-and-forget; delivery failures are the email service's concern.
func (svc Service) notify(ev event.Event, published bool) {
	if svc.mailSvc == nil || len(svc.conf.Report.NotifyEmails) == 0 {
		return
	}

	action := "revoked"
	body := fmt.Sprintf("The attendance report for %q (%s) is no longer available.", ev.Name, ev.Date.Format("02 Jan 2006"))
	if published {
		action = "published"
		body = fmt.Sprintf("The attendance report for %q (%s) is now available.", ev.Name, ev.Date.Format("02 Jan 2006"))
	}

	to := make([]mail.Address, 0, len(svc.conf.Report.NotifyEmails))
	for _, addr := range svc.conf.Report.NotifyEmails {
		to = append(to, mail.Address{Address: addr})
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Attendance report %s: %s", action, ev.Name),
		BodyStr: body,
	})
}
