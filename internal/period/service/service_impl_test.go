package service

import (
	"context"
	"testing"
	"time"

	appointmentdomain "github.com/agendobot/metrics/internal/appointment/domain"
	appointmentrepo "github.com/agendobot/metrics/internal/appointment/repository"
	"github.com/agendobot/metrics/internal/clock"
	conversationdomain "github.com/agendobot/metrics/internal/conversation/domain"
	conversationrepo "github.com/agendobot/metrics/internal/conversation/repository"
	customerdomain "github.com/agendobot/metrics/internal/customer/domain"
	customerrepo "github.com/agendobot/metrics/internal/customer/repository"
	metricdomain "github.com/agendobot/metrics/internal/metric/domain"
	metricrepo "github.com/agendobot/metrics/internal/metric/repository"
	obsmetrics "github.com/agendobot/metrics/internal/observability/metrics"
	perioddomain "github.com/agendobot/metrics/internal/period/domain"
	tenantdomain "github.com/agendobot/metrics/internal/tenant/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingSnapshots struct {
	tenant map[string][]byte
}

func newRecordingSnapshots() *recordingSnapshots {
	return &recordingSnapshots{tenant: make(map[string][]byte)}
}

func (r *recordingSnapshots) SetPlatform(context.Context, string, []byte) error { return nil }

func (r *recordingSnapshots) SetTenant(_ context.Context, tenantID, period string, payload []byte) error {
	r.tenant[tenantID+":"+period] = payload
	return nil
}

func (r *recordingSnapshots) GetPlatform(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       perioddomain.Service
	metrics   metricdomain.Repository
	snapshots *recordingSnapshots
	now       time.Time
	tenant    tenantdomain.Tenant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&tenantdomain.Tenant{},
		&conversationdomain.ConversationEvent{},
		&appointmentdomain.AppointmentRecord{},
		&customerdomain.TenantCustomer{},
		&metricdomain.TenantPeriodMetrics{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	telemetry, err := obsmetrics.New(obsmetrics.Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	metrics := metricrepo.Provide(db, node)
	snapshots := newRecordingSnapshots()
	svc := New(Params{
		Log:           zap.NewNop(),
		Clock:         clock.NewFakeClock(now),
		Conversations: conversationrepo.Provide(db),
		Appointments:  appointmentrepo.Provide(db),
		Customers:     customerrepo.Provide(db),
		Metrics:       metrics,
		Snapshots:     snapshots,
		Telemetry:     telemetry,
	})

	tenant := tenantdomain.Tenant{
		ID:           node.Generate(),
		BusinessName: "Test Salon",
		Status:       tenantdomain.StatusActive,
		CreatedAt:    now.AddDate(0, -6, 0),
	}
	require.NoError(t, db.Create(&tenant).Error)

	return &fixture{db: db, node: node, svc: svc, metrics: metrics, snapshots: snapshots, now: now, tenant: tenant}
}

func (f *fixture) addSession(t *testing.T, start time.Time, outcome string, confidence float64, messages int) {
	t.Helper()
	sessionID := uuid.NewString()
	for i := 0; i < messages; i++ {
		ev := conversationdomain.ConversationEvent{
			ID:              f.node.Generate(),
			TenantID:        f.tenant.ID,
			SessionID:       &sessionID,
			IsFromUser:      i%2 == 0,
			ConfidenceScore: &confidence,
			CreatedAt:       start.Add(time.Duration(i) * time.Minute),
		}
		if i == messages-1 && outcome != "" {
			code := outcome
			ev.Outcome = &code
		}
		require.NoError(t, f.db.Create(&ev).Error)
	}
}

func (f *fixture) addAppointment(t *testing.T, start time.Time, status string, quoted, final *float64) {
	t.Helper()
	require.NoError(t, f.db.Create(&appointmentdomain.AppointmentRecord{
		ID:          f.node.Generate(),
		TenantID:    f.tenant.ID,
		UserID:      f.node.Generate(),
		Status:      status,
		QuotedPrice: quoted,
		FinalPrice:  final,
		StartTime:   start,
		CreatedAt:   start.AddDate(0, 0, -1),
	}).Error)
}

func (f *fixture) conversationMetrics(t *testing.T, period string) metricdomain.ConversationMetrics {
	t.Helper()
	row, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, period, metricdomain.TypeConversation)
	require.NoError(t, err)
	require.NotNil(t, row, "expected %s conversation row", period)
	var m metricdomain.ConversationMetrics
	require.NoError(t, metricdomain.UnmarshalPayload(row.MetricData, &m))
	return m
}

func (f *fixture) appointmentMetrics(t *testing.T, period string) metricdomain.AppointmentMetrics {
	t.Helper()
	row, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, period, metricdomain.TypeAppointment)
	require.NoError(t, err)
	require.NotNil(t, row)
	var m metricdomain.AppointmentMetrics
	require.NoError(t, metricdomain.UnmarshalPayload(row.MetricData, &m))
	return m
}

func fptr(v float64) *float64 { return &v }

func TestEmptyTenantProducesAllZeroMetrics(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	conv := f.conversationMetrics(t, metricdomain.Period30d)
	assert.Zero(t, conv.TotalSessions)
	assert.Zero(t, conv.EfficiencyPct)
	assert.Zero(t, conv.AvgConfidence)

	appt := f.appointmentMetrics(t, metricdomain.Period30d)
	assert.Zero(t, appt.Total)
	assert.Zero(t, appt.Revenue)
	assert.Zero(t, appt.SuccessRatePct)
}

func TestRevenueExcludesCancelledFromBothSides(t *testing.T) {
	f := newFixture(t)

	f.addAppointment(t, f.now.AddDate(0, 0, -5), appointmentdomain.StatusCompleted, fptr(90), fptr(100))
	f.addAppointment(t, f.now.AddDate(0, 0, -6), appointmentdomain.StatusCancelled, fptr(80), nil)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	m := f.appointmentMetrics(t, metricdomain.Period30d)
	assert.Equal(t, 2, m.Total)
	assert.Equal(t, 100.0, m.Revenue, "final price wins over quoted")
	assert.Equal(t, 100.0, m.PotentialRevenue, "cancelled is excluded from the denominator")
	assert.Zero(t, m.LostRevenue)
	assert.Equal(t, 50.0, m.CancellationRatePct)
}

func TestNoShowCountsTowardLostAndPotentialRevenue(t *testing.T) {
	f := newFixture(t)

	f.addAppointment(t, f.now.AddDate(0, 0, -2), appointmentdomain.StatusConfirmed, fptr(60), nil)
	f.addAppointment(t, f.now.AddDate(0, 0, -3), appointmentdomain.StatusNoShow, fptr(40), nil)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	m := f.appointmentMetrics(t, metricdomain.Period30d)
	assert.Equal(t, 60.0, m.Revenue)
	assert.Equal(t, 40.0, m.LostRevenue)
	assert.Equal(t, 100.0, m.PotentialRevenue)
	assert.Equal(t, 50.0, m.NoShowRatePct)
}

func TestSessionBelongsToWindowOfItsStart(t *testing.T) {
	f := newFixture(t)

	// Starts 8 days ago, ends inside the 7d window: counted in 30d, not 7d.
	straddling := f.now.AddDate(0, 0, -8)
	sessionID := uuid.NewString()
	conf := 0.9
	for i, at := range []time.Time{straddling, f.now.AddDate(0, 0, -6)} {
		code := "appointment_created"
		ev := conversationdomain.ConversationEvent{
			ID:              f.node.Generate(),
			TenantID:        f.tenant.ID,
			SessionID:       &sessionID,
			ConfidenceScore: &conf,
			CreatedAt:       at,
		}
		if i == 1 {
			ev.Outcome = &code
		}
		require.NoError(t, f.db.Create(&ev).Error)
	}

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	assert.Zero(t, f.conversationMetrics(t, metricdomain.Period7d).TotalSessions)
	assert.Equal(t, 1, f.conversationMetrics(t, metricdomain.Period30d).TotalSessions)
}

func TestExcludedSessionsLeaveDenominatorsUntouched(t *testing.T) {
	f := newFixture(t)

	f.addSession(t, f.now.AddDate(0, 0, -1), "appointment_created", 0.8, 2)
	f.addSession(t, f.now.AddDate(0, 0, -2), "wrong_number", 1.0, 1)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	m := f.conversationMetrics(t, metricdomain.Period7d)
	assert.Equal(t, 1, m.TotalSessions)
	assert.Equal(t, 1, m.ExcludedSessions)
	assert.InDelta(t, 0.8, m.TotalWeight, 1e-9)
	assert.InDelta(t, 100.0, m.EfficiencyPct, 1e-9)
}

func TestHistoricalBucketsDoNotDoubleCount(t *testing.T) {
	f := newFixture(t)

	// One appointment on the first instant of the last completed month and
	// one on the last day of the month before it.
	month0Start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	f.addAppointment(t, month0Start, appointmentdomain.StatusCompleted, fptr(50), nil)
	f.addAppointment(t, month0Start.Add(-time.Hour), appointmentdomain.StatusCompleted, fptr(70), nil)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	var m0, m1 metricdomain.HistoricalMetrics
	row0, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, metricdomain.MonthPeriod(0), metricdomain.TypeHistorical)
	require.NoError(t, err)
	require.NotNil(t, row0)
	require.NoError(t, metricdomain.UnmarshalPayload(row0.MetricData, &m0))

	row1, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, metricdomain.MonthPeriod(1), metricdomain.TypeHistorical)
	require.NoError(t, err)
	require.NotNil(t, row1)
	require.NoError(t, metricdomain.UnmarshalPayload(row1.MetricData, &m1))

	assert.Equal(t, 1, m0.Appointments)
	assert.Equal(t, 50.0, m0.Revenue)
	assert.Equal(t, 1, m1.Appointments)
	assert.Equal(t, 70.0, m1.Revenue)
}

func TestTenantSnapshotsPushedToCache(t *testing.T) {
	f := newFixture(t)

	f.addSession(t, f.now.AddDate(0, 0, -1), "appointment_created", 0.9, 2)
	f.addAppointment(t, f.now.AddDate(0, 0, -2), appointmentdomain.StatusCompleted, fptr(80), nil)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)

	for _, period := range metricdomain.RollingPeriods() {
		payload, ok := f.snapshots.tenant[f.tenant.ID.String()+":"+period]
		require.True(t, ok, "expected cached snapshot for %s", period)

		var snap metricdomain.TenantSnapshot
		require.NoError(t, metricdomain.UnmarshalPayload(payload, &snap))
		assert.Equal(t, 1, snap.Conversation.TotalSessions)
		assert.Equal(t, 80.0, snap.Appointment.Revenue)
	}
}

func TestRerunIsIdempotent(t *testing.T) {
	f := newFixture(t)

	f.addSession(t, f.now.AddDate(0, 0, -3), "appointment_created", 0.85, 3)
	f.addAppointment(t, f.now.AddDate(0, 0, -4), appointmentdomain.StatusCompleted, fptr(55), nil)

	_, err := f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)
	first, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, metricdomain.Period30d, metricdomain.TypeConversation)
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = f.svc.ComputeTenant(context.Background(), f.tenant)
	require.NoError(t, err)
	second, err := f.metrics.FindTenantMetric(context.Background(), f.tenant.ID, metricdomain.Period30d, metricdomain.TypeConversation)
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.ID, second.ID, "rerun must replace the same row")
	assert.JSONEq(t, string(first.MetricData), string(second.MetricData))

	var rows int64
	require.NoError(t, f.db.Model(&metricdomain.TenantPeriodMetrics{}).
		Where("tenant_id = ?", f.tenant.ID).Count(&rows).Error)
	// 3 metric types x 3 rolling windows + 6 historical buckets.
	assert.Equal(t, int64(15), rows)
}
