package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// ConversationMetrics is the metric_data payload for TypeConversation.
type ConversationMetrics struct {
	TotalSessions    int                `json:"total_sessions"`
	ExcludedSessions int                `json:"excluded_sessions"`
	OrphanEvents     int                `json:"orphan_events"`
	CategoryCounts   map[string]int     `json:"category_counts"`
	CategoryWeights  map[string]float64 `json:"category_weights"`
	TotalWeight      float64            `json:"total_weight"`
	EfficiencyPct    float64            `json:"efficiency_pct"`
	AvgConfidence    float64            `json:"avg_confidence"`
	SpamRatePct      float64            `json:"spam_rate_pct"`
	TotalMinutes     float64            `json:"total_minutes"`
	TotalCostUSD     float64            `json:"total_cost_usd"`
	TotalTokens      int64              `json:"total_tokens"`
}

// AppointmentMetrics is the metric_data payload for TypeAppointment.
type AppointmentMetrics struct {
	Total               int     `json:"total"`
	Completed           int     `json:"completed"`
	Confirmed           int     `json:"confirmed"`
	Cancelled           int     `json:"cancelled"`
	NoShow              int     `json:"no_show"`
	Pending             int     `json:"pending"`
	Revenue             float64 `json:"revenue"`
	PotentialRevenue    float64 `json:"potential_revenue"`
	LostRevenue         float64 `json:"lost_revenue"`
	SuccessRatePct      float64 `json:"success_rate_pct"`
	CancellationRatePct float64 `json:"cancellation_rate_pct"`
	NoShowRatePct       float64 `json:"no_show_rate_pct"`
}

// CustomerMetrics is the metric_data payload for TypeCustomer.
type CustomerMetrics struct {
	NewCustomers    int64 `json:"new_customers"`
	UniqueCustomers int64 `json:"unique_customers"`
}

// HistoricalMetrics is the metric_data payload for TypeHistorical, one row
// per calendar-month bucket.
type HistoricalMetrics struct {
	MonthIndex    int       `json:"month_index"`
	MonthLabel    string    `json:"month_label"`
	MonthStart    time.Time `json:"month_start"`
	MonthEnd      time.Time `json:"month_end"`
	Revenue       float64   `json:"revenue"`
	Appointments  int       `json:"appointments"`
	Conversations int       `json:"conversations"`
	NewCustomers  int64     `json:"new_customers"`
}

// PlatformMetrics is the metric_data payload for TypePlatform: raw sums over
// contributing tenants plus ratios recomputed from those sums.
type PlatformMetrics struct {
	ActiveTenants         int     `json:"active_tenants"`
	FailedTenants         int     `json:"failed_tenants"`
	TotalSessions         int     `json:"total_sessions"`
	OrphanEvents          int     `json:"orphan_events"`
	SuccessWeight         float64 `json:"success_weight"`
	NeutralWeight         float64 `json:"neutral_weight"`
	FailureWeight         float64 `json:"failure_weight"`
	TotalWeight           float64 `json:"total_weight"`
	EfficiencyPct         float64 `json:"efficiency_pct"`
	TotalAppointments     int     `json:"total_appointments"`
	CompletedAppointments int     `json:"completed_appointments"`
	CancelledAppointments int     `json:"cancelled_appointments"`
	NoShowAppointments    int     `json:"no_show_appointments"`
	Revenue               float64 `json:"revenue"`
	PotentialRevenue      float64 `json:"potential_revenue"`
	LostRevenue           float64 `json:"lost_revenue"`
	SuccessRatePct        float64 `json:"success_rate_pct"`
	NoShowRatePct         float64 `json:"no_show_rate_pct"`
	NewCustomers          int64   `json:"new_customers"`
	TotalCostUSD          float64 `json:"total_cost_usd"`
	MRR                   float64 `json:"mrr"`
}

// TenantSnapshot is the cached per-tenant read view for one rolling window,
// bundling the three metric payloads behind a single cache key.
type TenantSnapshot struct {
	Conversation ConversationMetrics `json:"conversation"`
	Appointment  AppointmentMetrics  `json:"appointment"`
	Customer     CustomerMetrics     `json:"customer"`
}

// MarshalPayload encodes a typed payload for the metric_data column.
func MarshalPayload(v any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// UnmarshalPayload decodes metric_data into a typed payload.
func UnmarshalPayload(data datatypes.JSON, v any) error {
	return json.Unmarshal(data, v)
}
