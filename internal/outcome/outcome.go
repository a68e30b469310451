// Package outcome maps session outcome codes onto the reporting taxonomy and
// aggregates weighted category totals per tenant window.
package outcome

// Category labels. Every known outcome code maps to exactly one category;
// unknown codes land in CategoryOther rather than erroring.
const (
	CategoryScheduling    = "scheduling"
	CategoryRescheduling  = "rescheduling"
	CategoryInformational = "informational"
	CategoryCancellation  = "cancellation"
	CategoryModification  = "modification"
	CategoryAIFailure     = "ai_failure"
	CategorySpam          = "spam"
	CategoryOther         = "other"
)

// Class tags a category for the efficiency score.
type Class int

const (
	ClassSuccess Class = iota
	ClassNeutral
	ClassFailure
)

var categoryByCode = map[string]string{
	"appointment_created":         CategoryScheduling,
	"appointment_confirmed":       CategoryScheduling,
	"appointment_rescheduled":     CategoryRescheduling,
	"info_request_fulfilled":      CategoryInformational,
	"price_inquiry":               CategoryInformational,
	"business_hours_inquiry":      CategoryInformational,
	"location_inquiry":            CategoryInformational,
	"appointment_inquiry":         CategoryInformational,
	"appointment_noshow_followup": CategoryInformational,
	"appointment_cancelled":       CategoryCancellation,
	"appointment_modified":        CategoryModification,
	"booking_abandoned":           CategoryAIFailure,
	"timeout_abandoned":           CategoryAIFailure,
	"conversation_timeout":        CategoryAIFailure,
	"spam_detected":               CategorySpam,
	"spam_irrelevant":             CategorySpam,
}

// Codes for traffic that must not appear in any denominator.
var excludedCodes = map[string]struct{}{
	"wrong_number": {},
	"test_message": {},
}

var classByCategory = map[string]Class{
	CategoryScheduling:    ClassSuccess,
	CategoryRescheduling:  ClassSuccess,
	CategoryInformational: ClassSuccess,
	CategoryCancellation:  ClassNeutral,
	CategoryModification:  ClassNeutral,
	CategoryOther:         ClassNeutral,
	CategoryAIFailure:     ClassFailure,
	CategorySpam:          ClassFailure,
}

// Categories in stable reporting order.
func Categories() []string {
	return []string{
		CategoryScheduling,
		CategoryRescheduling,
		CategoryInformational,
		CategoryCancellation,
		CategoryModification,
		CategoryAIFailure,
		CategorySpam,
		CategoryOther,
	}
}

// Excluded reports whether a code removes the session from all reporting.
func Excluded(code string) bool {
	_, ok := excludedCodes[code]
	return ok
}

// Classify maps an outcome code to its category. Unknown codes map to
// CategoryOther.
func Classify(code string) string {
	if cat, ok := categoryByCode[code]; ok {
		return cat
	}
	return CategoryOther
}

// ClassOf returns the success/neutral/failure class of a category.
func ClassOf(category string) Class {
	if c, ok := classByCategory[category]; ok {
		return c
	}
	return ClassNeutral
}
