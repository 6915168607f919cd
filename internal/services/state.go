package services

import (
	"time"

	"couple-sync-backend/internal/models"
)

// CoupleStateKind tags the derived pairing state
type CoupleStateKind string

const (
	StateNoCouple       CoupleStateKind = "no_couple"
	StateCreatedWaiting CoupleStateKind = "created_waiting"
	StateJoinedPending  CoupleStateKind = "joined_pending"
	StateMatched        CoupleStateKind = "matched"
)

// CoupleState is the client-facing pairing state. It is never persisted;
// every snapshot re-derives it from the authoritative couple document.
type CoupleState struct {
	Kind        CoupleStateKind `json:"kind"`
	Code        string          `json:"code,omitempty"`
	MemberCount int             `json:"member_count"`
}

// DeriveState is the single derivation path for UI-facing state: two or
// more members means matched, a lone member sees created-waiting, a
// non-member sees joined-pending. Pure and total.
func DeriveState(couple *models.Couple, userID string) CoupleState {
	if couple == nil {
		return CoupleState{Kind: StateNoCouple}
	}
	members := len(couple.MemberIDs)
	if members >= 2 {
		return CoupleState{Kind: StateMatched, Code: couple.Code, MemberCount: members}
	}
	if couple.HasMember(userID) {
		return CoupleState{Kind: StateCreatedWaiting, Code: couple.Code, MemberCount: members}
	}
	return CoupleState{Kind: StateJoinedPending, Code: couple.Code, MemberCount: members}
}

// NormalizeAnniversary truncates a date to the start of day in UTC.
// A fixed reference zone keeps day-count math reproducible across members
// in different timezones.
func NormalizeAnniversary(date time.Time) time.Time {
	d := date.UTC()
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysSince counts days from the anniversary to now at UTC day boundaries,
// inclusive of the first day. Never negative.
func DaysSince(anniversary, now time.Time) int {
	from := NormalizeAnniversary(anniversary)
	to := NormalizeAnniversary(now)
	days := int(to.Sub(from).Hours()/24) + 1
	if days < 0 {
		return 0
	}
	return days
}

// FullYearsSince counts completed years since the anniversary
func FullYearsSince(anniversary, now time.Time) int {
	from := NormalizeAnniversary(anniversary)
	to := NormalizeAnniversary(now)
	years := to.Year() - from.Year()
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// DaysUntilNextAnniversary counts days until the anniversary next recurs.
// A Feb 29 anniversary falls back to Feb 28 in non-leap years.
func DaysUntilNextAnniversary(anniversary, now time.Time) int {
	ann := NormalizeAnniversary(anniversary)
	today := NormalizeAnniversary(now)

	next := nextOccurrence(ann, today.Year())
	if next.Before(today) {
		next = nextOccurrence(ann, today.Year()+1)
	}
	return int(next.Sub(today).Hours() / 24)
}

func nextOccurrence(ann time.Time, year int) time.Time {
	month, day := ann.Month(), ann.Day()
	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
