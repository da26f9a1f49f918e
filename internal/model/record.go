package model

import (
	"strconv"
)

// Status is the attendance outcome recorded for one student in one week.
type Status string

const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
	StatusExcused Status = "Excused"
)

// Statuses lists every attendance status in display order.
var Statuses = []Status{StatusPresent, StatusAbsent, StatusExcused}

// Valid reports whether s is one of the closed set of attendance values.
func (s Status) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusExcused:
		return true
	}
	return false
}

// ParseStatus matches a stored attendance value exactly.
func ParseStatus(v string) (Status, bool) {
	s := Status(v)
	return s, s.Valid()
}

// Ledger column names. The first six are always written; anything else found in an
// existing ledger is carried through merges untouched.
const (
	ColStudent       = "Student"
	ColWeek          = "Week"
	ColDate          = "Date"
	ColTopic         = "Topic"
	ColParticipation = "Participation"
	ColAttendance    = "Attendance"
)

// CoreColumns is the canonical column order of a ledger.
var CoreColumns = []string{ColStudent, ColWeek, ColDate, ColTopic, ColParticipation, ColAttendance}

// IsCoreColumn reports whether name is one of CoreColumns.
func IsCoreColumn(name string) bool {
	for _, c := range CoreColumns {
		if c == name {
			return true
		}
	}
	return false
}

// WeekColumn identifies one week's raw column in a roster sheet.
type WeekColumn struct {
	Index  int    `json:"index"`  // 0-based column position in the source grid
	Number int    `json:"number"` // 0 when the header carries no number
	Label  string `json:"label"`
	Date   string `json:"date,omitempty"`
	Topic  string `json:"topic,omitempty"`
}

// ParticipationRecord is one (student, week) row of the ledger.
type ParticipationRecord struct {
	Student       string `json:"student" validate:"required"`
	Week          string `json:"week" validate:"required"`
	Date          string `json:"date,omitempty"`
	Topic         string `json:"topic,omitempty"`
	Participation int    `json:"participation" validate:"gte=0"`
	Attendance    Status `json:"attendance" validate:"required,oneof=Present Absent Excused"`
}

// Key returns the ledger identity of the record.
func (r ParticipationRecord) Key() Key {
	return Key{Student: r.Student, Week: r.Week}
}

// Row flattens the record into ledger cells. An empty date is left out so it is
// persisted as null rather than as an empty string.
func (r ParticipationRecord) Row() map[string]string {
	row := map[string]string{
		ColStudent:       r.Student,
		ColWeek:          r.Week,
		ColTopic:         r.Topic,
		ColParticipation: strconv.Itoa(r.Participation),
		ColAttendance:    string(r.Attendance),
	}
	if r.Date != "" {
		row[ColDate] = r.Date
	}
	return row
}

// Key is the (student, week) identity of a ledger row.
type Key struct {
	Student string
	Week    string
}

// ScoreResult is a derived participation score for one student.
type ScoreResult struct {
	Student string  `json:"student"`
	Score   float64 `json:"score"`
}
