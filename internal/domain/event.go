// Package domain holds the Event Scheduler's core types: the catalog-level
// EventRecord and the enums/errors shared by every layer above it.
package domain

import (
	"errors"
	"time"
)

var (
	ErrAlreadyExists    = errors.New("event already exists")
	ErrNotFound         = errors.New("event not found")
	ErrBadSchema        = errors.New("invalid schema name")
	ErrPermissionDenied = errors.New("permission denied")

	ErrMicrosecondUnsupported = errors.New("interval unit MICROSECOND is not supported yet")
	ErrIntervalOutOfRange     = errors.New("interval expression out of range")
	ErrInvalidDateRange       = errors.New("ends must not be before starts")

	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrLoadFailed         = errors.New("referenced event could not be loaded")
	ErrSchedulerDisabled  = errors.New("scheduler is administratively disabled")
)

// Status mirrors MySQL's event status enum: a DISABLED event is never
// dispatched, REPLICA_DISABLED marks an event this node should not fire
// because it originated elsewhere.
type Status string

const (
	StatusEnabled         Status = "ENABLED"
	StatusDisabled        Status = "DISABLED"
	StatusReplicaDisabled Status = "REPLICA_DISABLED"
)

// OnCompletion controls whether an event is dropped once it can never
// fire again.
type OnCompletion string

const (
	OnCompletionDrop     OnCompletion = "DROP"
	OnCompletionPreserve OnCompletion = "PRESERVE"
)

// IntervalUnit is the temporal granularity of a recurring schedule's
// expression. Composite units combine two simple units in one literal.
type IntervalUnit string

const (
	IntervalYear        IntervalUnit = "YEAR"
	IntervalQuarter     IntervalUnit = "QUARTER"
	IntervalMonth       IntervalUnit = "MONTH"
	IntervalWeek        IntervalUnit = "WEEK"
	IntervalDay         IntervalUnit = "DAY"
	IntervalHour        IntervalUnit = "HOUR"
	IntervalMinute      IntervalUnit = "MINUTE"
	IntervalSecond      IntervalUnit = "SECOND"
	IntervalMicrosecond IntervalUnit = "MICROSECOND"

	IntervalYearMonth    IntervalUnit = "YEAR_MONTH"
	IntervalDayHour      IntervalUnit = "DAY_HOUR"
	IntervalDayMinute    IntervalUnit = "DAY_MINUTE"
	IntervalDaySecond    IntervalUnit = "DAY_SECOND"
	IntervalHourMinute   IntervalUnit = "HOUR_MINUTE"
	IntervalHourSecond   IntervalUnit = "HOUR_SECOND"
	IntervalMinuteSecond IntervalUnit = "MINUTE_SECOND"
)

// ScheduleKind discriminates the Schedule union.
type ScheduleKind int

const (
	KindOneShot ScheduleKind = iota
	KindRecurring
)

// Schedule is the tagged union from spec.md §3: either a single absolute
// firing time, or a recurring interval with optional bounds.
type Schedule struct {
	Kind ScheduleKind

	// OneShot
	ExecuteAt time.Time

	// Recurring
	Expression int64
	Unit       IntervalUnit
	Starts     *time.Time
	Ends       *time.Time
}

// IsOneShot reports whether the schedule fires exactly once.
func (s Schedule) IsOneShot() bool { return s.Kind == KindOneShot }

// CreationContext captures the client charset, connection collation and
// sql mode in effect at CREATE/ALTER time, restored around execution.
type CreationContext struct {
	ClientCharset       string
	ConnectionCollation string
	SQLMode             string
}

// EventRecord is the full catalog row for one event: the immutable
// identity/definition fields plus the mutable timing/status fields the
// scheduler advances on every run.
type EventRecord struct {
	Schema string
	Name   string

	Definer  string
	TimeZone string

	// Body is an opaque handle into whatever stored-program subsystem
	// the embedding database owns; the scheduler never interprets it
	// beyond handing it to a BodyInvoker.
	Body string

	CreationCtx CreationContext

	Schedule     Schedule
	OnCompletion OnCompletion
	Originator   int64
	Comment      string

	Status         Status
	LastExecuted   *time.Time
	ExecuteAt      *time.Time
	ExecutionCount uint32

	Created  time.Time
	Modified time.Time
}

// Key returns the (schema, name) identity tuple.
func (e *EventRecord) Key() (string, string) { return e.Schema, e.Name }
