package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/classpilot/tool-runtime/internal/toolerr"
)

// TriggerType discriminates the closed set of schedule triggers.
type TriggerType string

const (
	TriggerNone      TriggerType = "no-schedule"
	TriggerScheduled TriggerType = "scheduled"
	TriggerDelayed   TriggerType = "delayed"
	TriggerCron      TriggerType = "cron"
)

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Trigger is the parsed tagged union. Exactly one payload field matches Type.
type Trigger struct {
	Type           TriggerType
	Date           string // scheduled: literal RFC 3339 timestamp
	DelayInSeconds int    // delayed
	CronExpr       string // cron
}

// Value returns the literal trigger value handed to the agent context.
func (t Trigger) Value() string {
	switch t.Type {
	case TriggerScheduled:
		return t.Date
	case TriggerDelayed:
		return strconv.Itoa(t.DelayInSeconds)
	case TriggerCron:
		return t.CronExpr
	default:
		return ""
	}
}

type triggerArgs struct {
	Type           string `json:"type"`
	Date           string `json:"date"`
	DelayInSeconds int    `json:"delayInSeconds"`
	Cron           string `json:"cron"`
}

// ParseTrigger validates raw trigger arguments into the tagged union. Missing
// or mis-shaped payload fields fail with a *toolerr.ValidationError naming the
// field; a tag outside the closed set fails with ErrInvalidSchedule.
func ParseTrigger(raw json.RawMessage) (Trigger, error) {
	payload := bytes.TrimSpace(raw)
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	var args triggerArgs
	if err := json.Unmarshal(payload, &args); err != nil {
		return Trigger{}, fmt.Errorf("%w: %v", toolerr.ErrInvalidArgs, err)
	}

	switch TriggerType(strings.TrimSpace(args.Type)) {
	case TriggerNone, "":
		return Trigger{Type: TriggerNone}, nil
	case TriggerScheduled:
		date := strings.TrimSpace(args.Date)
		if date == "" {
			return Trigger{}, toolerr.NewValidation("date", "is required for scheduled triggers")
		}
		if _, err := time.Parse(time.RFC3339, date); err != nil {
			return Trigger{}, toolerr.NewValidation("date", "must be an RFC 3339 timestamp")
		}
		return Trigger{Type: TriggerScheduled, Date: date}, nil
	case TriggerDelayed:
		if args.DelayInSeconds <= 0 {
			return Trigger{}, toolerr.NewValidation("delayInSeconds", "must be a positive number of seconds")
		}
		return Trigger{Type: TriggerDelayed, DelayInSeconds: args.DelayInSeconds}, nil
	case TriggerCron:
		expr := normalizeCronExpr(args.Cron)
		if expr == "" {
			return Trigger{}, toolerr.NewValidation("cron", "is required for cron triggers")
		}
		if _, err := cronParser.Parse(expr); err != nil {
			return Trigger{}, toolerr.NewValidation("cron", fmt.Sprintf("is not a valid cron expression: %v", err))
		}
		return Trigger{Type: TriggerCron, CronExpr: expr}, nil
	default:
		return Trigger{}, fmt.Errorf("%w: unrecognized trigger type %q", toolerr.ErrInvalidSchedule, args.Type)
	}
}

// NextRun resolves the first firing time for a trigger value of the given
// type, relative to now. The dispatcher reuses it to reschedule cron tasks.
func NextRun(triggerType TriggerType, triggerValue string, now time.Time) (time.Time, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	switch triggerType {
	case TriggerScheduled:
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(triggerValue))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse scheduled date: %w", err)
		}
		return at.UTC(), nil
	case TriggerDelayed:
		seconds, err := strconv.Atoi(strings.TrimSpace(triggerValue))
		if err != nil || seconds <= 0 {
			return time.Time{}, fmt.Errorf("parse delay seconds: %q", triggerValue)
		}
		return now.UTC().Add(time.Duration(seconds) * time.Second), nil
	case TriggerCron:
		spec, err := cronParser.Parse(normalizeCronExpr(triggerValue))
		if err != nil {
			return time.Time{}, fmt.Errorf("parse cron expression: %w", err)
		}
		return spec.Next(now.UTC()).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", toolerr.ErrInvalidSchedule, triggerType)
	}
}

func normalizeCronExpr(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.Join(strings.Fields(trimmed), " ")
}
