package models

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/gatherly/internal/errdef"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct tags on v. Tag violations are returned as a ValidationError.
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Namespace()+" failed on "+fe.Tag())
		}
		return errdef.NewValidation("%s", strings.Join(msgs, "; "))
	}
	return errdef.NewValidation("%v", err)
}

// ValidateEvent checks the event's struct tags and the cross-field rules tags
// cannot express.
func ValidateEvent(e *Event) error {
	if err := Validate(e); err != nil {
		return err
	}
	if e.End.Before(e.Start) {
		return errdef.NewValidation("event end %s is before start %s", e.End, e.Start)
	}
	if e.IsRecurring && e.RecurrenceRule == nil {
		return errdef.NewValidation("recurring event %q has no recurrence rule", e.Title)
	}
	if e.IsRecurring {
		if err := e.RecurrenceRule.Check(e.Start); err != nil {
			return err
		}
	}
	seen := make(map[string]bool, len(e.Invites))
	for _, inv := range e.Invites {
		if seen[inv.UserID] {
			return errdef.NewValidation("duplicate invite for user %s", inv.UserID)
		}
		seen[inv.UserID] = true
	}
	return nil
}

// Check validates the rule against the start of the series it belongs to.
func (r *RecurrenceRule) Check(start time.Time) error {
	if err := Validate(r); err != nil {
		return err
	}
	if r.EndDate != nil && r.Count > 0 {
		return errdef.NewValidation("recurrence rule sets both end date and count")
	}
	if r.EndDate != nil && r.EndDate.Before(start) {
		return errdef.NewValidation("recurrence end date %s is before event start %s", r.EndDate, start)
	}
	return nil
}
