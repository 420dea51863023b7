// Package models holds the library entities together with their validation
// rules and derived calculations. Entities are plain values; the service layer
// owns their storage.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Date layouts accepted for calendar dates supplied by clients.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseDate parses an ISO 8601 calendar date or timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid date: " + value)
}

// validation collects every failing rule of one entity.
type validation struct {
	err *multierror.Error
}

func (v *validation) fail(msg string) {
	v.err = multierror.Append(v.err, errors.New(msg))
}

func (v *validation) failIf(cond bool, msg string) {
	if cond {
		v.fail(msg)
	}
}

func (v *validation) result() error {
	if v.err == nil {
		return nil
	}
	v.err.ErrorFormat = joinMessages
	return v.err.ErrorOrNil()
}

func joinMessages(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, ", ")
}

// Messages flattens a validation error into its individual failure messages.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		msgs := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
