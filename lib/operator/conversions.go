// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package operator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bureau-foundation/muster/lib/operation"
)

// Kind names what a conversion expected.
type Kind string

const (
	KindEvent Kind = "event"
	KindDate  Kind = "date"
	KindTime  Kind = "time"
	KindUser  Kind = "user"
	KindPort  Kind = "port"
	KindSize  Kind = "platoon size"
	KindCount Kind = "count"
)

// ConversionError reports an argument that could not be converted.
type ConversionError struct {
	Kind  Kind
	Input string
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func conversionError(kind Kind, input string, err error) error {
	return &ConversionError{Kind: kind, Input: input, Err: err}
}

// IsConversionError reports whether err is a ConversionError of kind.
func IsConversionError(err error, kind Kind) bool {
	var conversion *ConversionError
	return errors.As(err, &conversion) && conversion.Kind == kind
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	// maxCount bounds multicreate.
	maxCount = 26
)

func parseEventID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, conversionError(KindEvent, raw, errors.New("expected an event ID or a YYYY-MM-DD date"))
	}
	return id, nil
}

// parseDate reads YYYY-MM-DD as midnight in location.
func parseDate(raw string, location *time.Location) (time.Time, error) {
	date, err := time.ParseInLocation(dateLayout, raw, location)
	if err != nil {
		return time.Time{}, conversionError(KindDate, raw, errors.New("expected YYYY-MM-DD"))
	}
	return date, nil
}

// parseClock reads HH:MM as an offset from midnight.
func parseClock(raw string) (time.Duration, error) {
	clock, err := time.Parse(timeLayout, raw)
	if err != nil {
		return 0, conversionError(KindTime, raw, errors.New("expected HH:MM"))
	}
	return time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute, nil
}

// parseDateTime combines a date and a time of day in location.
func parseDateTime(rawDate, rawTime string, location *time.Location) (time.Time, error) {
	date, err := parseDate(rawDate, location)
	if err != nil {
		return time.Time{}, err
	}
	offset, err := parseClock(rawTime)
	if err != nil {
		return time.Time{}, err
	}
	return withClock(date, offset), nil
}

// withClock keeps the calendar day of date and sets the time of day.
// Computed from the wall clock so days with a DST change keep the
// requested hour.
func withClock(date time.Time, offset time.Duration) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, int(offset/time.Hour), int(offset%time.Hour/time.Minute), 0, 0, date.Location())
}

func clockOf(date time.Time) time.Duration {
	return time.Duration(date.Hour())*time.Hour + time.Duration(date.Minute())*time.Minute
}

func parsePort(raw string) (int, error) {
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, conversionError(KindPort, raw, errors.New("expected 1-65535"))
	}
	return port, nil
}

func parseSize(raw string) (operation.PlatoonSize, error) {
	size, err := operation.ParsePlatoonSize(raw)
	if err != nil {
		return "", conversionError(KindSize, raw, err)
	}
	return size, nil
}

func parseCount(raw string) (int, error) {
	count, err := strconv.Atoi(raw)
	if err != nil || count < 1 || count > maxCount {
		return 0, conversionError(KindCount, raw, fmt.Errorf("expected 1-%d", maxCount))
	}
	return count, nil
}

// parseMember resolves a chat user through the transport.
func (o *Operator) parseMember(ctx context.Context, raw string) (operation.Member, error) {
	member, err := o.chat.ResolveMember(ctx, raw)
	if err != nil {
		return operation.Member{}, conversionError(KindUser, raw, err)
	}
	return member, nil
}
