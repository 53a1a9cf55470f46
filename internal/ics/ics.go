// Package ics renders subscriptions and their events as iCalendar documents.
//
// The output grammar is a compatibility contract with third-party calendar
// clients: fixed property order, CRLF line endings, UTC instants, and stable
// UIDs that clients use for de-duplication across repeated fetches. Encoding
// is pure and deterministic given a frozen "now"; callers inject the clock.
package ics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"calagent/internal/models"
)

const (
	prodID   = "-//CalAgent//Subscription Feeds//EN"
	calScale = "GREGORIAN"
	method   = "PUBLISH"

	// uidSuffix must stay constant across deployments of one instance:
	// clients match UIDs between fetches to update events in place.
	uidSuffix = "calagent.local"

	// Merged feeds have no single owning subscription, so the envelope
	// carries fixed values.
	mergedCalName  = "CalAgent - All Subscriptions"
	mergedTimezone = "UTC"

	crlf = "\r\n"
)

// Encoding errors. Malformed input is a caller contract violation; the
// encoder refuses to emit a truncated or unparsable record.
var (
	ErrMissingStart      = errors.New("event has no start instant")
	ErrMissingTitle      = errors.New("event has no title")
	ErrMissingExternalID = errors.New("event has no external id")
)

// escaper handles TEXT values per RFC 5545 §3.3.11: backslash, semicolon
// and comma get a leading backslash, literal newlines become "\n". Each
// input character is replaced at most once, so already-inserted backslashes
// are never re-escaped. Callers must pass raw, never-before-escaped text.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	";", `\;`,
	",", `\,`,
	"\n", `\n`,
)

// EscapeText escapes a raw string for use as an iCalendar TEXT value.
func EscapeText(raw string) string {
	return escaper.Replace(raw)
}

// FormatInstant renders an absolute instant in the compact UTC wall-clock
// form YYYYMMDDTHHMMSSZ. Only the instant matters: two times denoting the
// same moment format identically regardless of their original offsets, and
// the event's declared timezone plays no part.
func FormatInstant(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// MapStatus maps an event status onto the two iCalendar STATUS values.
// "postponed" has no native counterpart and deliberately collapses to
// CONFIRMED; the distinction, if it matters, belongs in the title.
func MapStatus(s models.EventStatus) string {
	if s == models.StatusCancelled {
		return "CANCELLED"
	}
	return "CONFIRMED"
}

// EncodeFeed renders the feed document for a single subscription.
// Events are emitted in ascending start order (stable for equal starts);
// now becomes the DTSTAMP of every record.
func EncodeFeed(sub models.Subscription, events []models.Event, now time.Time) (string, error) {
	lines := envelopeHeader(EscapeText(sub.DisplayName), sub.Timezone)

	for _, ev := range sortedByStart(events) {
		block, err := eventBlock(ev, sub.ID, "", now)
		if err != nil {
			return "", fmt.Errorf("encode event %q: %w", ev.ExternalID, err)
		}
		lines = append(lines, block...)
	}

	return finish(lines), nil
}

// EncodeMergedFeed renders one document combining events from multiple
// subscriptions. UIDs are built from each event's own subscription id, and
// every record carries a CATEGORIES tag naming its source subscription when
// that subscription is present in subs. An event whose subscription cannot
// be resolved still renders, just without the tag.
func EncodeMergedFeed(events []models.Event, subs []models.Subscription, now time.Time) (string, error) {
	names := make(map[string]string, len(subs))
	for _, s := range subs {
		names[s.ID] = s.DisplayName
	}

	lines := envelopeHeader(EscapeText(mergedCalName), mergedTimezone)

	for _, ev := range sortedByStart(events) {
		block, err := eventBlock(ev, ev.SubscriptionID, names[ev.SubscriptionID], now)
		if err != nil {
			return "", fmt.Errorf("encode event %q: %w", ev.ExternalID, err)
		}
		lines = append(lines, block...)
	}

	return finish(lines), nil
}

// sortedByStart returns a copy of events in ascending start order. The sort
// is stable and compares parsed instants, not their string forms, so mixed
// offset notations cannot reorder equal moments.
func sortedByStart(events []models.Event) []models.Event {
	out := make([]models.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartAt.Before(out[j].StartAt)
	})
	return out
}

func envelopeHeader(calName, timezone string) []string {
	return []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"CALSCALE:" + calScale,
		"METHOD:" + method,
		"X-WR-CALNAME:" + calName,
		"X-WR-TIMEZONE:" + timezone,
	}
}

// eventBlock renders one VEVENT. owningSubID feeds the UID; category, when
// non-empty, is emitted as a CATEGORIES line before END:VEVENT.
func eventBlock(ev models.Event, owningSubID, category string, now time.Time) ([]string, error) {
	if ev.StartAt.IsZero() {
		return nil, ErrMissingStart
	}
	if ev.Title == "" {
		return nil, ErrMissingTitle
	}
	if ev.ExternalID == "" {
		return nil, ErrMissingExternalID
	}

	lines := []string{
		"BEGIN:VEVENT",
		fmt.Sprintf("UID:%s_%s@%s", owningSubID, ev.ExternalID, uidSuffix),
		"DTSTAMP:" + FormatInstant(now),
		"DTSTART:" + FormatInstant(ev.StartAt),
	}
	if ev.EndAt != nil {
		lines = append(lines, "DTEND:"+FormatInstant(*ev.EndAt))
	}
	lines = append(lines,
		"SUMMARY:"+EscapeText(ev.Title),
		"STATUS:"+MapStatus(ev.Status),
	)
	if ev.Description != "" {
		lines = append(lines, "DESCRIPTION:"+EscapeText(ev.Description))
	}
	if ev.Location != "" {
		lines = append(lines, "LOCATION:"+EscapeText(ev.Location))
	}
	// URL is always present, even when empty: consumers rely on the field
	// existing for provenance.
	lines = append(lines, "URL:"+EscapeText(ev.SourceURL))
	if category != "" {
		lines = append(lines, "CATEGORIES:"+EscapeText(category))
	}
	lines = append(lines, "END:VEVENT")
	return lines, nil
}

// finish closes the envelope and joins everything with CRLF, terminating
// the document with a trailing blank line.
func finish(lines []string) string {
	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, crlf)
}
