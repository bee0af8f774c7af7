package rendering

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts are the JSON Resume date precisions, most precise first
var dateLayouts = []struct {
	layout    string
	withMonth bool
}{
	{"2006-01-02", true},
	{"2006-01", true},
	{"2006", false},
}

// formatDate renders a JSON Resume date as a localized short month and year.
// Unparseable input is escaped and returned as written. The result is
// already escaped.
func formatDate(raw string, b *Bundle) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, l := range dateLayouts {
		t, err := time.Parse(l.layout, raw)
		if err != nil {
			continue
		}
		if !l.withMonth {
			return strconv.Itoa(t.Year())
		}
		return EscapeLaTeX(applyDateFormat(b.Text("date_format_short"), t, b.Text(monthKey("short", t.Month()))))
	}
	return EscapeLaTeX(raw)
}

// formatRange renders start and end as a range. A start without an end is
// open-ended and ends at the translated "present".
func formatRange(start, end string, b *Bundle) string {
	from, to := formatDate(start, b), formatDate(end, b)
	switch {
	case from == "" && to == "":
		return ""
	case from == "":
		return to
	case to == "":
		to = EscapeLaTeX(b.Text("present"))
	}
	return from + EscapeLaTeX(b.Text("date_separator")) + to
}

// formatLongDate renders t with the bundle's long date format
func formatLongDate(t time.Time, b *Bundle) string {
	return EscapeLaTeX(applyDateFormat(b.Text("date_format_long"), t, b.Text(monthKey("long", t.Month()))))
}

func applyDateFormat(format string, t time.Time, month string) string {
	if format == "" {
		format = "{month} {year}"
	}
	if month == "" {
		month = t.Month().String()
	}
	return strings.NewReplacer(
		"{day}", strconv.Itoa(t.Day()),
		"{month}", month,
		"{year}", strconv.Itoa(t.Year()),
	).Replace(format)
}

func monthKey(width string, m time.Month) string {
	return "month_" + width + "_" + strconv.Itoa(int(m))
}
