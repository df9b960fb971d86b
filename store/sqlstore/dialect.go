package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/migrate"
)

// Dialect holds what differs between the SQL backends.
type Dialect struct {
	// Name prefixes error messages, e.g. "marketplace/postgres".
	Name string

	// Migrations is the grove migration group applied by Migrate.
	Migrations *migrate.Group

	// NumberedPlaceholders rewrites ? into $1, $2, ...
	NumberedPlaceholders bool

	// TimeAsMicros stores timestamps as integer Unix microseconds.
	TimeAsMicros bool

	// Isolation is the level used by Atomic.
	Isolation driver.IsolationLevel

	// UniqueViolation reports whether err is a unique constraint violation
	// and returns text naming the violated constraint or columns.
	UniqueViolation func(err error) (detail string, ok bool)

	// Retryable reports whether a failed transaction may be run again, as
	// with serialization failures.
	Retryable func(err error) bool
}

func (d *Dialect) rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ts encodes a timestamp argument.
func (d *Dialect) ts(t time.Time) any {
	t = t.UTC()
	if d.TimeAsMicros {
		return t.UnixMicro()
	}
	return t
}

// nullTS encodes an optional timestamp. Zero times are stored as NULL.
func (d *Dialect) nullTS(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return d.ts(*t)
}

func (d *Dialect) zeroTS(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return d.ts(t)
}

// timestamp scans any of the timestamp encodings used by the dialects.
type timestamp struct {
	Time  time.Time
	Valid bool
}

func (ts *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		ts.Time, ts.Valid = time.Time{}, false
		return nil
	case time.Time:
		ts.Time = v.UTC()
	case int64:
		ts.Time = time.UnixMicro(v).UTC()
	case string:
		return ts.parse(v)
	case []byte:
		return ts.parse(string(v))
	default:
		return fmt.Errorf("sqlstore: cannot scan %T into timestamp", src)
	}
	ts.Valid = true
	return nil
}

func (ts *timestamp) parse(s string) error {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("sqlstore: parse timestamp %q: %w", s, err)
	}
	ts.Time, ts.Valid = t.UTC(), true
	return nil
}

func (ts *timestamp) ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}
