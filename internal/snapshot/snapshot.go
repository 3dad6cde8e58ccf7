// Package snapshot models the full observed content of a database at one
// instant: its tables, their definitions and every row.
//
// A Snapshot serves two purposes. It is compared against another snapshot to
// detect divergence (see Equal), and it is re-applied to a database to
// reproduce that content (see WriteSQL and the database package's Mutator).
package snapshot

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"
)

// Row maps column name to value. A nil value is SQL NULL. Values hold the raw
// column bytes and may be binary.
type Row map[string]*string

// binaryCell is the JSON form of a value that is not valid UTF-8.
type binaryCell struct {
	Base64 string `json:"base64"`
}

// MarshalJSON writes text cells as JSON strings and binary cells as
// {"base64": "..."} so that encoding never alters a byte.
func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r))
	for c, v := range r {
		switch {
		case v == nil:
			out[c] = nil
		case utf8.ValidString(*v):
			out[c] = *v
		default:
			out[c] = binaryCell{Base64: base64.StdEncoding.EncodeToString([]byte(*v))}
		}
	}
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	row := make(Row, len(raw))
	for c, msg := range raw {
		switch {
		case string(msg) == "null":
			row[c] = nil
		case len(msg) > 0 && msg[0] == '{':
			var cell binaryCell
			if err := json.Unmarshal(msg, &cell); err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			b, err := base64.StdEncoding.DecodeString(cell.Base64)
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			row[c] = Value(string(b))
		default:
			var v string
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			row[c] = Value(v)
		}
	}
	*r = row
	return nil
}

// Table is one base table and all of its rows in read order.
type Table struct {
	Name            string   `json:"name"`
	CreateStatement string   `json:"create_statement"`
	Columns         []string `json:"columns"`
	Rows            []Row    `json:"rows"`
}

// Snapshot is the content of a database. A snapshot with no tables is the
// empty sentinel.
type Snapshot struct {
	Database string    `json:"database"`
	TakenAt  time.Time `json:"taken_at"`
	Tables   []Table   `json:"tables"`
}

// Empty returns the sentinel for a database that has no tables.
func Empty(database string) *Snapshot {
	return &Snapshot{Database: database, TakenAt: time.Now().UTC()}
}

// IsEmpty reports whether s is absent or has no tables.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Tables) == 0
}

// RowCount is the total number of rows across all tables.
func (s *Snapshot) RowCount() int64 {
	if s == nil {
		return 0
	}
	var n int64
	for _, t := range s.Tables {
		n += int64(len(t.Rows))
	}
	return n
}

// TableNames lists table names in snapshot order.
func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// String returns a short human description such as "shop (3 tables, 42 rows)".
func (s *Snapshot) String() string {
	if s == nil {
		return "<absent>"
	}
	return fmt.Sprintf("%s (%d tables, %d rows)", s.Database, len(s.Tables), s.RowCount())
}

// Encode writes s as JSON.
func Encode(w io.Writer, s *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a snapshot previously written by Encode.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	for _, t := range s.Tables {
		if t.Name == "" {
			return nil, fmt.Errorf("failed to decode snapshot: table with empty name")
		}
		if t.CreateStatement == "" {
			return nil, fmt.Errorf("failed to decode snapshot: table %s has no create statement", t.Name)
		}
	}
	return &s, nil
}

// Value is a convenience for building rows: Value("x") is a non-NULL cell.
func Value(v string) *string {
	return &v
}
