package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-mysql-org/go-mysql/mysql"
)

// rowsPerInsert bounds the size of each extended INSERT in a dump.
const rowsPerInsert = 100

// QuoteIdent quotes a MySQL identifier with backticks.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteValue renders a cell as a MySQL literal.
func QuoteValue(v *string) string {
	if v == nil {
		return "NULL"
	}
	return "'" + mysql.Escape(*v) + "'"
}

// WriteSQL writes s as a plain SQL dump that recreates every table and row
// when replayed into an empty database.
func WriteSQL(w io.Writer, s *Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "-- dbsync dump of %s\n", QuoteIdent(s.Database))
	fmt.Fprintf(bw, "-- taken at %s\n\n", s.TakenAt.UTC().Format(time.RFC3339))
	fmt.Fprint(bw, "SET FOREIGN_KEY_CHECKS=0;\n")

	for _, t := range s.Tables {
		fmt.Fprintf(bw, "\nDROP TABLE IF EXISTS %s;\n", QuoteIdent(t.Name))
		fmt.Fprintf(bw, "%s;\n", strings.TrimRight(t.CreateStatement, "; \n"))

		for start := 0; start < len(t.Rows); start += rowsPerInsert {
			end := start + rowsPerInsert
			if end > len(t.Rows) {
				end = len(t.Rows)
			}
			fmt.Fprintf(bw, "\nINSERT INTO %s (%s) VALUES\n", QuoteIdent(t.Name), columnList(t.Columns))
			for i, row := range t.Rows[start:end] {
				sep := ","
				if start+i == end-1 {
					sep = ";"
				}
				fmt.Fprintf(bw, "(%s)%s\n", valueList(t.Columns, row), sep)
			}
		}
	}

	fmt.Fprint(bw, "\nSET FOREIGN_KEY_CHECKS=1;\n")
	return bw.Flush()
}

func columnList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

func valueList(cols []string, row Row) string {
	vals := make([]string, len(cols))
	for i, c := range cols {
		vals[i] = QuoteValue(row[c])
	}
	return strings.Join(vals, ",")
}
