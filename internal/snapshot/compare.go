package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Equal reports whether a and b hold the same content.
//
// Comparison ignores enumeration order: tables are matched by name, columns
// as a set and rows as a multiset. CREATE statements are not compared because
// they carry AUTO_INCREMENT counters that drift without any data change. An
// absent snapshot equals an empty one. Cell values compare byte for byte, so
// binary columns are compared exactly.
func Equal(a, b *Snapshot) bool {
	return bytes.Equal(canonical(a), canonical(b))
}

// Fingerprint is a stable digest of the content Equal compares.
func Fingerprint(s *Snapshot) string {
	sum := sha256.Sum256(canonical(s))
	return hex.EncodeToString(sum[:])
}

// canonical renders the order-insensitive form of s. Every string is written
// length-prefixed with its raw bytes, so no two distinct snapshots share an
// encoding.
func canonical(s *Snapshot) []byte {
	var buf bytes.Buffer
	if s.IsEmpty() {
		writeUvarint(&buf, 0)
		return buf.Bytes()
	}

	tables := make([]Table, len(s.Tables))
	copy(tables, s.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	writeUvarint(&buf, uint64(len(tables)))
	for _, t := range tables {
		cols := append([]string(nil), t.Columns...)
		sort.Strings(cols)

		rows := make([][]byte, 0, len(t.Rows))
		for _, r := range t.Rows {
			rows = append(rows, canonicalRow(r))
		}
		sort.Slice(rows, func(i, j int) bool { return bytes.Compare(rows[i], rows[j]) < 0 })

		writeString(&buf, t.Name)
		writeUvarint(&buf, uint64(len(cols)))
		for _, c := range cols {
			writeString(&buf, c)
		}
		writeUvarint(&buf, uint64(len(rows)))
		for _, r := range rows {
			writeString(&buf, string(r))
		}
	}
	return buf.Bytes()
}

// canonicalRow encodes r with its columns sorted. NULL and the empty string
// encode differently.
func canonicalRow(r Row) []byte {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(cols)))
	for _, c := range cols {
		writeString(&buf, c)
		if v := r[c]; v == nil {
			buf.WriteByte(0)
		} else {
			buf.WriteByte(1)
			writeString(&buf, *v)
		}
	}
	return buf.Bytes()
}

func writeUvarint(buf *bytes.Buffer, n uint64) {
	var tmp [binary.MaxVarintLen64]byte
	buf.Write(tmp[:binary.PutUvarint(tmp[:], n)])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}
