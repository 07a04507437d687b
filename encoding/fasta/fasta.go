// Package fasta contains code for parsing FASTA files holding RNA (or DNA)
// sequences.  Briefly, FASTA files consist of a number of named sequences
// that may be interrupted by newlines.  For example:
//
// >hairpin
// GGGAAA
// UCCC
// >short
// ACGU
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appearing after a space is kept as
// the record's description.  Gapped records ('-', '.', '~', '_') are legal;
// ReadAlignment additionally requires all records to share one length.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const bufferInitSize = 1024 * 1024 // 1 MB

// Record is one named FASTA sequence.
type Record struct {
	// Name is the first whitespace-delimited token after '>'.
	Name string
	// Desc is the rest of the header line, possibly empty.
	Desc string
	// Seq is the concatenated sequence with newlines removed.
	Seq string
}

// Read parses all records from r in file order.
func Read(r io.Reader) ([]Record, error) {
	var recs []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	var cur *Record
	var seq strings.Builder
	flush := func() {
		if cur != nil {
			cur.Seq = seq.String()
			recs = append(recs, *cur)
			seq.Reset()
		}
	}
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new record.
			flush()
			name, desc := line[1:], ""
			if i := strings.IndexByte(name, ' '); i >= 0 {
				name, desc = name[:i], strings.TrimSpace(name[i+1:])
			}
			if name == "" {
				return nil, errors.Errorf("fasta: record %d has an empty name", len(recs)+1)
			}
			cur = &Record{Name: name, Desc: desc}
		} else {
			if cur == nil {
				return nil, errors.New("fasta: sequence data before the first header")
			}
			seq.WriteString(line)
		}
	}
	if scanner.Err() != nil {
		return nil, errors.Wrap(scanner.Err(), "couldn't read FASTA data")
	}
	flush()
	if len(recs) == 0 {
		return nil, errors.New("fasta: no records")
	}
	return recs, nil
}

// ReadAlignment parses r as a gapped FASTA alignment: every record must have
// the same length. The rows are returned in file order.
func ReadAlignment(r io.Reader) ([]Record, error) {
	recs, err := Read(r)
	if err != nil {
		return nil, err
	}
	n := len(recs[0].Seq)
	for _, rec := range recs {
		if len(rec.Seq) != n {
			return nil, errors.Errorf("fasta: alignment row %s has length %d, want %d",
				rec.Name, len(rec.Seq), n)
		}
	}
	return recs, nil
}
