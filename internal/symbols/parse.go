package symbols

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LineError describes an output line that was skipped.
type LineError struct {
	Line   int    // 1-based line number within the output
	Text   string // the offending line
	Reason string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parse reads `tag line path hint [rest...]` records, one per line.
//
// Blank lines are ignored. Malformed lines are skipped; the records of every
// well-formed line are returned together with an error joining one
// *LineError per skipped line. Records keep input order.
func Parse(output string) ([]Record, error) {
	return ParseReader(strings.NewReader(output))
}

// ParseReader is Parse over a stream.
func ParseReader(r io.Reader) ([]Record, error) {
	var (
		records []Record
		errs    []error
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := parseLine(text)
		if err != nil {
			errs = append(errs, &LineError{Line: lineNo, Text: text, Reason: err.Error()})
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, fmt.Errorf("reading output: %w", err))
	}

	return records, errors.Join(errs...)
}

func parseLine(text string) (Record, error) {
	fields := strings.Fields(text)
	if len(fields) < 4 {
		return Record{}, fmt.Errorf("expected at least 4 fields, got %d", len(fields))
	}

	declLine, err := strconv.Atoi(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("invalid line number %q", fields[1])
	}
	if declLine < 1 {
		return Record{}, fmt.Errorf("line number %d out of range", declLine)
	}

	qualifier, name := SplitTag(fields[0])
	if name == "" {
		return Record{}, fmt.Errorf("empty symbol name in tag %q", fields[0])
	}

	return Record{
		Qualifier: qualifier,
		Name:      name,
		Kind:      Classify(qualifier != "", fields[3]),
		Line:      declLine - 1,
		Path:      fields[2],
		Hint:      fields[3],
		Trailing:  strings.Join(fields[4:], " "),
	}, nil
}

// Skipped returns the line errors inside an error produced by Parse.
func Skipped(err error) []*LineError {
	if err == nil {
		return nil
	}
	var out []*LineError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			var le *LineError
			if errors.As(e, &le) {
				out = append(out, le)
			}
		}
		return out
	}
	var le *LineError
	if errors.As(err, &le) {
		out = append(out, le)
	}
	return out
}
