// Package symbols turns GNU GLOBAL query output into symbol records.
package symbols

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies a symbol for navigation purposes.
type Kind int

const (
	// KindMethod is the default for qualified tags (Type.Proc).
	KindMethod Kind = iota
	// KindInterface marks an unqualified, top-level declaration.
	KindInterface
	// KindConstructor marks constructor and destructor procedures.
	KindConstructor
)

var kindNames = map[Kind]string{
	KindMethod:      "method",
	KindInterface:   "interface",
	KindConstructor: "constructor",
}

// String returns the kind's lowercase name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *Kind) UnmarshalText(b []byte) error {
	for kind, name := range kindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown symbol kind %q", b)
}

// Classify picks the kind of a tag from whether it carries a qualifier and
// the tool's kind hint. A constructor/destructor hint always wins; otherwise
// qualified tags are methods and unqualified ones interface-level.
func Classify(hasQualifier bool, hint string) Kind {
	if hint == "constructor" || hint == "destructor" {
		return KindConstructor
	}
	if !hasQualifier {
		return KindInterface
	}
	return KindMethod
}

// Record is one declaration reported by the tag tool.
type Record struct {
	Qualifier string `json:"qualifier,omitempty"` // owning type, empty for top-level tags
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Line      int    `json:"line"` // 0-based
	Path      string `json:"path"`
	Hint      string `json:"hint"`               // raw kind field from the tool
	Trailing  string `json:"trailing,omitempty"` // remaining fields, space-joined
}

// Tag returns the tag as the tool printed it.
func (r Record) Tag() string {
	if r.Qualifier == "" {
		return r.Name
	}
	return r.Qualifier + "." + r.Name
}

// Format renders the record back into the tool's line format.
func (r Record) Format() string {
	fields := []string{r.Tag(), strconv.Itoa(r.Line + 1), r.Path, r.Hint}
	if r.Trailing != "" {
		fields = append(fields, r.Trailing)
	}
	return strings.Join(fields, " ")
}

// SplitTag separates "Qualifier.Name". A dot at index 0, or no dot at all,
// means the tag is unqualified.
func SplitTag(tag string) (qualifier, name string) {
	if i := strings.IndexByte(tag, '.'); i > 0 {
		return tag[:i], tag[i+1:]
	}
	return "", tag
}

// FilterByName returns the records whose name equals name, ignoring case.
// When qualifier is non-empty only records with that qualifier are kept.
func FilterByName(records []Record, qualifier, name string) []Record {
	var out []Record
	for _, r := range records {
		if !strings.EqualFold(r.Name, name) {
			continue
		}
		if qualifier != "" && !strings.EqualFold(r.Qualifier, qualifier) {
			continue
		}
		out = append(out, r)
	}
	return out
}
