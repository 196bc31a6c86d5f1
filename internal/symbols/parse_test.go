package symbols

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		hasQualifier bool
		hint         string
		want         Kind
	}{
		{true, "method", KindMethod},
		{true, "procedure", KindMethod},
		{true, "", KindMethod},
		{false, "func", KindInterface},
		{false, "", KindInterface},
		{true, "constructor", KindConstructor},
		{false, "constructor", KindConstructor},
		{true, "destructor", KindConstructor},
		{false, "destructor", KindConstructor},
		{true, "Constructor", KindMethod},
		{false, "DESTRUCTOR", KindInterface},
	}

	for _, tt := range tests {
		name := tt.hint
		if tt.hasQualifier {
			name = "qualified/" + name
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.hasQualifier, tt.hint))
		})
	}
}

func TestParseExamples(t *testing.T) {
	tests := []struct {
		line string
		want Record
	}{
		{
			line: "MyClass.DoWork 10 foo.pas method",
			want: Record{Qualifier: "MyClass", Name: "DoWork", Kind: KindMethod, Line: 9, Path: "foo.pas", Hint: "method"},
		},
		{
			line: "TopLevelProc 3 foo.pas func",
			want: Record{Name: "TopLevelProc", Kind: KindInterface, Line: 2, Path: "foo.pas", Hint: "func"},
		},
		{
			line: "MyClass.Create 1 foo.pas constructor",
			want: Record{Qualifier: "MyClass", Name: "Create", Kind: KindConstructor, Line: 0, Path: "foo.pas", Hint: "constructor"},
		},
		{
			line: "Free 7 foo.pas destructor",
			want: Record{Name: "Free", Kind: KindConstructor, Line: 6, Path: "foo.pas", Hint: "destructor"},
		},
		{
			line: "Views.View.Restore  42   Mod/Views.odc   method  (v: View)   NEW,  EXTENSIBLE",
			want: Record{
				Qualifier: "Views", Name: "View.Restore", Kind: KindMethod, Line: 41,
				Path: "Mod/Views.odc", Hint: "method", Trailing: "(v: View) NEW, EXTENSIBLE",
			},
		},
		{
			line: ".hidden 5 a.cp var",
			want: Record{Name: ".hidden", Kind: KindInterface, Line: 4, Path: "a.cp", Hint: "var"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0])
		})
	}
}

func TestParseOneRecordPerLineInOrder(t *testing.T) {
	output := strings.Join([]string{
		"B 2 x.cp procedure",
		"",
		"A.M 1 x.cp method",
		"   \t ",
		"C 3 x.cp procedure",
		"",
	}, "\n")

	got, err := Parse(output)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"B", "M", "C"}, []string{got[0].Name, got[1].Name, got[2].Name})
}

func TestParseEmpty(t *testing.T) {
	for _, in := range []string{"", "\n", "  \n\t\n", "\r\n"} {
		got, err := Parse(in)
		assert.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestParseHandlesCRLF(t *testing.T) {
	got, err := Parse("A 1 a.cp procedure\r\nB.C 2 a.cp method\r\n")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "procedure", got[0].Hint)
	assert.Equal(t, "method", got[1].Hint)
}

func TestParseSkipsMalformedLines(t *testing.T) {
	output := "Good 1 a.cp procedure\nshort 2 a.cp\nBad x a.cp procedure\nZero 0 a.cp procedure\nTrail. 4 a.cp method\nAlso.Good 5 a.cp method\n"

	got, err := Parse(output)
	require.Len(t, got, 2)
	assert.Equal(t, "Good", got[0].Name)
	assert.Equal(t, "Good", got[1].Name)
	assert.Equal(t, "Also", got[1].Qualifier)

	require.Error(t, err)
	skipped := Skipped(err)
	require.Len(t, skipped, 4)
	assert.Equal(t, []int{2, 3, 4, 5}, []int{skipped[0].Line, skipped[1].Line, skipped[2].Line, skipped[3].Line})
	assert.Contains(t, skipped[0].Error(), "expected at least 4 fields")
}

func TestFormatRoundTrip(t *testing.T) {
	output := "MyClass.DoWork 10 foo.pas method\nTopLevelProc 3 foo.pas func\nMyClass.Create 1 foo.pas constructor extra  tokens\n"

	first, err := Parse(output)
	require.NoError(t, err)

	var lines []string
	for _, r := range first {
		lines = append(lines, r.Format())
	}
	second, err := Parse(strings.Join(lines, "\n"))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "MyClass.Create 1 foo.pas constructor extra tokens", lines[2])
}

func TestKindJSON(t *testing.T) {
	data, err := json.Marshal(Record{Name: "Create", Kind: KindConstructor, Path: "a.cp", Hint: "constructor"})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"constructor"`)

	var r Record
	require.NoError(t, json.Unmarshal(data, &r))
	assert.Equal(t, KindConstructor, r.Kind)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("struct")))
	assert.Equal(t, "kind(9)", Kind(9).String())
}

func TestFilterByName(t *testing.T) {
	records := []Record{
		{Qualifier: "Views", Name: "Restore"},
		{Qualifier: "Models", Name: "restore"},
		{Name: "Restore"},
		{Qualifier: "Views", Name: "Other"},
	}

	assert.Len(t, FilterByName(records, "", "Restore"), 3)
	got := FilterByName(records, "views", "restore")
	require.Len(t, got, 1)
	assert.Equal(t, "Views", got[0].Qualifier)
	assert.Empty(t, FilterByName(records, "", "Missing"))
}

func TestSplitTag(t *testing.T) {
	tests := []struct{ tag, qualifier, name string }{
		{"A.B", "A", "B"},
		{"A.B.C", "A", "B.C"},
		{"Plain", "", "Plain"},
		{".Dot", "", ".Dot"},
	}
	for _, tt := range tests {
		q, n := SplitTag(tt.tag)
		assert.Equal(t, tt.qualifier, q, tt.tag)
		assert.Equal(t, tt.name, n, tt.tag)
	}
}
