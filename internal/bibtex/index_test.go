package bibtex

import (
	"errors"
	"slices"
	"testing"
)

func rec(source string, line int, key string) Record {
	return Record{
		Lines:  []string{"@article{" + key + ",", "  title = {from " + source + "},", "}"},
		Source: source,
		Line:   line,
	}
}

func TestMerge_DistinctKeys(t *testing.T) {
	sets := []RecordSet{
		{Source: "a.bib", Records: []Record{rec("a.bib", 1, "A1"), rec("a.bib", 5, "A2")}},
		{Source: "b.bib", Records: []Record{rec("b.bib", 1, "B1")}},
	}

	idx, report := Merge(sets, MergeOptions{})

	if idx.Len() != 3 {
		t.Errorf("Len() = %d, want 3", idx.Len())
	}
	if want := []string{"A1", "A2", "B1"}; !slices.Equal(idx.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", idx.Keys(), want)
	}
	if len(report.Duplicates) != 0 {
		t.Errorf("got %d duplicates, want 0", len(report.Duplicates))
	}
	if report.Sources != 2 || report.Records != 3 {
		t.Errorf("report = %+v, want 2 sources and 3 records", report)
	}
}

func TestMerge_LastWriteWins(t *testing.T) {
	sets := []RecordSet{
		{Source: "a.bib", Records: []Record{rec("a.bib", 1, "X"), rec("a.bib", 4, "Y")}},
		{Source: "b.bib", Records: []Record{rec("b.bib", 1, "X")}},
	}

	var events []Duplicate
	idx, report := Merge(sets, MergeOptions{
		OnDuplicate: func(d Duplicate) { events = append(events, d) },
	})

	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	got, ok := idx.Get("X")
	if !ok {
		t.Fatal("X missing from index")
	}
	if got.Source != "b.bib" {
		t.Errorf("X came from %q, want b.bib", got.Source)
	}
	// The replaced key keeps its original position.
	if want := []string{"X", "Y"}; !slices.Equal(idx.Keys(), want) {
		t.Errorf("Keys() = %v, want %v", idx.Keys(), want)
	}

	if len(events) != 1 || len(report.Duplicates) != 1 {
		t.Fatalf("got %d events / %d reported duplicates, want 1", len(events), len(report.Duplicates))
	}
	if events[0].Key != "X" || events[0].Previous.Source != "a.bib" || events[0].Replacement.Source != "b.bib" {
		t.Errorf("duplicate event = %+v", events[0])
	}
}

func TestMerge_SourceOrderDecidesWinner(t *testing.T) {
	a := RecordSet{Source: "a.bib", Records: []Record{rec("a.bib", 1, "X")}}
	b := RecordSet{Source: "b.bib", Records: []Record{rec("b.bib", 1, "X")}}

	idx, _ := Merge([]RecordSet{b, a}, MergeOptions{})
	if got, _ := idx.Get("X"); got.Source != "a.bib" {
		t.Errorf("X came from %q, want a.bib (last source)", got.Source)
	}
}

func TestMerge_WithinSourceDuplicate(t *testing.T) {
	set := RecordSet{Source: "a.bib", Records: []Record{rec("a.bib", 1, "X"), rec("a.bib", 9, "X"), rec("a.bib", 20, "X")}}

	idx, report := Merge([]RecordSet{set}, MergeOptions{})
	if got, _ := idx.Get("X"); got.Line != 20 {
		t.Errorf("X is from line %d, want 20", got.Line)
	}
	if len(report.Duplicates) != 2 {
		t.Errorf("got %d duplicates, want 2", len(report.Duplicates))
	}
}

func TestMerge_RejectsEmptyKeys(t *testing.T) {
	unkeyed := func(line int) Record {
		return Record{Lines: []string{"@comment{no key here}", "}"}, Source: "a.bib", Line: line}
	}
	set := RecordSet{Source: "a.bib", Records: []Record{unkeyed(1), rec("a.bib", 3, "A"), unkeyed(6)}}

	var rejected []Rejected
	idx, report := Merge([]RecordSet{set}, MergeOptions{
		OnRejected: func(r Rejected) { rejected = append(rejected, r) },
	})

	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1", idx.Len())
	}
	if _, ok := idx.Get(""); ok {
		t.Error("empty key should not be stored")
	}
	if len(rejected) != 2 || len(report.Rejected) != 2 {
		t.Fatalf("got %d rejected events, want 2", len(rejected))
	}
	if !errors.Is(rejected[0].Err, ErrEmptyKey) || rejected[1].Record.Line != 6 {
		t.Errorf("rejected = %+v", rejected)
	}
	if len(report.Duplicates) != 0 {
		t.Errorf("empty keys must not be reported as duplicates, got %d", len(report.Duplicates))
	}
}

func TestMerge_KeyByIdentifier(t *testing.T) {
	withDOI := func(source, key, doi string) Record {
		return Record{Lines: []string{"@article{" + key + ",", "  doi = {" + doi + "},", "}"}, Source: source}
	}
	sets := []RecordSet{
		{Source: "a.bib", Records: []Record{withDOI("a.bib", "First", "10.1/ABC")}},
		{Source: "b.bib", Records: []Record{withDOI("b.bib", "Second", "10.1/abc"), withDOI("b.bib", "Other", "10.1/def")}},
	}

	idx, report := Merge(sets, MergeOptions{KeyField: KeyIdentifier})

	if idx.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", idx.Len())
	}
	got, _ := idx.Get("10.1/abc")
	if got.Key(SearchFull) != "Second" {
		t.Errorf("10.1/abc resolved to %q, want Second", got.Key(SearchFull))
	}
	if len(report.Duplicates) != 1 {
		t.Errorf("got %d duplicates, want 1", len(report.Duplicates))
	}
}

func TestStore_Incremental(t *testing.T) {
	s := NewStore(MergeOptions{})
	s.Add(RecordSet{Source: "a.bib", Records: []Record{rec("a.bib", 1, "A")}})
	s.AddRecord(rec("mem", 1, "B"))

	if s.Index().Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Index().Len())
	}
	if r := s.Report(); r.Sources != 1 || r.Records != 2 {
		t.Errorf("report = %+v", r)
	}
}

func TestIndex_AllStopsEarly(t *testing.T) {
	idx := NewIndex()
	idx.Put("a", Record{})
	idx.Put("b", Record{})

	var seen []string
	for key := range idx.All() {
		seen = append(seen, key)
		break
	}
	if len(seen) != 1 || seen[0] != "a" {
		t.Errorf("seen = %v, want [a]", seen)
	}
}
