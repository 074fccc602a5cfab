package bibtex

import (
	"errors"
	"iter"
)

// ErrEmptyKey is reported for records from which no key could be extracted.
var ErrEmptyKey = errors.New("record has no key")

// RecordSet holds the records parsed from one source, in parse order.
type RecordSet struct {
	Source  string
	Records []Record
}

// Index maps keys to records. Keys iterate in the order they were first added;
// replacing a record keeps its key's position.
type Index struct {
	keys    []string
	records map[string]Record
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{records: make(map[string]Record)}
}

// Put stores rec under key, returning the record it replaced, if any.
func (x *Index) Put(key string, rec Record) (Record, bool) {
	prev, exists := x.records[key]
	if !exists {
		x.keys = append(x.keys, key)
	}
	x.records[key] = rec
	return prev, exists
}

// Get returns the record stored under key.
func (x *Index) Get(key string) (Record, bool) {
	rec, ok := x.records[key]
	return rec, ok
}

// Len returns the number of keys in the index.
func (x *Index) Len() int {
	return len(x.keys)
}

// Keys returns the keys in index order.
func (x *Index) Keys() []string {
	return append([]string(nil), x.keys...)
}

// All yields key/record pairs in index order.
func (x *Index) All() iter.Seq2[string, Record] {
	return func(yield func(string, Record) bool) {
		for _, key := range x.keys {
			if !yield(key, x.records[key]) {
				return
			}
		}
	}
}

// Duplicate reports a key seen more than once. Replacement won.
type Duplicate struct {
	Key         string
	Previous    Record
	Replacement Record
}

// Rejected reports a record that could not be added to the index.
type Rejected struct {
	Record Record
	Err    error
}

// MergeOptions configures how records are keyed and how events are reported.
type MergeOptions struct {
	KeyField    KeyField
	Search      SearchMode
	OnDuplicate func(Duplicate)
	OnRejected  func(Rejected)
}

// MergeReport summarizes a merge.
type MergeReport struct {
	Sources    int
	Records    int
	Duplicates []Duplicate
	Rejected   []Rejected
}

// Store merges record sets into an Index, last write wins.
type Store struct {
	opts   MergeOptions
	index  *Index
	report MergeReport
}

// NewStore creates an empty store.
func NewStore(opts MergeOptions) *Store {
	if opts.KeyField == "" {
		opts.KeyField = KeyCitationCode
	}
	return &Store{opts: opts, index: NewIndex()}
}

// Add merges one record set into the store, records in order.
func (s *Store) Add(set RecordSet) {
	s.report.Sources++
	for _, rec := range set.Records {
		s.AddRecord(rec)
	}
}

// AddRecord merges a single record. A record whose key collides with a stored
// one replaces it and is reported as a duplicate; a record without a key is
// rejected with ErrEmptyKey.
func (s *Store) AddRecord(rec Record) {
	s.report.Records++

	key := s.opts.KeyField.Of(rec, s.opts.Search)
	if key == "" {
		r := Rejected{Record: rec, Err: ErrEmptyKey}
		s.report.Rejected = append(s.report.Rejected, r)
		if s.opts.OnRejected != nil {
			s.opts.OnRejected(r)
		}
		return
	}

	prev, replaced := s.index.Put(key, rec)
	if replaced {
		d := Duplicate{Key: key, Previous: prev, Replacement: rec}
		s.report.Duplicates = append(s.report.Duplicates, d)
		if s.opts.OnDuplicate != nil {
			s.opts.OnDuplicate(d)
		}
	}
}

// Index returns the merged index.
func (s *Store) Index() *Index {
	return s.index
}

// Report returns a summary of everything merged so far.
func (s *Store) Report() MergeReport {
	return s.report
}

// Merge merges sets in slice order and returns the resulting index.
func Merge(sets []RecordSet, opts MergeOptions) (*Index, MergeReport) {
	s := NewStore(opts)
	for _, set := range sets {
		s.Add(set)
	}
	return s.Index(), s.Report()
}
