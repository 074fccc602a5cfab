package document

import (
	"context"
	"errors"
	"testing"

	"github.com/dwillcox/pybib/internal/pdf"
)

// fakeExtractor answers Grep calls from a pattern-to-output table.
type fakeExtractor struct {
	out   map[string]string
	err   error
	calls []string
}

func (f *fakeExtractor) Grep(ctx context.Context, path, pattern string) (string, error) {
	f.calls = append(f.calls, pattern)
	if f.err != nil {
		return "", f.err
	}
	return f.out[pattern], nil
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name string
		out  map[string]string
		want Identifier
	}{
		{
			name: "labelled doi",
			out:  map[string]string{DOIPattern: "doi:10.3847/1538-4357/aa5f4b"},
			want: Identifier{DOI: "10.3847/1538-4357/aa5f4b"},
		},
		{
			name: "labelled doi with spacing and case",
			out:  map[string]string{DOIPattern: "DOI : 10.1093/mnras/stw123."},
			want: Identifier{DOI: "10.1093/mnras/stw123"},
		},
		{
			name: "first non-empty label wins",
			out:  map[string]string{DOIPattern: "doi:\ndoi: 10.1103/PhysRevD.1.2\ndoi:10.9/other"},
			want: Identifier{DOI: "10.1103/PhysRevD.1.2"},
		},
		{
			name: "bare doi fallback",
			out:  map[string]string{pdf.BareDOIPattern: "10.1038/nature12373"},
			want: Identifier{DOI: "10.1038/nature12373"},
		},
		{
			name: "arxiv stamp",
			out:  map[string]string{ArXivPattern: "arXiv:1601.00001v2 [astro-ph.HE] 4 Jan 2016"},
			want: Identifier{ArXiv: "arXiv:1601.00001"},
		},
		{
			name: "doi preferred over arxiv",
			out: map[string]string{
				DOIPattern:   "doi:10.1/abc",
				ArXivPattern: "arXiv:1601.00001v2 [astro-ph.HE] 4 Jan 2016",
			},
			want: Identifier{DOI: "10.1/abc"},
		},
		{
			name: "nothing",
			out:  map[string]string{},
			want: Identifier{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Identify(context.Background(), &fakeExtractor{out: tt.out}, "paper.pdf")
			if err != nil {
				t.Fatalf("Identify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Identify() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIdentify_StopsAtFirstMatch(t *testing.T) {
	ex := &fakeExtractor{out: map[string]string{DOIPattern: "doi:10.1/abc"}}
	if _, err := Identify(context.Background(), ex, "paper.pdf"); err != nil {
		t.Fatal(err)
	}
	if len(ex.calls) != 1 {
		t.Errorf("extractor called %d times, want 1", len(ex.calls))
	}
}

func TestIdentify_ExtractorError(t *testing.T) {
	ex := &fakeExtractor{err: pdf.ErrExtractor}
	if _, err := Identify(context.Background(), ex, "paper.pdf"); !errors.Is(err, pdf.ErrExtractor) {
		t.Errorf("Identify() error = %v, want ErrExtractor", err)
	}
}

func TestIdentifier_String(t *testing.T) {
	if got := (Identifier{DOI: "10.1/a", ArXiv: "arXiv:1"}).String(); got != "10.1/a" {
		t.Errorf("String() = %q", got)
	}
	if got := (Identifier{ArXiv: "arXiv:1"}).String(); got != "arXiv:1" {
		t.Errorf("String() = %q", got)
	}
	if !(Identifier{}).IsZero() {
		t.Error("zero Identifier should report IsZero")
	}
}
