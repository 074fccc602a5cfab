package document

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dwillcox/pybib/internal/ads"
	"github.com/dwillcox/pybib/internal/bibtex"
	"github.com/dwillcox/pybib/internal/logger"
	"github.com/dwillcox/pybib/internal/pdf"
)

// Lookup finds papers in ADS. *ads.Client implements it.
type Lookup interface {
	Search(ctx context.Context, identifier string) ([]ads.Paper, error)
	ExportBibTeX(ctx context.Context, bibcodes []string) (string, error)
}

// Cache stores earlier lookups. *storage.Cache implements it.
type Cache interface {
	GetBibcodes(identifier string) ([]string, bool, error)
	PutBibcodes(identifier string, bibcodes []string) error
	GetBibTeX(bibcode string) (string, bool, error)
	PutBibTeX(bibcode, entry string) error
}

// exportSource names records parsed from ADS export responses.
const exportSource = "ads:export"

// Resolver turns document files into BibTeX records.
type Resolver struct {
	Extractor pdf.Extractor
	Lookup    Lookup
	Cache     Cache // optional
	Refresh   bool  // skip cache reads; results are still written
	Logger    *zap.Logger // optional; defaults to the context logger
}

// Resolve identifies each file, finds its bibcode, and exports the BibTeX
// for every bibcode found in one request. Per-document failures are recorded
// on the Document; only authentication failures and cancellation abort.
func (r *Resolver) Resolve(ctx context.Context, paths []string) ([]*Document, error) {
	log := r.loggerFor(ctx)
	docs := make([]*Document, 0, len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return docs, err
		}
		doc := &Document{Path: path}
		docs = append(docs, doc)

		if err := r.identify(ctx, doc); err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			doc.Err = err
			log.Warn("cannot identify document", zap.String("file", path), zap.Error(err))
			continue
		}
		if doc.ID.IsZero() {
			doc.Err = ErrNoIdentifier
			log.Warn("no identifier", zap.String("file", path))
			continue
		}
		log.Info("found identifier",
			zap.String("file", path),
			zap.String("doi", doc.ID.DOI),
			zap.String("arxiv", doc.ID.ArXiv))

		if err := r.findBibcode(ctx, doc); err != nil {
			if ads.IsAuthError(err) || ctx.Err() != nil {
				return docs, err
			}
			doc.Err = err
			log.Warn("lookup failed", zap.String("file", path), zap.String("identifier", doc.ID.String()), zap.Error(err))
		}
	}

	if err := r.attachRecords(ctx, docs); err != nil {
		return docs, err
	}
	return docs, nil
}

func (r *Resolver) identify(ctx context.Context, doc *Document) error {
	id, err := Identify(ctx, r.Extractor, doc.Path)
	if err != nil {
		return err
	}
	doc.ID = id
	return nil
}

// findBibcode sets doc.Bibcode when ADS knows exactly one paper for the
// document's identifier.
func (r *Resolver) findBibcode(ctx context.Context, doc *Document) error {
	ident := doc.ID.String()

	bibcodes, ok := r.cachedBibcodes(ctx, ident)
	if !ok {
		papers, err := r.Lookup.Search(ctx, ident)
		if err != nil {
			return err
		}
		bibcodes = make([]string, 0, len(papers))
		for _, p := range papers {
			bibcodes = append(bibcodes, p.Bibcode)
		}
		// Misses are not cached so papers indexed later can still be found.
		if r.Cache != nil && len(bibcodes) > 0 {
			if err := r.Cache.PutBibcodes(ident, bibcodes); err != nil {
				r.loggerFor(ctx).Warn("cache write failed", zap.Error(err))
			}
		}
	}

	switch len(bibcodes) {
	case 0:
		return fmt.Errorf("%w for %s", ErrNotFound, ident)
	case 1:
		doc.Bibcode = bibcodes[0]
		return nil
	default:
		doc.Candidates = bibcodes
		return fmt.Errorf("%w for %s: %s", ErrAmbiguous, ident, strings.Join(bibcodes, ", "))
	}
}

func (r *Resolver) cachedBibcodes(ctx context.Context, ident string) ([]string, bool) {
	if r.Cache == nil || r.Refresh {
		return nil, false
	}
	bibcodes, ok, err := r.Cache.GetBibcodes(ident)
	if err != nil {
		r.loggerFor(ctx).Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	if ok {
		r.loggerFor(ctx).Debug("cached lookup", zap.String("identifier", ident))
	}
	return bibcodes, ok
}

// attachRecords fetches BibTeX for every document with a bibcode. Cached
// entries are used where allowed; the rest come from a single export.
func (r *Resolver) attachRecords(ctx context.Context, docs []*Document) error {
	log := r.loggerFor(ctx)
	store := bibtex.NewStore(bibtex.MergeOptions{
		KeyField: bibtex.KeyCitationCode,
		OnRejected: func(rej bibtex.Rejected) {
			log.Warn("exported record rejected", zap.Int("line", rej.Record.Line), zap.Error(rej.Err))
		},
	})

	var missing []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		if doc.Bibcode == "" || seen[doc.Bibcode] {
			continue
		}
		seen[doc.Bibcode] = true

		// An incomplete cached entry counts as a miss and is exported again.
		if entry, ok := r.cachedEntry(ctx, doc.Bibcode); ok {
			recs, dropped := bibtex.ParseString(entry, "cache:"+doc.Bibcode)
			for _, d := range dropped {
				log.Warn("incomplete cached record", zap.String("bibcode", doc.Bibcode), zap.Int("line", d.Line), zap.String("start", d.Start))
			}
			if len(dropped) == 0 {
				for _, rec := range recs {
					store.AddRecord(rec)
				}
				if _, found := store.Index().Get(doc.Bibcode); found {
					continue
				}
			}
		}
		missing = append(missing, doc.Bibcode)
	}

	if len(missing) > 0 {
		if err := r.export(ctx, missing, store); err != nil {
			if ads.IsAuthError(err) || ctx.Err() != nil {
				return err
			}
			log.Warn("export failed", zap.Strings("bibcodes", missing), zap.Error(err))
			for _, doc := range docs {
				if doc.Bibcode != "" && doc.Err == nil {
					if _, ok := store.Index().Get(doc.Bibcode); !ok {
						doc.Err = err
					}
				}
			}
		}
	}

	idx := store.Index()
	for _, doc := range docs {
		if doc.Bibcode == "" || doc.Err != nil {
			continue
		}
		rec, ok := idx.Get(doc.Bibcode)
		if !ok {
			doc.Err = fmt.Errorf("%w for %s", ErrNoExport, doc.Bibcode)
			log.Warn("no BibTeX retrieved", zap.String("file", doc.Path), zap.String("bibcode", doc.Bibcode))
			continue
		}
		doc.Record = &rec
	}
	return nil
}

func (r *Resolver) cachedEntry(ctx context.Context, bibcode string) (string, bool) {
	if r.Cache == nil || r.Refresh {
		return "", false
	}
	entry, ok, err := r.Cache.GetBibTeX(bibcode)
	if err != nil {
		r.loggerFor(ctx).Warn("cache read failed", zap.Error(err))
		return "", false
	}
	return entry, ok
}

// export requests BibTeX for bibcodes and adds the returned records to store.
func (r *Resolver) export(ctx context.Context, bibcodes []string, store *bibtex.Store) error {
	log := r.loggerFor(ctx)
	text, err := r.Lookup.ExportBibTeX(ctx, bibcodes)
	if err != nil {
		return err
	}

	recs, dropped, err := bibtex.ParseReader(strings.NewReader(text), exportSource)
	if err != nil {
		return fmt.Errorf("parsing export: %w", err)
	}
	for _, d := range dropped {
		log.Warn("incomplete exported record", zap.Int("line", d.Line), zap.String("start", d.Start))
	}

	for _, rec := range recs {
		store.AddRecord(rec)
		if r.Cache == nil {
			continue
		}
		if key := rec.Key(bibtex.SearchFull); key != "" {
			if err := r.Cache.PutBibTeX(key, rec.String()); err != nil {
				log.Warn("cache write failed", zap.Error(err))
			}
		}
	}
	log.Info("exported BibTeX", zap.Int("requested", len(bibcodes)), zap.Int("received", len(recs)))
	return nil
}

// loggerFor returns r.Logger, or the logger carried by ctx.
func (r *Resolver) loggerFor(ctx context.Context) *zap.Logger {
	if r.Logger == nil {
		return logger.FromContext(ctx)
	}
	return r.Logger
}
