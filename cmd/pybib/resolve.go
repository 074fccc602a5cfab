package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dwillcox/pybib/internal/ads"
	"github.com/dwillcox/pybib/internal/document"
	"github.com/dwillcox/pybib/internal/pdf"
)

var (
	resolveOutDir    string
	resolveExtractor string
	resolveNoCache   bool
	resolveRefresh   bool
)

func init() {
	resolveCmd.Flags().StringVarP(&resolveOutDir, "outdir", "o", ".", "Directory to write <bibcode>.bib files to")
	resolveCmd.Flags().StringVar(&resolveExtractor, "extractor", "", "Text extractor: native or pdfgrep (default from config or native)")
	resolveCmd.Flags().BoolVar(&resolveNoCache, "no-cache", false, "Do not read or write the lookup cache")
	resolveCmd.Flags().BoolVar(&resolveRefresh, "refresh", false, "Query ADS even for cached papers")
	rootCmd.AddCommand(resolveCmd)
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <file>...",
	Short: "Write a BibTeX file for each article",
	Long: `Find the DOI or arXiv ID in each article, look it up in NASA ADS, and
write <bibcode>.bib with a File field linking back to the article.

Files that cannot be identified or matched are reported and skipped.

Examples:
  pybib resolve paper.pdf
  pybib resolve --outdir bib/ --extractor pdfgrep *.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

// resolveOptions selects how documents are resolved.
type resolveOptions struct {
	extractor string
	noCache   bool
	refresh   bool
}

func runResolve(cmd *cobra.Command, args []string) error {
	extractor := resolveExtractor
	if extractor == "" {
		extractor = cfg.Extractor
	}

	result := resolveAndSave(cmd, args, resolveOutDir, resolveOptions{
		extractor: extractor,
		noCache:   resolveNoCache,
		refresh:   resolveRefresh,
	})

	if humanOutput {
		printResolveHuman(result)
		return nil
	}
	return outputJSON(result)
}

// resolveAndSave resolves paths and saves every resolved record to outDir.
// Configuration and authentication failures exit.
func resolveAndSave(cmd *cobra.Command, paths []string, outDir string, opts resolveOptions) ResolveResult {
	ex, err := pdf.New(opts.extractor)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		exitWithError(ExitDataError, "creating output directory: %v", err)
	}

	r := &document.Resolver{
		Extractor: ex,
		Lookup:    newADSClient(mustResolveToken()),
		Refresh:   opts.refresh,
	}
	if !opts.noCache {
		cache := mustOpenCache()
		defer cache.Close()
		r.Cache = cache
	}

	docs, err := r.Resolve(cmd.Context(), paths)
	if err != nil {
		if ads.IsAuthError(err) {
			exitWithError(ExitConfigError, "ADS rejected the token: %v", err)
		}
		exitWithError(ExitError, "resolving documents: %v", err)
	}

	return saveDocuments(docs, outDir, log)
}

// saveDocuments writes each resolved document and summarizes the outcome.
func saveDocuments(docs []*document.Document, outDir string, logger *zap.Logger) ResolveResult {
	result := ResolveResult{Documents: make([]DocumentResult, 0, len(docs))}
	for _, doc := range docs {
		dr := DocumentResult{
			File:       doc.Path,
			DOI:        doc.ID.DOI,
			ArXiv:      doc.ID.ArXiv,
			Bibcode:    doc.Bibcode,
			Candidates: doc.Candidates,
		}

		if doc.Resolved() {
			path, err := document.Save(doc, outDir)
			if err != nil {
				dr.Error = err.Error()
				logger.Error("writing BibTeX", zap.String("file", doc.Path), zap.Error(err))
			} else {
				dr.Output = path
				logger.Info("wrote BibTeX", zap.String("file", doc.Path), zap.String("output", path))
			}
		} else if doc.Err != nil {
			dr.Error = doc.Err.Error()
		}

		if dr.Output != "" {
			result.Resolved++
		} else {
			result.Failed++
		}
		result.Documents = append(result.Documents, dr)
	}
	return result
}

func printResolveHuman(result ResolveResult) {
	for _, d := range result.Documents {
		switch {
		case d.Output != "":
			fmt.Printf("%s -> %s\n", d.File, d.Output)
		case d.Error != "":
			fmt.Printf("%s: %s\n", d.File, d.Error)
		}
		for _, c := range d.Candidates {
			fmt.Printf("  candidate: %s\n", c)
		}
	}
	fmt.Printf("\nResolved %d of %d documents\n", result.Resolved, len(result.Documents))
}
