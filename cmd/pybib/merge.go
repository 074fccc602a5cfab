package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dwillcox/pybib/internal/bibtex"
)

var (
	mergeOut        string
	mergeKeyField   string
	mergeSearchMode string
)

func init() {
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "", "Output .bib file (required)")
	mergeCmd.Flags().StringVar(&mergeKeyField, "key-field", "", "Deduplicate by citation_code or identifier (default from config or citation_code)")
	mergeCmd.Flags().StringVar(&mergeSearchMode, "search-mode", "", "Where to look for keys: full or first_line (default from config or full)")
	mergeCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge [file.bib...] --out <file>",
	Short: "Merge .bib files into one bibliography",
	Long: `Merge BibTeX files into a single file with one entry per key.

Files are read in the order given (default: every .bib file in the working
directory, sorted, excluding the output). When a key appears more than once
the entry read last wins, and the replacement is reported.

Examples:
  pybib merge --out refs.bib
  pybib merge a.bib b.bib --out refs.bib --key-field identifier`,
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	opts := mergeOptionsFromConfig()
	if mergeKeyField != "" {
		kf, err := bibtex.ParseKeyField(mergeKeyField)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		opts.KeyField = kf
	}
	if mergeSearchMode != "" {
		mode, err := bibtex.ParseSearchMode(mergeSearchMode)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		opts.Search = mode
	}

	inputs := args
	if len(inputs) == 0 {
		var err error
		inputs, err = collectBibFiles(".", mergeOut)
		if err != nil {
			exitWithError(ExitDataError, "listing .bib files: %v", err)
		}
	}

	result, err := mergeBibFiles(inputs, mergeOut, opts, log)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		printMergeHuman(result)
		return nil
	}
	return outputJSON(result)
}

// mergeOptionsFromConfig returns merge options from the config file.
// Config values were validated when it was loaded.
func mergeOptionsFromConfig() bibtex.MergeOptions {
	kf, _ := bibtex.ParseKeyField(cfg.KeyField)
	mode, _ := bibtex.ParseSearchMode(cfg.SearchMode)
	return bibtex.MergeOptions{KeyField: kf, Search: mode}
}

// collectBibFiles returns the .bib files in dir, sorted by name, without
// exclude. Hidden files, including leftover temp files from interrupted
// writes, are skipped.
func collectBibFiles(dir, exclude string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.bib"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	excludeAbs := ""
	if exclude != "" {
		if excludeAbs, err = filepath.Abs(exclude); err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		if strings.HasPrefix(filepath.Base(m), ".") {
			continue
		}
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, err
		}
		if abs == excludeAbs {
			continue
		}
		if info, err := os.Stat(m); err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}

// mergeBibFiles merges inputs in order and writes the result to out.
func mergeBibFiles(inputs []string, out string, opts bibtex.MergeOptions, logger *zap.Logger) (MergeResult, error) {
	result := MergeResult{
		Output:     out,
		Sources:    inputs,
		Duplicates: []DuplicateInfo{},
		Dropped:    []bibtex.Dropped{},
		Rejected:   []RejectedInfo{},
	}

	opts.OnDuplicate = func(d bibtex.Duplicate) {
		logger.Warn("duplicate entry replaced",
			zap.String("key", d.Key),
			zap.String("previous", location(d.Previous)),
			zap.String("replacement", location(d.Replacement)))
		result.Duplicates = append(result.Duplicates, DuplicateInfo{
			Key:         d.Key,
			Previous:    location(d.Previous),
			Replacement: location(d.Replacement),
		})
	}
	opts.OnRejected = func(r bibtex.Rejected) {
		logger.Warn("entry skipped", zap.String("record", location(r.Record)), zap.Error(r.Err))
		result.Rejected = append(result.Rejected, RejectedInfo{
			Record: location(r.Record),
			Reason: r.Err.Error(),
		})
	}

	store := bibtex.NewStore(opts)
	for _, path := range inputs {
		set, dropped, err := bibtex.ReadFile(path)
		if err != nil {
			return result, err
		}
		for _, d := range dropped {
			logger.Warn("unterminated entry dropped", zap.String("file", d.Source), zap.Int("line", d.Line), zap.String("start", d.Start))
		}
		result.Dropped = append(result.Dropped, dropped...)
		store.Add(set)
	}

	idx := store.Index()
	if err := bibtex.WriteFile(out, idx); err != nil {
		return result, err
	}
	result.Records = store.Report().Records
	result.Written = idx.Len()
	logger.Info("wrote bibliography",
		zap.String("output", out),
		zap.Int("sources", len(inputs)),
		zap.Int("entries", idx.Len()))
	return result, nil
}

func printMergeHuman(result MergeResult) {
	for _, d := range result.Duplicates {
		fmt.Printf("duplicate %s: %s replaced by %s\n", d.Key, d.Previous, d.Replacement)
	}
	for _, d := range result.Dropped {
		fmt.Printf("dropped unterminated entry at %s:%d: %s\n", d.Source, d.Line, d.Start)
	}
	for _, r := range result.Rejected {
		fmt.Printf("skipped %s: %s\n", r.Record, r.Reason)
	}
	fmt.Printf("Wrote %d entries from %d files to %s\n", result.Written, len(result.Sources), result.Output)
}
