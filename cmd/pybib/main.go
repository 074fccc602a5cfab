// Package main provides the pybib CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dwillcox/pybib/internal/ads"
	"github.com/dwillcox/pybib/internal/config"
	"github.com/dwillcox/pybib/internal/logger"
	"github.com/dwillcox/pybib/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	logLevel    string
	adsToken    string
	catbibOut   string

	cfg *config.Config
	log *zap.Logger
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pybib [files...]",
	Short: "Build BibTeX bibliographies from article PDFs",
	Long: `pybib finds the DOI or arXiv ID in each article, looks the paper up in
NASA ADS, and writes <bibcode>.bib next to it with a File link back to the PDF.
With --catbib it then merges every .bib file in the working directory into one
master bibliography, keeping the last entry seen for each citation code.

Commands output JSON by default; use --human for readable output.

Examples:
  pybib --adstoken TOKEN             # Store the ADS token
  pybib paper1.pdf paper2.pdf        # Write a .bib file per paper
  pybib *.pdf --catbib refs.bib      # Resolve, then merge into refs.bib`,
	Args:              cobra.ArbitraryArgs,
	PersistentPreRunE: setup,
	RunE:              runRoot,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config or info)")
	rootCmd.PersistentFlags().StringVar(&adsToken, "adstoken", "", "ADS API token (saved to the config directory when given to pybib itself)")
	rootCmd.Flags().StringVar(&catbibOut, "catbib", "", "Merge all .bib files in the working directory into this file")
	rootCmd.Version = Version
}

// setup loads .env and the config file and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(config.EnvFile); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	log, err = logger.New(os.Stderr, level)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))
	return nil
}

// runRoot is the combined flow: store the token, resolve the given files,
// then build the master bibliography if requested.
func runRoot(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && catbibOut == "" && adsToken == "" {
		return cmd.Help()
	}

	result := RootResult{}

	if adsToken != "" {
		path, err := config.WriteTokenFile(config.Dir(), adsToken)
		if err != nil {
			exitWithError(ExitConfigError, "saving token: %v", err)
		}
		log.Info("saved ADS token", zap.String("path", path))
		result.TokenFile = path
	}

	if len(args) > 0 {
		if hasToken() {
			res := resolveAndSave(cmd, args, ".", resolveOptions{extractor: cfg.Extractor})
			result.Resolve = &res
		} else {
			// Without a token the master file is still built from existing .bib files.
			log.Warn("no ADS token configured, skipping lookups", zap.Int("files", len(args)))
			result.ResolveSkipped = args
		}
	}

	if catbibOut != "" {
		inputs, err := collectBibFiles(".", catbibOut)
		if err != nil {
			exitWithError(ExitDataError, "listing .bib files: %v", err)
		}
		res, err := mergeBibFiles(inputs, catbibOut, mergeOptionsFromConfig(), log)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
		result.Merge = &res
	}

	if humanOutput {
		if result.TokenFile != "" {
			fmt.Printf("Saved ADS token to %s\n", result.TokenFile)
		}
		if result.Resolve != nil {
			printResolveHuman(*result.Resolve)
		}
		if len(result.ResolveSkipped) > 0 {
			fmt.Printf("No ADS token configured; skipped %d files. Set one with 'pybib token set TOKEN'.\n", len(result.ResolveSkipped))
		}
		if result.Merge != nil {
			printMergeHuman(*result.Merge)
		}
		return nil
	}
	return outputJSON(result)
}

// mustResolveToken returns the ADS token, exits if none is configured.
func mustResolveToken() string {
	token, source, err := config.ResolveToken(adsToken, cfg, config.TokenDirs())
	if err != nil {
		exitWithError(ExitConfigError, "reading token: %v", err)
	}
	if token == "" {
		exitWithError(ExitConfigError, "no ADS token configured\n\nSet one with 'pybib token set TOKEN', the %s environment variable, or a %s file.", config.TokenEnv, config.TokenFile)
	}
	log.Debug("using ADS token", zap.String("source", source))
	return token
}

// hasToken reports whether an ADS token is configured anywhere.
func hasToken() bool {
	token, _, err := config.ResolveToken(adsToken, cfg, config.TokenDirs())
	return err == nil && token != ""
}

// newADSClient builds the ADS client from the resolved token and config.
func newADSClient(token string) *ads.Client {
	opts := []ads.ClientOption{ads.WithToken(token)}
	if cfg.ADSURL != "" {
		opts = append(opts, ads.WithBaseURL(cfg.ADSURL))
	}
	return ads.NewClient(opts...)
}

// mustOpenCache opens the lookup cache, exits on error.
// The caller is responsible for calling Close() on the returned cache.
func mustOpenCache() *storage.Cache {
	c, err := storage.OpenCache(cfg.CacheFilePath())
	if err != nil {
		exitWithError(ExitError, "opening cache: %v", err)
	}
	return c
}
