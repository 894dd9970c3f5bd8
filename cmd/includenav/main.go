package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/shehackedyou/includenav"
)

// Set at build time
var version = "dev"

// defaultScanGlob selects the sources scan walks when no files are given.
const defaultScanGlob = "**/*.{php,inc,phtml,js,mjs,cjs,jsx,ts,mts,cts,tsx,vue,html,htm,css,scss,sass,less}"

// errFindings makes scan exit non-zero without printing a usage error.
var errFindings = errors.New("unresolved includes found")

type app struct {
	root       string
	language   string
	logLevel   string
	jsonOutput bool

	navigator *includenav.Navigator
	logger    *slog.Logger
	out       io.Writer
}

func main() {
	a := &app{out: os.Stdout}
	rootCmd := a.command()
	err := rootCmd.Execute()
	if a.navigator != nil {
		if closeErr := a.navigator.Close(); closeErr != nil {
			slog.Error("Error closing navigator", "error", closeErr)
		}
	}
	if err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func (a *app) command() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "includenav",
		Short:         "Resolve include/import paths the way the includenav language server does",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.root, "root", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&a.language, "language", "", "Language id of the document (default: from file extension)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "Print machine-readable output")

	resolveCmd := &cobra.Command{
		Use:   "resolve <file> <path>",
		Short: "List the files a raw include path resolves to from <file>",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runResolve,
	}
	contextCmd := &cobra.Command{
		Use:   "context <file> <line> <col>",
		Short: "Extract the include literal at a 1-based line and byte column",
		Args:  cobra.ExactArgs(3),
		RunE:  a.runContext(false),
	}
	prefixCmd := &cobra.Command{
		Use:   "prefix <file> <line> <col>",
		Short: "Extract the partially typed literal before a 1-based line and byte column",
		Args:  cobra.ExactArgs(3),
		RunE:  a.runContext(true),
	}
	completeCmd := &cobra.Command{
		Use:   "complete <file> <prefix>",
		Short: "List directory entries completing <prefix> from <file>",
		Args:  cobra.ExactArgs(2),
		RunE:  a.runComplete,
	}
	scanCmd := &cobra.Command{
		Use:   "scan [files...]",
		Short: "Report unresolved includes; exits 1 when any are found",
		RunE:  a.runScan,
	}
	scanCmd.Flags().String("glob", defaultScanGlob, "Files to scan under --root when none are given")
	checkCmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Send a HEAD request and print the status",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runCheck,
	}
	aliasesCmd := &cobra.Command{
		Use:   "aliases",
		Short: "Print the alias table extracted for --root",
		Args:  cobra.NoArgs,
		RunE:  a.runAliases,
	}

	rootCmd.AddCommand(resolveCmd, contextCmd, prefixCmd, completeCmd, scanCmd, checkCmd, aliasesCmd)
	return rootCmd
}

// setup builds the navigator and the final logger.
func (a *app) setup() error {
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	navigator, initErr := includenav.NewNavigator(tempLogger)
	if initErr != nil && !errors.Is(initErr, includenav.ErrConfig) {
		return fmt.Errorf("initializing navigator: %w", initErr)
	}
	a.navigator = navigator

	chosenLevel := navigator.GetCurrentConfig().LogLevel
	if a.logLevel != "" {
		chosenLevel = a.logLevel
	}
	level, parseErr := includenav.ParseLogLevel(chosenLevel)
	if parseErr != nil {
		tempLogger.Warn("Invalid log level specified, using default 'info'", "specified_level", chosenLevel, "error", parseErr)
		level = slog.LevelInfo
	}
	a.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(a.logger)
	if initErr != nil {
		a.logger.Debug("Navigator initialized with configuration warnings", "error", initErr)
	}

	if a.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		a.root = wd
	}
	root, err := filepath.Abs(a.root)
	if err != nil {
		return fmt.Errorf("resolving --root: %w", err)
	}
	a.root = root
	navigator.AddWorkspaceRoot(root)
	return nil
}

// loadDocument reads path (missing files give an empty document) with the
// language from --language or the file extension.
func (a *app) loadDocument(path string) (*includenav.TextDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", abs, err)
	}
	language := a.language
	if language == "" {
		language = includenav.LanguageForPath(abs)
	}
	return includenav.NewTextDocument(abs, language, string(content)), nil
}

func (a *app) print(v any, text func(w io.Writer)) error {
	if a.jsonOutput {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(a.out)
	return nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), time.Minute)
}

func (a *app) runResolve(cmd *cobra.Command, args []string) error {
	doc, err := a.loadDocument(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res := a.navigator.Resolve(ctx, doc, args[1])
	return a.print(res, func(w io.Writer) {
		if res.Kind != includenav.ResolutionFound {
			fmt.Fprintln(w, "unresolved")
			return
		}
		for _, target := range res.Targets {
			fmt.Fprintln(w, target)
		}
	})
}

func (a *app) runContext(prefix bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		doc, err := a.loadDocument(args[0])
		if err != nil {
			return err
		}
		line, err := strconv.Atoi(args[1])
		if err != nil || line <= 0 {
			return fmt.Errorf("invalid line %q: must be a positive integer", args[1])
		}
		col, err := strconv.Atoi(args[2])
		if err != nil || col <= 0 {
			return fmt.Errorf("invalid col %q: must be a positive integer", args[2])
		}

		var hit includenav.PathContext
		if prefix {
			hit = a.navigator.ExtractPrefix(doc, line-1, col-1)
		} else {
			hit = a.navigator.ExtractContext(doc, line-1, col-1)
		}
		return a.print(hit, func(w io.Writer) {
			if !hit.Found() {
				fmt.Fprintln(w, "none")
				return
			}
			fmt.Fprintf(w, "%s\t%d-%d\t%s\n", hit.Kind, hit.Start+1, hit.End+1, hit.Text)
		})
	}
}

func (a *app) runComplete(cmd *cobra.Command, args []string) error {
	doc, err := a.loadDocument(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	entries := a.navigator.ListCompletions(ctx, doc, args[1])
	return a.print(entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Detail)
		}
	})
}

type fileFindings struct {
	Path     string               `json:"path"`
	Findings []includenav.Finding `json:"findings"`
}

func (a *app) runScan(cmd *cobra.Command, args []string) error {
	files := args
	if len(files) == 0 {
		pattern, _ := cmd.Flags().GetString("glob")
		matches, err := doublestar.Glob(os.DirFS(a.root), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return fmt.Errorf("expanding --glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			files = append(files, filepath.Join(a.root, filepath.FromSlash(m)))
		}
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	var results []fileFindings
	total := 0
	for _, f := range files {
		doc, err := a.loadDocument(f)
		if err != nil {
			return err
		}
		findings, err := a.navigator.ScanDocument(ctx, doc)
		if err != nil {
			return fmt.Errorf("scanning %s: %w", f, err)
		}
		if len(findings) == 0 {
			continue
		}
		total += len(findings)
		results = append(results, fileFindings{Path: doc.Path(), Findings: findings})
	}
	a.logger.Info("Scan finished", "files", len(files), "findings", total)

	if err := a.print(results, func(w io.Writer) {
		for _, r := range results {
			for _, f := range r.Findings {
				fmt.Fprintf(w, "%s:%d:%d: %s\n", r.Path, f.Line+1, f.StartCol+1, f.Message)
			}
		}
	}); err != nil {
		return err
	}
	if total > 0 {
		return errFindings
	}
	return nil
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	res, err := a.navigator.CheckURL(ctx, args[0])
	if err != nil {
		return err
	}
	return a.print(res, func(w io.Writer) {
		fmt.Fprintf(w, "%d %s\n", res.StatusCode, res.StatusMessage)
	})
}

func (a *app) runAliases(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	entries := a.navigator.AliasEntries(ctx, a.root)
	return a.print(entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\n", e.Prefix, e.Target)
		}
	})
}
