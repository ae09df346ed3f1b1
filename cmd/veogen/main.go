package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kauntdewn1/neo-prompts/internal/domain"
	"github.com/kauntdewn1/neo-prompts/internal/generator"
	"github.com/kauntdewn1/neo-prompts/internal/http/handlers"
	httpapi "github.com/kauntdewn1/neo-prompts/internal/http/httpapi"
	"github.com/kauntdewn1/neo-prompts/internal/infra"
	"github.com/kauntdewn1/neo-prompts/internal/prompts"
	"github.com/kauntdewn1/neo-prompts/internal/providers/veo"
	"github.com/kauntdewn1/neo-prompts/internal/retry"
	"github.com/kauntdewn1/neo-prompts/internal/storage"
)

var version = "dev"

func main() {
	// Muat .env (opsional); .env.local menang karena dimuat duluan.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "generate":
		runGenerate(args)
	case "batch":
		runBatch(args)
	case "prompts":
		runPrompts(args)
	case "config":
		runConfig(args)
	case "cleanup":
		runCleanup(args)
	case "serve":
		runServe(args)
	case "version":
		fmt.Println("veogen " + version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func usage(w *os.File) {
	fmt.Fprint(w, `veogen generates videos from text prompts via the Veo API.

Usage:
  veogen <command> [flags] [args]

Commands:
  generate   generate videos from one prompt (inline or from the library)
  batch      generate videos for every prompt in a file
  prompts    manage the prompt library (list, show, create, render)
  config     print the effective configuration and its origins
  cleanup    delete old videos from the output directory
  serve      start the read-only gallery server
  version    print the version
  help       print this help

Run "veogen <command> -h" for command flags.
`)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// setup loads configuration and builds the process logger. verbose forces
// the debug level regardless of LOG_LEVEL.
func setup(configFile string, verbose bool) (*infra.Config, infra.Logger) {
	cfg, err := infra.LoadConfig(configFile)
	if err != nil {
		exitWithError(err)
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	return cfg, infra.NewLogger(cfg.AppEnv, level)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// varsFlag collects repeated --var key=value pairs.
type varsFlag map[string]string

func (v varsFlag) String() string {
	pairs := make([]string, 0, len(v))
	for k, val := range v {
		pairs = append(pairs, k+"="+val)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (v varsFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[key] = value
	return nil
}

// parseRef splits a category/name prompt reference.
func parseRef(ref string) (string, string, error) {
	category, name, ok := strings.Cut(ref, "/")
	if !ok || category == "" || name == "" {
		return "", "", fmt.Errorf("prompt reference must look like category/name, got %q", ref)
	}
	return category, name, nil
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	vars := varsFlag{}
	var (
		configFlag string
		verbose    bool
		promptName string
		imagePath  string
		aspect     string
		duration   int
		count      int
		negative   string
		person     string
		noEnhance  bool
		audio      bool
		outputDir  string
		timeoutSec int
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.BoolVar(&verbose, "verbose", false, "log at debug level")
	fs.StringVar(&promptName, "prompt-name", "", "use a library prompt (category/name) instead of an inline prompt")
	fs.Var(vars, "var", "template variable key=value (repeatable)")
	fs.StringVar(&imagePath, "image", "", "condition generation on this JPEG or PNG image")
	fs.StringVar(&aspect, "aspect", "", "aspect ratio: 16:9, 9:16 or 1:1")
	fs.IntVar(&duration, "duration", 0, "clip length in seconds (5..8)")
	fs.IntVar(&count, "count", 0, "videos per prompt (1..4)")
	fs.StringVar(&negative, "negative", "", "negative prompt")
	fs.StringVar(&person, "person", "", "person policy: allow_adult or dont_allow")
	fs.BoolVar(&noEnhance, "no-enhance", false, "disable provider-side prompt rewriting")
	fs.BoolVar(&audio, "audio", true, "generate audio")
	fs.StringVar(&outputDir, "output-dir", "", "directory for downloaded videos")
	fs.IntVar(&timeoutSec, "timeout", 0, "operation timeout in seconds (60..3600)")
	_ = fs.Parse(args)

	cfg, logger := setup(configFlag, verbose)

	prompt := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if promptName != "" {
		if prompt != "" {
			exitWithError(errors.New("pass either an inline prompt or --prompt-name, not both"))
		}
		rendered, err := renderLibraryPrompt(cfg, promptName, vars)
		if err != nil {
			exitWithError(err)
		}
		prompt = rendered
	}
	if prompt == "" {
		exitWithError(errors.New("a prompt is required: veogen generate \"...\" or --prompt-name category/name"))
	}

	req := requestFromConfig(cfg, prompt)
	req.NegativePrompt = negative
	req.EnhancePrompt = !noEnhance
	req.GenerateAudio = audio
	if aspect != "" {
		req.AspectRatio = domain.AspectRatio(aspect)
	}
	if duration > 0 {
		req.DurationSeconds = duration
	}
	if count > 0 {
		req.Count = count
	}
	if person != "" {
		req.PersonGeneration = domain.PersonGeneration(person)
	}
	if imagePath != "" {
		img, err := veo.PrepareImageFile(imagePath)
		if err != nil {
			exitWithError(err)
		}
		req.Image = img
	}

	if timeoutSec > 0 {
		if err := cfg.SetOperationTimeout(timeoutSec); err != nil {
			exitWithError(err)
		}
	}
	gen := buildGenerator(cfg, logger, outputDir)

	ctx, stop := signalContext()
	defer stop()

	result := gen.Generate(ctx, req)
	printResult(result)
	if result.Failed() {
		os.Exit(1)
	}
}

func runBatch(args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	var (
		configFlag    string
		verbose       bool
		count         int
		maxConcurrent int
		outputDir     string
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.BoolVar(&verbose, "verbose", false, "log at debug level")
	fs.IntVar(&count, "count", 0, "videos per prompt (1..4)")
	fs.IntVar(&maxConcurrent, "max-concurrent", 0, "prompts processed in parallel (1..10)")
	fs.StringVar(&outputDir, "output-dir", "", "directory for downloaded videos")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		exitWithError(errors.New("usage: veogen batch [flags] <promptsFile>"))
	}

	cfg, logger := setup(configFlag, verbose)

	lines, err := generator.LoadBatchFile(fs.Arg(0))
	if err != nil {
		exitWithError(err)
	}
	reqs := make([]domain.GenerationRequest, len(lines))
	for i, line := range lines {
		reqs[i] = requestFromConfig(cfg, line)
		if count > 0 {
			reqs[i].Count = count
		}
	}

	if maxConcurrent > 0 {
		if err := cfg.SetMaxConcurrent(maxConcurrent); err != nil {
			exitWithError(err)
		}
	}
	gen := buildGenerator(cfg, logger, outputDir)

	ctx, stop := signalContext()
	defer stop()

	report := gen.RunBatch(ctx, reqs, cfg.MaxConcurrent)
	printReport(report)
	if report.Failed > 0 || report.Cancelled > 0 {
		os.Exit(1)
	}
}

// requestFromConfig seeds a request with the configured defaults.
func requestFromConfig(cfg *infra.Config, prompt string) domain.GenerationRequest {
	return domain.GenerationRequest{
		Prompt:           prompt,
		AspectRatio:      cfg.AspectRatio,
		DurationSeconds:  cfg.DurationSeconds,
		Count:            cfg.NumberOfVideos,
		PersonGeneration: cfg.PersonGeneration,
		EnhancePrompt:    true,
		GenerateAudio:    true,
	}
}

func buildGenerator(cfg *infra.Config, logger infra.Logger, outputDir string) *generator.Generator {
	if err := cfg.RequireAPIKey(); err != nil {
		exitWithError(err)
	}
	client, err := veo.NewClient(veo.Options{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		Model:            cfg.Model,
		Logger:           &logger,
		PollInterval:     cfg.PollInterval,
		OperationTimeout: cfg.OperationTimeout,
	})
	if err != nil {
		exitWithError(err)
	}
	dir := cfg.OutputDir
	if outputDir != "" {
		dir = outputDir
	}
	store, err := storage.NewFileStore(dir)
	if err != nil {
		exitWithError(err)
	}
	gen, err := generator.New(generator.Options{
		Client:      client,
		Store:       store,
		RetryPolicy: retry.NewPolicy(cfg.RetryAttempts, cfg.RetryDelay),
		Logger:      &logger,
	})
	if err != nil {
		exitWithError(err)
	}
	return gen
}

func renderLibraryPrompt(cfg *infra.Config, ref string, vars map[string]string) (string, error) {
	category, name, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	store, err := prompts.NewStore(cfg.PromptsDir)
	if err != nil {
		return "", err
	}
	content, err := store.Load(category, name)
	if err != nil {
		return "", err
	}
	return prompts.Render(prompts.PromptText(content), vars)
}

func printResult(result *domain.GenerationResult) {
	fmt.Printf("state: %s  elapsed: %s\n", result.State, result.Elapsed.Round(time.Second))
	if result.OperationName != "" {
		fmt.Printf("operation: %s\n", result.OperationName)
	}
	for _, artifact := range result.Artifacts {
		fmt.Printf("saved: %s (%s)\n", artifact.Path, formatBytes(artifact.Bytes))
	}
	if result.Err != nil {
		fmt.Printf("reason: %s: %v\n", domain.ReasonOf(result.Err), result.Err)
	}
}

func printReport(report *domain.BatchReport) {
	for i := range report.Items {
		item := &report.Items[i]
		fmt.Printf("%3d  %-10s %d video(s)  %s\n", i+1, item.State, len(item.Artifacts), truncate(item.Prompt, 60))
		for _, artifact := range item.Artifacts {
			fmt.Printf("     saved: %s\n", artifact.Path)
		}
		if item.Err != nil {
			fmt.Printf("     reason: %s: %v\n", domain.ReasonOf(item.Err), item.Err)
		}
	}
	fmt.Printf("%d succeeded, %d failed, %d cancelled in %s\n",
		report.Succeeded, report.Failed, report.Cancelled, report.Elapsed.Round(time.Second))
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

func runPrompts(args []string) {
	if len(args) < 1 {
		exitWithError(errors.New("usage: veogen prompts <list|show|create|render> [args]"))
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		runPromptsList(rest)
	case "show":
		runPromptsShow(rest)
	case "create":
		runPromptsCreate(rest)
	case "render":
		runPromptsRender(rest)
	default:
		exitWithError(fmt.Errorf("unknown prompts subcommand %q", sub))
	}
}

func promptStore(configFlag string) (*infra.Config, *prompts.Store) {
	cfg, err := infra.LoadConfig(configFlag)
	if err != nil {
		exitWithError(err)
	}
	store, err := prompts.NewStore(cfg.PromptsDir)
	if err != nil {
		exitWithError(err)
	}
	return cfg, store
}

func runPromptsList(args []string) {
	fs := flag.NewFlagSet("prompts list", flag.ExitOnError)
	var (
		configFlag string
		category   string
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.StringVar(&category, "category", "", "limit to one category")
	_ = fs.Parse(args)

	_, store := promptStore(configFlag)

	categories := prompts.Categories()
	if category != "" {
		categories = []string{category}
	}
	total := 0
	for _, cat := range categories {
		infos, err := store.List(cat)
		if err != nil {
			exitWithError(err)
		}
		for _, info := range infos {
			fmt.Printf("%s/%s\t%s\n", info.Category, info.Name, info.Modified.Format("2006-01-02 15:04"))
			total++
		}
	}
	if total == 0 {
		fmt.Println("no prompts found")
	}
}

func runPromptsShow(args []string) {
	fs := flag.NewFlagSet("prompts show", flag.ExitOnError)
	var configFlag string
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		exitWithError(errors.New("usage: veogen prompts show <category/name>"))
	}
	category, name, err := parseRef(fs.Arg(0))
	if err != nil {
		exitWithError(err)
	}

	_, store := promptStore(configFlag)
	content, err := store.Load(category, name)
	if err != nil {
		exitWithError(err)
	}
	fmt.Println(content)
	if placeholders := prompts.Placeholders(content); len(placeholders) > 0 {
		fmt.Printf("\nvariables: %s\n", strings.Join(placeholders, ", "))
	}
}

func runPromptsCreate(args []string) {
	fs := flag.NewFlagSet("prompts create", flag.ExitOnError)
	var (
		configFlag string
		text       string
		fromFile   string
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.StringVar(&text, "text", "", "prompt text")
	fs.StringVar(&fromFile, "from", "", "read prompt text from this file")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		exitWithError(errors.New("usage: veogen prompts create <category/name> (--text ... | --from file)"))
	}
	category, name, err := parseRef(fs.Arg(0))
	if err != nil {
		exitWithError(err)
	}

	content := text
	if fromFile != "" {
		if content != "" {
			exitWithError(errors.New("pass either --text or --from, not both"))
		}
		raw, err := os.ReadFile(fromFile)
		if err != nil {
			exitWithError(fmt.Errorf("read prompt file: %w", err))
		}
		content = string(raw)
	}
	if strings.TrimSpace(content) == "" {
		exitWithError(errors.New("prompt text is required via --text or --from"))
	}

	_, store := promptStore(configFlag)
	path, err := store.Create(category, name, content)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("created %s\n", path)
}

func runPromptsRender(args []string) {
	fs := flag.NewFlagSet("prompts render", flag.ExitOnError)
	vars := varsFlag{}
	var configFlag string
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.Var(vars, "var", "template variable key=value (repeatable)")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		exitWithError(errors.New("usage: veogen prompts render <category/name> --var k=v ..."))
	}
	category, name, err := parseRef(fs.Arg(0))
	if err != nil {
		exitWithError(err)
	}

	_, store := promptStore(configFlag)
	content, err := store.Load(category, name)
	if err != nil {
		exitWithError(err)
	}
	rendered, err := prompts.Render(prompts.PromptText(content), vars)
	if err != nil {
		exitWithError(err)
	}
	fmt.Println(rendered)
}

func runConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	var (
		configFlag string
		initFlag   bool
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.BoolVar(&initFlag, "init", false, "write a commented veogen.yaml example and exit")
	_ = fs.Parse(args)

	if initFlag {
		path := configFlag
		if path == "" {
			path = infra.DefaultConfigFile
		}
		if err := infra.WriteExampleConfig(path); err != nil {
			exitWithError(err)
		}
		fmt.Printf("wrote %s\n", path)
		return
	}

	cfg, err := infra.LoadConfig(configFlag)
	if err != nil {
		exitWithError(err)
	}
	fmt.Printf("%-22s %-32s %s\n", "SETTING", "VALUE", "ORIGIN")
	for _, s := range cfg.Settings() {
		fmt.Printf("%-22s %-32s %s\n", s.Key, s.Value, s.Origin)
	}
}

func runCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	var (
		configFlag string
		days       int
		dryRun     bool
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.IntVar(&days, "days", 30, "delete videos older than this many days")
	fs.BoolVar(&dryRun, "dry-run", false, "report what would be deleted without deleting")
	_ = fs.Parse(args)
	if days < 0 {
		exitWithError(errors.New("-days must be zero or positive"))
	}

	cfg, err := infra.LoadConfig(configFlag)
	if err != nil {
		exitWithError(err)
	}
	store, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		exitWithError(err)
	}

	removed, freed, err := store.Cleanup(time.Duration(days)*24*time.Hour, dryRun)
	if err != nil {
		exitWithError(err)
	}
	verb := "deleted"
	if dryRun {
		verb = "would delete"
	}
	for _, name := range removed {
		fmt.Printf("%s %s\n", verb, name)
	}
	fmt.Printf("%s %d video(s), %s\n", verb, len(removed), formatBytes(freed))
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		configFlag string
		verbose    bool
		port       string
	)
	fs.StringVar(&configFlag, "config", "", "path to a veogen.yaml override file")
	fs.BoolVar(&verbose, "verbose", false, "log at debug level")
	fs.StringVar(&port, "port", "", "listen port")
	_ = fs.Parse(args)

	cfg, logger := setup(configFlag, verbose)
	if port != "" {
		cfg.Port = port
	}

	store, err := storage.NewFileStore(cfg.OutputDir)
	if err != nil {
		exitWithError(err)
	}
	app := handlers.NewApp(store, &logger)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	ctx, stop := signalContext()
	defer stop()

	go func() {
		logger.Info().Str("addr", server.Addr()).Str("dir", store.BasePath()).Msg("gallery listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
