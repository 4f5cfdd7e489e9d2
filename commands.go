package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"api-path-tester/internal/config"
	"api-path-tester/internal/executor"
	"api-path-tester/internal/graph"
	"api-path-tester/internal/llm"
	"api-path-tester/internal/logger"
	"api-path-tester/internal/metrics"
	"api-path-tester/internal/mockapi"
	"api-path-tester/internal/parser"
	"api-path-tester/internal/pathgen"
	"api-path-tester/internal/reporter"
	"api-path-tester/internal/scenario"
	"api-path-tester/internal/store"
	"api-path-tester/internal/testdata"
	"api-path-tester/internal/types"
)

// errUnexpectedVerdicts makes the process exit non-zero after the report is written
var errUnexpectedVerdicts = errors.New("scenarios with unexpected verdicts")

// session is the state shared by commands that work on the configured endpoint graph
type session struct {
	cfg    *config.Config
	log    *logger.Logger
	graph  *graph.Graph
	specs  map[string]types.EndpointSpec
	loader *testdata.Loader
}

func openSession(configPath string) (*session, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Dir:     cfg.Logging.Dir,
		Level:   cfg.Logging.Level,
		Verbose: cfg.Logging.Verbose,
	})
	if err != nil {
		return nil, err
	}

	specs, err := config.LoadEndpoints(cfg.Endpoints)
	if err != nil {
		log.Close()
		return nil, err
	}

	g, specs, err := graph.Build(specs)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("invalid endpoint graph: %w", err)
	}
	for _, name := range g.Nodes() {
		if missing := g.Unresolved(name); len(missing) > 0 {
			log.Warn("no endpoint provides required variables", zap.String("endpoint", name), zap.Strings("variables", missing))
		}
	}
	log.Info("built dependency graph", zap.Int("endpoints", len(g.Nodes())), zap.Int("edges", len(g.Edges())))

	return &session{
		cfg:    cfg,
		log:    log,
		graph:  g,
		specs:  specs,
		loader: testdata.NewLoader(cfg.FixturesDir),
	}, nil
}

func (s *session) generate(seed int64) ([]types.Path, []pathgen.InvalidPath) {
	gen := pathgen.NewGenerator(seed)
	valid := gen.GenerateValidPaths(s.graph, s.cfg.Generation.MaxDepth, s.cfg.Generation.ValidPaths)
	invalid := gen.GenerateInvalidPaths(s.graph, s.cfg.Generation.MaxDepth, s.cfg.Generation.InvalidPaths)
	return valid, invalid
}

// seedFlag returns the -seed value when given on the command line, otherwise the configured seed
func seedFlag(fs *flag.FlagSet, seed *int64, configured int64) int64 {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			set = true
		}
	})
	if set {
		return *seed
	}
	return configured
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to the runner configuration")
	seed := fs.Int64("seed", 0, "Path generation seed, 0 for a random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	valid, invalid := s.generate(seedFlag(fs, seed, s.cfg.Generation.Seed))
	scenarios := scenario.BuildCatalog(valid, invalid)
	suiteID := uuid.NewString()
	s.log.Info("starting suite",
		zap.String("suite_id", suiteID),
		zap.Int("valid_paths", len(valid)),
		zap.Int("invalid_paths", len(invalid)),
		zap.Int("scenarios", len(scenarios)),
	)

	collector := metrics.NewCollector()
	if addr := s.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := collector.Serve(ctx, addr); err != nil {
				s.log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	testExecutor := executor.NewTestExecutor(executor.TestConfig{
		BaseURL:    s.cfg.Environment.BaseURL,
		Concurrent: s.cfg.Test.Concurrent,
		MaxWorkers: s.cfg.Test.MaxWorkers,
		Timeout:    s.cfg.Test.Timeout,
		RateLimit:  s.cfg.Test.RateLimit,
		Auth: executor.AuthConfig{
			Type:  s.cfg.Environment.Auth.Type,
			Token: s.cfg.Environment.Auth.Token,
		},
	}, s.specs, s.loader, executor.WithLogger(s.log), executor.WithRecorder(collector))

	start := time.Now()
	outcomes := testExecutor.RunScenarios(ctx, scenarios)
	elapsed := time.Since(start)

	testReporter := reporter.NewReporter(reporter.ReportingConfig{
		Format:    s.cfg.Reporting.Format,
		OutputDir: s.cfg.Reporting.OutputDir,
		Detailed:  s.cfg.Reporting.Detailed,
	}, os.Stdout)
	report := testReporter.BuildReport(suiteID, outcomes, elapsed)
	written, err := testReporter.GenerateReport(report)
	if err != nil {
		return err
	}
	for _, path := range written {
		s.log.Info("report written", zap.String("path", path))
	}

	if s.cfg.Store.Enabled() {
		if err := saveVerdicts(ctx, s.cfg.Store, suiteID, outcomes); err != nil {
			return err
		}
		s.log.Info("verdicts stored", zap.String("store", s.cfg.Store.Type), zap.Int("rows", len(outcomes)))
	}

	s.log.Info("suite finished",
		zap.String("suite_id", suiteID),
		zap.Int("passed", report.PassedScenarios),
		zap.Int("failed", report.FailedScenarios),
		zap.Int("unexpected", report.Unexpected()),
		zap.Int("coincidentally_valid", report.CoincidentallyValid),
		zap.Duration("duration", elapsed),
	)
	if report.Unexpected() > 0 {
		return fmt.Errorf("%d %w", report.Unexpected(), errUnexpectedVerdicts)
	}
	return nil
}

func saveVerdicts(ctx context.Context, cfg config.StoreConfig, suiteID string, outcomes []scenario.Outcome) error {
	verdicts, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer verdicts.Close()

	if err := verdicts.Migrate(ctx); err != nil {
		return err
	}
	return verdicts.SaveAll(ctx, suiteID, outcomes)
}

func pathsCommand(args []string) error {
	fs := flag.NewFlagSet("paths", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to the runner configuration")
	seed := fs.Int64("seed", 0, "Path generation seed, 0 for a random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.log.Close()

	fmt.Println("Dependencies:")
	for _, edge := range s.graph.Edges() {
		fmt.Printf("  %s -> %s (%s)\n", edge.From, edge.To, edge.Variable)
	}

	valid, invalid := s.generate(seedFlag(fs, seed, s.cfg.Generation.Seed))
	fmt.Println("Valid paths:")
	for _, path := range valid {
		fmt.Printf("  %s\n", path)
	}
	fmt.Println("Invalid paths:")
	for _, p := range invalid {
		fmt.Printf("  %s [%s]\n", p.Path, p.Class)
	}
	return nil
}

func importCommand(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	url := fs.String("url", "", "Base URL or document URL of the OpenAPI documentation")
	file := fs.String("file", "", "Path to an OpenAPI document")
	output := fs.String("output", "api_config.yaml", "Path of the endpoint configuration to write")
	fixtures := fs.String("fixtures", "test_data", "Fixture directory")
	overwrite := fs.Bool("overwrite", false, "Replace existing fixtures")
	seed := fs.Uint64("seed", 0, "Fixture value seed, 0 for a random seed")
	verbose := fs.Bool("verbose", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if (*url == "") == (*file == "") {
		fs.Usage()
		return errors.New("exactly one of -url or -file is required")
	}

	log, err := logger.NewLogger(logger.Config{Verbose: *verbose})
	if err != nil {
		return err
	}
	defer log.Close()

	openAPIParser := parser.NewOpenAPIParser(log)
	var doc *openapi3.T
	if *url != "" {
		doc, err = openAPIParser.FetchFromURL(context.Background(), *url)
	} else {
		doc, err = openAPIParser.LoadFile(*file)
	}
	if err != nil {
		return err
	}

	endpoints, err := parser.ExtractEndpoints(doc)
	if err != nil {
		return err
	}
	if _, _, err := graph.Build(parser.SpecMap(endpoints)); err != nil {
		return fmt.Errorf("imported endpoints do not form a valid graph: %w", err)
	}
	if err := config.SaveEndpoints(*output, parser.SpecMap(endpoints)); err != nil {
		return err
	}
	log.Info("endpoint configuration written", zap.String("path", *output), zap.Int("endpoints", len(endpoints)))

	generator := testdata.NewGenerator(testdata.NewLoader(*fixtures), *seed)
	for _, endpoint := range endpoints {
		written, err := generator.GenerateFixtures(endpoint.Spec, endpoint.Body, *overwrite)
		if err != nil {
			return err
		}
		for _, dataset := range written {
			log.Info("fixture written", zap.String("endpoint", endpoint.Spec.Name), zap.String("dataset", dataset))
		}
	}
	return nil
}

func fixturesCommand(args []string) error {
	fs := flag.NewFlagSet("fixtures", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath, "Path to the runner configuration")
	llmConfigPath := fs.String("llm-config", "config/llm_config.json", "Path to the LLM configuration")
	if err := fs.Parse(args); err != nil {
		return err
	}

	llmConfig, err := config.LoadLLMConfig(*llmConfigPath)
	if err != nil {
		return err
	}
	completer, err := llm.NewClient(llmConfig)
	if err != nil {
		return err
	}

	s, err := openSession(*configPath)
	if err != nil {
		return err
	}
	defer s.log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	written, err := llm.NewFixtureAuthor(completer, s.log).WriteFixtures(ctx, s.specs, s.loader)
	for _, path := range written {
		s.log.Info("fixture written", zap.String("path", path))
	}
	return err
}

func serveMockCommand(args []string) error {
	fs := flag.NewFlagSet("serve-mock", flag.ExitOnError)
	addr := fs.String("addr", "127.0.0.1:8000", "Listen address")
	verbose := fs.Bool("verbose", false, "Log every request")
	if err := fs.Parse(args); err != nil {
		return err
	}

	log, err := logger.NewLogger(logger.Config{Verbose: *verbose})
	if err != nil {
		return err
	}
	defer log.Close()

	server := &http.Server{
		Addr:              *addr,
		Handler:           mockapi.NewServer(log.Logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	log.Info("mock API listening", zap.String("addr", *addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
