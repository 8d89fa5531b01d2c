// Command reportgen runs the full report-generation pipeline for one
// topic end to end: persona synthesis, knowledge curation, outlining,
// section drafting, and polishing, writing every artifact through a
// ReportSink and publishing progress through a JobStatus.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"dartreport/internal/article"
	"dartreport/internal/config"
	"dartreport/internal/curator"
	"dartreport/internal/jobstatus"
	"dartreport/internal/llm"
	"dartreport/internal/llmclient"
	"dartreport/internal/orchestrator"
	"dartreport/internal/outline"
	"dartreport/internal/persona"
	"dartreport/internal/polish"
	"dartreport/internal/retrieval"
	"dartreport/internal/sink"
)

func main() {
	runConfig := config.LoadRunConfig()
	config.BindFlags(&runConfig)

	topic := flag.String("topic", "", "report topic, e.g. a company name")
	runID := flag.String("run-id", "", "unique run id; defaults to a sanitized slug of --topic")
	outDir := flag.String("out", "out", "artifact output directory for the default file sink")
	model := flag.String("model", "gemini-2.5-flash", "Gemini model id used for every role")
	embeddingDim := flag.Int("embedding-dim", 0, "expected embedding vector width; 0 uses REPORTGEN_VECTOR_DIMENSION or 768")
	addr := flag.String("addr", "", "if set, serve a progress websocket at ws://<addr>/ws?run_id=<run-id> while the run executes")
	useS3 := flag.Bool("s3", false, "write artifacts to S3 (see REPORTGEN_S3_* env vars) instead of --out")
	phase := flag.String("phase", "", "resume from this phase (persona|curate|outline|article|polish) using checkpoints already written under --out/--s3 for --run-id; default runs every phase")
	flag.Parse()

	if strings.TrimSpace(*topic) == "" {
		log.Fatal("--topic is required")
	}
	if strings.TrimSpace(*runID) == "" {
		*runID = slugify(*topic)
	}
	startStage, err := parsePhase(*phase)
	if err != nil {
		log.Fatal(err)
	}

	provider := config.LoadProviderConfig()
	if provider.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY is not set")
	}
	if *embeddingDim > 0 {
		provider.VectorDimension = *embeddingDim
	}

	ctx := context.Background()

	reportSink, err := buildSink(*useS3, *outDir)
	if err != nil {
		log.Fatal(err)
	}
	status := jobstatus.NewMemoryStatus()
	recorder := &sinkCallRecorder{sink: reportSink, runID: *runID}

	if *addr != "" {
		go serveStatus(*addr, status)
	}

	components, err := wireComponents(ctx, provider, runConfig, *model, recorder)
	if err != nil {
		log.Fatal(err)
	}

	orc := orchestrator.New(
		components.personaGen,
		components.curator,
		components.outlineGen,
		components.articleGen,
		components.polisher,
		status,
		reportSink,
		runConfig,
	)

	checkpoint, err := loadCheckpoint(ctx, reportSink, *runID, startStage)
	if err != nil {
		log.Fatalf("run %s: %v", *runID, err)
	}

	log.Printf("starting run %s for topic %q from phase %q", *runID, *topic, startStage)
	finalArticle, err := orc.RunFrom(ctx, *runID, *topic, startStage, checkpoint)
	if err != nil {
		log.Fatalf("run %s failed: %v", *runID, err)
	}
	fmt.Println(finalArticle.Render())
}

func serveStatus(addr string, status jobstatus.JobStatus) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", jobstatus.Handler(status))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("status server on %s stopped: %v", addr, err)
	}
}

func buildSink(useS3 bool, outDir string) (sink.ReportSink, error) {
	if !useS3 {
		return sink.NewFileSink(outDir), nil
	}
	cfg := sink.S3Config{
		Endpoint:  os.Getenv("REPORTGEN_S3_ENDPOINT"),
		Region:    os.Getenv("REPORTGEN_S3_REGION"),
		AccessKey: os.Getenv("REPORTGEN_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("REPORTGEN_S3_SECRET_KEY"),
		Bucket:    os.Getenv("REPORTGEN_S3_BUCKET"),
		UseSSL:    strings.EqualFold(os.Getenv("REPORTGEN_S3_USE_SSL"), "true"),
	}
	return sink.NewS3Sink(cfg)
}

// pipelineComponents bundles the five already-role-bound stage
// components the orchestrator drives.
type pipelineComponents struct {
	personaGen *persona.Generator
	curator    *curator.Curator
	outlineGen *outline.Generator
	articleGen *article.Generator
	polisher   *polish.Polisher
}

// wireComponents constructs every per-role LLMClient, the retrieval
// stack, and the five pipeline components, keeping main itself thin —
// the teacher's own cmd/archflow/main.go delegates each phase to a
// pipeline.PN{LLM: llmCli} value rather than inlining the call.
func wireComponents(ctx context.Context, provider config.ProviderConfig, runConfig config.RunConfig, model string, recorder llm.CallRecorder) (*pipelineComponents, error) {
	roleClient := func(role string) (llmclient.LLMClient, error) {
		base, err := llmclient.NewGeminiClient(ctx, provider.GeminiAPIKey, model, 32000)
		if err != nil {
			return nil, fmt.Errorf("build %s client: %w", role, err)
		}
		return llm.Wrap(base,
			llm.Retry(5, 2*time.Second, 5*time.Minute),
			llm.RateLimit(2, 4),
			llm.WithCallRecorder(recorder),
			llm.WithLogging(nil),
		), nil
	}

	questionAskerLM, err := roleClient("question_asker_lm")
	if err != nil {
		return nil, err
	}
	convSimulatorLM, err := roleClient("conv_simulator_lm")
	if err != nil {
		return nil, err
	}
	outlineGenLM, err := roleClient("outline_gen_lm")
	if err != nil {
		return nil, err
	}
	articleGenLM, err := roleClient("article_gen_lm")
	if err != nil {
		return nil, err
	}
	articlePolishLM, err := roleClient("article_polish_lm")
	if err != nil {
		return nil, err
	}

	embedClient, err := llmclient.NewGeminiClient(ctx, provider.GeminiAPIKey, model, 32000)
	if err != nil {
		return nil, fmt.Errorf("build embedding client: %w", err)
	}
	embedder := retrieval.NewGeminiEmbedder(embedClient, provider.EmbeddingModel, provider.VectorDimension)

	retriever, err := buildRetriever(ctx, provider, runConfig, embedder)
	if err != nil {
		return nil, err
	}

	personaGen := persona.NewGenerator(questionAskerLM, runConfig.MaxPerspective)
	cur := curator.NewCurator(questionAskerLM, convSimulatorLM, retriever, curator.Config{
		MaxConvTurn:             runConfig.MaxConvTurn,
		MaxThreadNum:            runConfig.MaxThreadNum,
		MaxSearchQueriesPerTurn: runConfig.MaxSearchQueriesPerTurn,
		RetrieveTopK:            runConfig.RetrieveTopK,
	})
	outlineGen := outline.NewGenerator(outlineGenLM)
	articleGen := article.NewGenerator(articleGenLM, embedder, runConfig.MaxThreadNum, runConfig.RetrieveTopK)
	polisher := polish.NewPolisher(articlePolishLM)

	return &pipelineComponents{
		personaGen: personaGen,
		curator:    cur,
		outlineGen: outlineGen,
		articleGen: articleGen,
		polisher:   polisher,
	}, nil
}

// buildRetriever wires the internal pgvector-backed retriever, the
// Serper web retriever, or both, matching §4.2's ConfigurationError
// disposition: a PostgresDSN is optional, a web search key is
// optional, but at least one of the two must be configured.
func buildRetriever(ctx context.Context, provider config.ProviderConfig, runConfig config.RunConfig, embedder retrieval.Embedder) (retrieval.Retriever, error) {
	var internal retrieval.Retriever
	if provider.PostgresDSN != "" {
		store, err := retrieval.NewPostgresStore(provider.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := retrieval.CheckDimension(ctx, store, embedder); err != nil {
			return nil, err
		}
		aliases, err := store.CompanyAliases(ctx)
		if err != nil {
			return nil, fmt.Errorf("load company aliases: %w", err)
		}
		reranker := retrieval.NewEntityAwareReranker(retrieval.NewAliasRegistry(aliases), runConfig.BoostMultiplier, runConfig.PenaltyMultiplier)
		internal = retrieval.NewInternalRetriever(store, embedder, reranker, runConfig.WindowSize)
	}

	var web retrieval.Retriever
	if provider.WebSearchAPIKey != "" {
		web = retrieval.NewSerperWebRetriever(provider.WebSearchAPIKey, http.DefaultClient)
	}

	if internal == nil && web == nil {
		return nil, fmt.Errorf("configure REPORTGEN_PG_DSN or REPORTGEN_SERPER_API_KEY: at least one retrieval backend is required")
	}
	return retrieval.NewHybridRetriever(internal, web, runConfig.InternalMinScore), nil
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a topic into a filesystem- and URL-safe run id.
func slugify(topic string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(topic)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "run"
	}
	return s
}
