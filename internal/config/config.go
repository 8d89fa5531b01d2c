// Package config loads pipeline configuration the way the teacher's
// gateway config does: flag overrides layered on environment variables,
// with a local .env file loaded via godotenv for development.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// RunConfig is the tunable bag from §6: "Configuration." It is loaded
// once at startup and passed by value into every component constructor
// — never held as a package-level singleton (§5: "Global state").
type RunConfig struct {
	MaxConvTurn             int
	MaxPerspective          int
	MaxSearchQueriesPerTurn int
	SearchTopK              int
	RetrieveTopK            int
	MaxThreadNum            int
	WindowSize              int
	InternalMinScore        float64
	BoostMultiplier         float64
	PenaltyMultiplier       float64
	DropUnmatchedTables     bool
}

// DefaultRunConfig returns the defaults listed in §6.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxConvTurn:             3,
		MaxPerspective:          3,
		MaxSearchQueriesPerTurn: 3,
		SearchTopK:              3,
		RetrieveTopK:            3,
		MaxThreadNum:            10,
		WindowSize:              1,
		InternalMinScore:        0.6,
		BoostMultiplier:         1.3,
		PenaltyMultiplier:       0.5,
		DropUnmatchedTables:     true,
	}
}

// LoadRunConfig starts from DefaultRunConfig and overrides fields with
// any matching environment variables (REPORTGEN_MAX_CONV_TURN, etc.).
// A local .env file is loaded first if present, matching
// cmd/archflow's godotenv.Load() convention.
func LoadRunConfig() RunConfig {
	_ = godotenv.Load()
	cfg := DefaultRunConfig()

	if v, ok := envInt("REPORTGEN_MAX_CONV_TURN"); ok {
		cfg.MaxConvTurn = v
	}
	if v, ok := envInt("REPORTGEN_MAX_PERSPECTIVE"); ok {
		cfg.MaxPerspective = v
	}
	if v, ok := envInt("REPORTGEN_MAX_SEARCH_QUERIES_PER_TURN"); ok {
		cfg.MaxSearchQueriesPerTurn = v
	}
	if v, ok := envInt("REPORTGEN_SEARCH_TOP_K"); ok {
		cfg.SearchTopK = v
	}
	if v, ok := envInt("REPORTGEN_RETRIEVE_TOP_K"); ok {
		cfg.RetrieveTopK = v
	}
	if v, ok := envInt("REPORTGEN_MAX_THREAD_NUM"); ok {
		cfg.MaxThreadNum = v
	}
	if v, ok := envInt("REPORTGEN_WINDOW_SIZE"); ok {
		cfg.WindowSize = v
	}
	if v, ok := envFloat("REPORTGEN_INTERNAL_MIN_SCORE"); ok {
		cfg.InternalMinScore = v
	}
	if v, ok := envFloat("REPORTGEN_BOOST_MULTIPLIER"); ok {
		cfg.BoostMultiplier = v
	}
	if v, ok := envFloat("REPORTGEN_PENALTY_MULTIPLIER"); ok {
		cfg.PenaltyMultiplier = v
	}
	if v, ok := envBool("REPORTGEN_DROP_UNMATCHED_TABLES"); ok {
		cfg.DropUnmatchedTables = v
	}
	return cfg
}

func envInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// ProviderConfig carries the secrets/endpoints ConfigurationError
// checks at startup (§7): missing API keys or DB creds fail fast.
type ProviderConfig struct {
	GeminiAPIKey     string
	EmbeddingModel   string
	PostgresDSN      string
	WebSearchAPIKey  string
	VectorDimension  int
}

// LoadProviderConfig reads provider secrets and endpoints from the
// environment (after loading .env), matching cmd/archflow's
// os.Getenv("GEMINI_API_KEY") convention.
func LoadProviderConfig() ProviderConfig {
	_ = godotenv.Load()
	dim, _ := envInt("REPORTGEN_VECTOR_DIMENSION")
	if dim == 0 {
		dim = 768
	}
	return ProviderConfig{
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		EmbeddingModel:  firstNonEmpty(os.Getenv("REPORTGEN_EMBEDDING_MODEL"), "gemini-embedding-001"),
		PostgresDSN:     os.Getenv("REPORTGEN_PG_DSN"),
		WebSearchAPIKey: os.Getenv("REPORTGEN_SERPER_API_KEY"),
		VectorDimension: dim,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// BindFlags registers CLI overrides for the values a cmd/ entrypoint
// typically wants to tweak per invocation, mirroring cmd/archflow's
// flag.String(...) calls. Call before flag.Parse().
func BindFlags(cfg *RunConfig) {
	flag.IntVar(&cfg.MaxPerspective, "max-perspective", cfg.MaxPerspective, "maximum number of generated personas beyond the fixed fact writer")
	flag.IntVar(&cfg.MaxConvTurn, "max-conv-turn", cfg.MaxConvTurn, "maximum dialogue turns per persona")
	flag.IntVar(&cfg.MaxThreadNum, "max-thread-num", cfg.MaxThreadNum, "worker pool size for persona and section fan-out")
}
