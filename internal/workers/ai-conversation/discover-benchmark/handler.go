package discoverbenchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"subscription-intake/internal/benchmarks"
	"subscription-intake/internal/common/camunda"
	apperrors "subscription-intake/internal/common/errors"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/validation"
	"subscription-intake/internal/genai"
	"subscription-intake/internal/models"
)

const (
	TaskType = "discover-benchmark"
)

var (
	ErrDiscoveryFailed = errors.New("BENCHMARK_DISCOVERY_FAILED")
	ErrInvalidInput    = errors.New("INVALID_INPUT")
)

const systemInstruction = `You catalogue SaaS products for a procurement team.
Given a product name and optional search results, return valid JSON only:
{"name": "<canonical product name>", "aliases": ["<other common names>"], "plans": ["<paid plan names, lowest tier first>"],
 "perSeat": {"min": <annual list price per seat of the cheapest paid plan>, "max": <of the most expensive listed plan>} | null,
 "currency": "<ISO 4217>" | null}
Use null when list prices are not public. Do not include free plans.`

var benchmarkSchema = validation.MustCompile("benchmark-discovery", `{
	"type": "object",
	"required": ["name", "plans"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"aliases": {"type": "array", "items": {"type": "string"}},
		"plans": {"type": "array", "minItems": 1, "items": {"type": "string"}},
		"perSeat": {
			"type": ["object", "null"],
			"required": ["min", "max"],
			"properties": {
				"min": {"type": "number", "minimum": 0},
				"max": {"type": "number", "minimum": 0}
			}
		},
		"currency": {"type": ["string", "null"]}
	}
}`)

type Handler struct {
	config     *Config
	gen        genai.Generator
	client     *http.Client
	discoverer *benchmarks.Discoverer
	errs       *apperrors.ErrorHandler
	logger     logger.Logger
}

// NewHandler creates a Handler. With a sink, discovered records are stored through a
// Discoverer that the handler itself feeds; without one, Execute only returns them.
func NewHandler(config *Config, gen genai.Generator, sink benchmarks.Sink, log logger.Logger) *Handler {
	log = log.With(map[string]interface{}{"taskType": TaskType})
	h := &Handler{
		config: config,
		gen:    gen,
		client: &http.Client{Timeout: config.Timeout},
		errs:   apperrors.NewErrorHandler(log),
		logger: log,
	}
	if sink != nil {
		h.discoverer = benchmarks.NewDiscoverer(h, sink, log, benchmarks.WithDiscoveryTimeout(config.Timeout))
	}
	return h
}

// Discoverer returns the shared Discoverer, or nil when the handler has no sink.
func (h *Handler) Discoverer() *benchmarks.Discoverer {
	return h.discoverer
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.errs.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			h.errs.HandleJobError(ctx, client, job, apperrors.NewInvalidInputError(err.Error()))
			return
		}
		h.errs.HandleJobError(ctx, client, job, genai.Standard(TaskType, err, func(err error) *apperrors.StandardError {
			return apperrors.NewBenchmarkDiscoveryFailedError(input.Tool, err)
		}))
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
}

// Execute discovers a benchmark for one tool, storing it when a sink is attached.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	tool := strings.TrimSpace(input.Tool)
	if tool == "" {
		return nil, fmt.Errorf("%w: tool is required", ErrInvalidInput)
	}

	var (
		b   *models.Benchmark
		err error
	)
	if h.discoverer != nil {
		b, err = h.discoverer.Discover(ctx, tool)
	} else {
		b, err = h.FindBenchmark(ctx, tool)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscoveryFailed, err)
	}
	return &Output{Benchmark: b}, nil
}

// FindBenchmark asks the model for the tool's plan ladder and price band, grounded on
// pricing search results when search is configured.
func (h *Handler) FindBenchmark(ctx context.Context, tool string) (*models.Benchmark, error) {
	var sources []Source
	if h.config.searchEnabled() {
		var err error
		sources, err = h.searchPricing(ctx, tool)
		if err != nil {
			h.logger.Warn("pricing search failed, continuing without sources", map[string]interface{}{
				"tool":  tool,
				"error": err.Error(),
			})
		}
	}

	temp := 0.0
	d, err := genai.Decode[discovered](ctx, h.gen, benchmarkSchema, genai.Request{
		Op:                TaskType,
		SystemInstruction: systemInstruction,
		UserPrompt:        buildPrompt(tool, sources),
		Temperature:       &temp,
		MaxOutputTokens:   h.config.MaxOutputTokens,
	})
	if err != nil {
		return nil, err
	}

	b := &models.Benchmark{
		Name:    strings.TrimSpace(d.Name),
		Aliases: aliasesFor(tool, d),
		Plans:   trimAll(d.Plans),
		Source:  "generated",
	}
	if len(sources) > 0 {
		b.Source = sources[0].URL
	}
	if d.PerSeat != nil && d.PerSeat.Max >= d.PerSeat.Min {
		b.PerSeat = d.PerSeat
	}
	if d.Currency != nil {
		b.Currency = strings.ToUpper(strings.TrimSpace(*d.Currency))
	}
	if b.PerSeat != nil && b.Currency == "" {
		b.Currency = models.DefaultCurrency
	}
	return b, nil
}

func buildPrompt(tool string, sources []Source) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", tool)
	if len(sources) > 0 {
		b.WriteString("Search results:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.Title, s.Snippet, s.URL)
		}
	}
	return b.String()
}

// aliasesFor keeps the user's spelling as an alias when it differs from the canonical name.
func aliasesFor(tool string, d *discovered) []string {
	seen := map[string]bool{benchmarks.Key(d.Name): true}
	var out []string
	for _, a := range append([]string{tool}, d.Aliases...) {
		a = strings.TrimSpace(a)
		k := benchmarks.Key(a)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
