package ops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gambtho/container-assist/internal/sampling"
	"github.com/gambtho/container-assist/pkg/contracts"
	"github.com/gambtho/container-assist/pkg/models"
)

// The built-in collaborators below are deterministic reference
// implementations of the generation/scoring protocol. Real repository
// inspection, image builds, and scanners are external collaborators; the
// pipeline only needs their request/response contract.

// ── Recipe Generator ────────────────────────────────────────

// baseImageVariants are the candidate base images the recipe generator
// proposes, with their embedded quality metadata. Scores are static per
// variant, so generation and scoring are fully deterministic.
var baseImageVariants = []struct {
	image   string
	quality map[string]any
}{
	{"alpine:3.20", map[string]any{
		"correctness": 80.0, "security": 90.0, "efficiency": 95.0, "maintainability": 70.0,
	}},
	{"debian:bookworm-slim", map[string]any{
		"correctness": 90.0, "security": 75.0, "efficiency": 70.0, "maintainability": 85.0,
	}},
	{"ubuntu:24.04", map[string]any{
		"correctness": 90.0, "security": 70.0, "efficiency": 55.0, "maintainability": 90.0,
	}},
	{"distroless/static:nonroot", map[string]any{
		"correctness": 70.0, "security": 98.0, "efficiency": 98.0, "maintainability": 50.0,
	}},
}

// RecipeGenerator proposes build-recipe (Dockerfile) candidates over a
// fixed set of base image variants.
type RecipeGenerator struct{}

// Generate implements sampling.Generator.
func (g *RecipeGenerator) Generate(ctx context.Context, req models.OperationRequest, maxCandidates int) ([]sampling.Candidate[map[string]any], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	app, _ := req.Params["app"].(string)
	if app == "" {
		app = "app"
	}
	port, _ := req.Params["port"].(float64)
	if port == 0 {
		port = 8080
	}

	n := maxCandidates
	if n > len(baseImageVariants) {
		n = len(baseImageVariants)
	}

	candidates := make([]sampling.Candidate[map[string]any], 0, n)
	for _, variant := range baseImageVariants[:n] {
		recipe := renderRecipe(variant.image, app, int(port))
		candidates = append(candidates, sampling.Candidate[map[string]any]{
			ID: uuid.New().String(),
			Content: map[string]any{
				"content":   recipe,
				"baseImage": variant.image,
			},
			Metadata: map[string]any{
				"quality":   variant.quality,
				"baseImage": variant.image,
			},
			GeneratedAt: time.Now().UTC(),
		})
	}
	return candidates, nil
}

// Validate implements sampling.Generator: a usable recipe candidate must
// carry a recipe with a FROM line.
func (g *RecipeGenerator) Validate(c sampling.Candidate[map[string]any]) bool {
	recipe, _ := c.Content["content"].(string)
	return strings.Contains(recipe, "FROM ")
}

func renderRecipe(baseImage, app string, port int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FROM %s\n", baseImage)
	fmt.Fprintf(&sb, "WORKDIR /srv/%s\n", app)
	fmt.Fprintf(&sb, "COPY . .\n")
	fmt.Fprintf(&sb, "EXPOSE %d\n", port)
	fmt.Fprintf(&sb, "USER 65532\n")
	fmt.Fprintf(&sb, "ENTRYPOINT [\"/srv/%s/%s\"]\n", app, app)
	return sb.String()
}

// ── Built-in Operations ─────────────────────────────────────

// GenerateRecipeOperation finalizes the winning recipe candidate the
// pipeline injected, or falls back to the first variant without sampling.
type GenerateRecipeOperation struct{}

func (o *GenerateRecipeOperation) Name() string                       { return "generate-recipe" }
func (o *GenerateRecipeOperation) Category() models.OperationCategory { return models.CategoryGenerate }

func (o *GenerateRecipeOperation) Execute(ctx context.Context, req models.OperationRequest) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if selected, ok := req.Params["selectedCandidate"].(map[string]any); ok {
		out := map[string]any{"contentType": "text/x-dockerfile"}
		for k, v := range selected {
			out[k] = v
		}
		return out, nil
	}

	// No sampling: single deterministic recipe from the first variant.
	app, _ := req.Params["app"].(string)
	if app == "" {
		app = "app"
	}
	return map[string]any{
		"content":     renderRecipe(baseImageVariants[0].image, app, 8080),
		"baseImage":   baseImageVariants[0].image,
		"contentType": "text/x-dockerfile",
	}, nil
}

// AnalyzeRepoOperation summarizes request parameters into an analysis
// payload. The real repository inspection heuristics live outside this
// module; this stands in for them behind the same contract.
type AnalyzeRepoOperation struct{}

func (o *AnalyzeRepoOperation) Name() string                       { return "analyze-repo" }
func (o *AnalyzeRepoOperation) Category() models.OperationCategory { return models.CategoryAnalyze }

func (o *AnalyzeRepoOperation) Execute(ctx context.Context, req models.OperationRequest) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, _ := req.Params["repo"].(string)
	if repo == "" {
		return nil, fmt.Errorf("analyze-repo: missing repo parameter")
	}

	report := contracts.ReporterFrom(ctx)
	report(ctx, "scan-files", 100, "repository tree walked")
	report(ctx, "detect-framework", 100, "language detection finished")
	report(ctx, "summarize", 100, "findings summarized")

	return map[string]any{
		"repo":     repo,
		"language": "unknown",
		"analyzed": true,
	}, nil
}

// RegisterBuiltins registers the built-in operations and their sampling
// collaborators.
func RegisterBuiltins(r *Registry) {
	r.Register(Registration{
		Operation: &GenerateRecipeOperation{},
		Generator: &RecipeGenerator{},
		Scorer:    &sampling.MetadataScorer[map[string]any]{},
	})
	r.Register(Registration{
		Operation: &AnalyzeRepoOperation{},
	})
}
