package progress

import "github.com/gambtho/container-assist/pkg/models"

// TemplateFor returns the named step template for an operation category.
// Weights are relative; the tracker normalizes by their sum.
//
// Every template starts with "resolve-context" and ends with "finalize",
// the two steps the pipeline itself reports. The steps in between belong
// to the operation, which reports them through its context reporter.
func TemplateFor(category models.OperationCategory) []Step {
	switch category {
	case models.CategoryAnalyze:
		return []Step{
			{Name: "resolve-context", Weight: 10, Description: "Resolving operation context"},
			{Name: "scan-files", Weight: 35, Description: "Walking the repository tree"},
			{Name: "detect-framework", Weight: 25, Description: "Detecting language and framework"},
			{Name: "summarize", Weight: 15, Description: "Summarizing findings"},
			{Name: "finalize", Weight: 15, Description: "Finalizing results"},
		}
	case models.CategoryGenerate:
		return []Step{
			{Name: "resolve-context", Weight: 15, Description: "Resolving generation context"},
			{Name: "generate-candidates", Weight: 35, Description: "Generating candidates"},
			{Name: "score-candidates", Weight: 20, Description: "Scoring candidates"},
			{Name: "finalize", Weight: 30, Description: "Finalizing the winner"},
		}
	case models.CategoryBuild:
		return []Step{
			{Name: "resolve-context", Weight: 5, Description: "Resolving operation context"},
			{Name: "prepare-context", Weight: 10, Description: "Preparing build context"},
			{Name: "build-image", Weight: 50, Description: "Building the image"},
			{Name: "tag-image", Weight: 10, Description: "Tagging the image"},
			{Name: "verify", Weight: 15, Description: "Verifying the build"},
			{Name: "finalize", Weight: 10, Description: "Finalizing results"},
		}
	case models.CategoryScan:
		return []Step{
			{Name: "resolve-context", Weight: 10, Description: "Resolving operation context"},
			{Name: "fetch-db", Weight: 15, Description: "Updating the vulnerability database"},
			{Name: "scan-image", Weight: 45, Description: "Scanning image layers"},
			{Name: "report", Weight: 15, Description: "Compiling the report"},
			{Name: "finalize", Weight: 15, Description: "Finalizing results"},
		}
	case models.CategoryDeploy:
		return []Step{
			{Name: "resolve-context", Weight: 10, Description: "Resolving operation context"},
			{Name: "render-manifests", Weight: 20, Description: "Rendering cluster manifests"},
			{Name: "apply", Weight: 40, Description: "Applying to the cluster"},
			{Name: "await-ready", Weight: 20, Description: "Waiting for workloads to become ready"},
			{Name: "finalize", Weight: 10, Description: "Finalizing results"},
		}
	default:
		// Ad hoc progress: no template.
		return nil
	}
}
