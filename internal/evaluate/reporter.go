package evaluate

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// Reporter writes evaluation results to disk in several formats.
type Reporter struct {
	result     *Result
	outputPath string
}

// NewReporter creates a reporter for one run.
func NewReporter(result *Result, outputPath string) *Reporter {
	return &Reporter{
		result:     result,
		outputPath: outputPath,
	}
}

// GenerateReport writes the summary, JSON, and accuracy-curve reports.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := r.generateSummary(); err != nil {
		return err
	}

	if err := r.generateJSONReport(); err != nil {
		return err
	}

	if err := r.generateCurveReport(); err != nil {
		return err
	}

	return nil
}

// generateSummary writes the human-readable summary.
func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "evaluation_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.result

	fmt.Fprintf(file, "EVALUATION RESULTS SUMMARY\n")
	fmt.Fprintf(file, "==========================\n\n")

	fmt.Fprintf(file, "Run: %s (%s)\n", res.Name, res.RunID)
	fmt.Fprintf(file, "Started: %s\n", res.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(file, "Duration: %s\n", res.FinishedAt.Sub(res.StartedAt))
	fmt.Fprintf(file, "Flows Evaluated: %d\n\n", res.Flows)

	fmt.Fprintf(file, "CLASSIFICATION METRICS\n")
	fmt.Fprintf(file, "----------------------\n")
	fmt.Fprintf(file, "Accuracy: %.4f\n", res.Accuracy)
	fmt.Fprintf(file, "Precision: %.4f\n", res.Precision)
	fmt.Fprintf(file, "Recall: %.4f\n", res.Recall)
	fmt.Fprintf(file, "F1 Score: %.4f\n", res.F1)
	fmt.Fprintf(file, "Cohen's Kappa: %.4f\n\n", res.Kappa)

	fmt.Fprintf(file, "CONFUSION MATRIX\n")
	fmt.Fprintf(file, "----------------\n")
	fmt.Fprintf(file, "True Positives: %d\n", res.TruePositives)
	fmt.Fprintf(file, "False Positives: %d\n", res.FalsePositives)
	fmt.Fprintf(file, "True Negatives: %d\n", res.TrueNegatives)
	fmt.Fprintf(file, "False Negatives: %d\n\n", res.FalseNegatives)

	fmt.Fprintf(file, "LEARNER STATE\n")
	fmt.Fprintf(file, "-------------\n")
	fmt.Fprintf(file, "Strategy: %s\n", res.LearnerStatus.Strategy)
	fmt.Fprintf(file, "Ensemble: %d/%d members\n", res.LearnerStatus.EnsembleLive, res.LearnerStatus.Capacity)
	fmt.Fprintf(file, "Training Rounds: %d\n", res.LearnerStatus.Trainings)
	fmt.Fprintf(file, "Drift Resets: %d\n", res.LearnerStatus.DriftResets)
	fmt.Fprintf(file, "Final Window: %d\n", res.LearnerStatus.WindowSize)

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

// generateJSONReport dumps the full result for downstream tooling.
func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "evaluation_results.json")

	report := map[string]interface{}{
		"result":       r.result,
		"generated_at": time.Now(),
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

// generateCurveReport writes the accuracy curve as CSV for plotting.
func (r *Reporter) generateCurveReport() error {
	if len(r.result.Curve) == 0 {
		return nil
	}

	csvPath := filepath.Join(r.outputPath, "accuracy_curve.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create curve report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Flows", "Accuracy"}); err != nil {
		return err
	}
	for _, point := range r.result.Curve {
		record := []string{
			fmt.Sprintf("%d", point.Flows),
			fmt.Sprintf("%.4f", point.Accuracy),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	log.Info().Str("file", csvPath).Msg("Accuracy curve generated")
	return nil
}

// PrintSummary prints the run summary to console.
func (r *Reporter) PrintSummary() {
	res := r.result
	fmt.Println("\n=== EVALUATION RESULTS ===")
	fmt.Printf("Run: %s\n", res.Name)
	fmt.Printf("Flows: %d\n", res.Flows)
	fmt.Printf("Accuracy: %.4f\n", res.Accuracy)
	fmt.Printf("Precision: %.4f\n", res.Precision)
	fmt.Printf("Recall: %.4f\n", res.Recall)
	fmt.Printf("F1 Score: %.4f\n", res.F1)
	fmt.Printf("Kappa: %.4f\n", res.Kappa)
	fmt.Printf("Training Rounds: %d\n", res.LearnerStatus.Trainings)
	fmt.Printf("Drift Resets: %d\n", res.LearnerStatus.DriftResets)
	fmt.Println("==========================")
}

// WriteComparison writes an A/B comparison report alongside the per-candidate
// JSON results.
func WriteComparison(cmp *Comparison, outputPath string) error {
	if err := os.MkdirAll(outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	jsonPath := filepath.Join(outputPath, "comparison_results.json")
	data, err := json.MarshalIndent(cmp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write comparison report: %w", err)
	}

	summaryPath := filepath.Join(outputPath, "comparison_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "A/B COMPARISON SUMMARY\n")
	fmt.Fprintf(file, "======================\n\n")
	fmt.Fprintf(file, "Flows: %d\n\n", cmp.A.Flows)

	for _, res := range []*Result{cmp.A, cmp.B} {
		fmt.Fprintf(file, "%s\n", res.Name)
		fmt.Fprintf(file, "  Accuracy: %.4f  Precision: %.4f  Recall: %.4f  F1: %.4f\n",
			res.Accuracy, res.Precision, res.Recall, res.F1)
		fmt.Fprintf(file, "  Trainings: %d  Drift Resets: %d\n\n",
			res.LearnerStatus.Trainings, res.LearnerStatus.DriftResets)
	}

	fmt.Fprintf(file, "MCNEMAR TEST\n")
	fmt.Fprintf(file, "------------\n")
	fmt.Fprintf(file, "%s only correct: %d\n", cmp.A.Name, cmp.AOnlyCorrect)
	fmt.Fprintf(file, "%s only correct: %d\n", cmp.B.Name, cmp.BOnlyCorrect)
	fmt.Fprintf(file, "Chi-squared: %.4f\n", cmp.McNemarChi2)
	fmt.Fprintf(file, "Significant (p<0.05): %v\n", cmp.Significant)
	fmt.Fprintf(file, "Winner: %s\n", cmp.Winner)

	log.Info().Str("file", jsonPath).Msg("Comparison report generated")
	return nil
}
