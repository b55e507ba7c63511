package training

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"detlab/internal/logging"
)

// PredictOptions configures a smoke-test inference pass.
type PredictOptions struct {
	Binary  string
	Weights string
	Source  string

	Logger *slog.Logger
}

// PredictResult summarizes the detections from one inference pass.
type PredictResult struct {
	Boxes         int
	MinConfidence float64
	MaxConfidence float64
}

// Predict runs the model over the source and reports box confidences. The
// yolo CLI is asked to save label files with confidences into a scoped
// directory, which is parsed and removed afterwards.
func Predict(ctx context.Context, opts PredictOptions) (PredictResult, error) {
	logger := logging.NewComponentLogger(opts.Logger, "predict")

	if _, err := os.Stat(opts.Weights); err != nil {
		return PredictResult{}, fmt.Errorf("weights file: %w", err)
	}
	if _, err := os.Stat(opts.Source); err != nil {
		return PredictResult{}, fmt.Errorf("prediction source: %w", err)
	}

	workDir, err := os.MkdirTemp("", "detlab-predict-")
	if err != nil {
		return PredictResult{}, fmt.Errorf("create prediction work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	args := []string{
		"detect", "predict",
		"model=" + opts.Weights,
		"source=" + opts.Source,
		"save_txt=true",
		"save_conf=true",
		"project=" + workDir,
		"name=smoke",
		"exist_ok=true",
	}
	logger.Info("running prediction",
		logging.String("weights", opts.Weights),
		logging.String("source", opts.Source))
	if err := runTool(ctx, opts.Binary, args); err != nil {
		return PredictResult{}, fmt.Errorf("prediction failed: %w", err)
	}

	confidences, err := collectConfidences(filepath.Join(workDir, "smoke", "labels"))
	if err != nil {
		return PredictResult{}, err
	}
	if len(confidences) == 0 {
		logger.Warn("prediction produced no detections")
		return PredictResult{}, nil
	}

	sort.Float64s(confidences)
	result := PredictResult{
		Boxes:         len(confidences),
		MinConfidence: confidences[0],
		MaxConfidence: confidences[len(confidences)-1],
	}
	logger.Info("prediction complete",
		logging.Int("boxes", result.Boxes),
		logging.Float64("min_confidence", result.MinConfidence),
		logging.Float64("max_confidence", result.MaxConfidence))
	return result, nil
}

// collectConfidences reads every saved label file under labelsDir. Each line
// is "class cx cy w h conf"; the trailing confidence is only present because
// the prediction ran with save_conf.
func collectConfidences(labelsDir string) ([]float64, error) {
	entries, err := os.ReadDir(labelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read labels dir: %w", err)
	}

	var confidences []float64
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		values, err := parseLabelFile(filepath.Join(labelsDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		confidences = append(confidences, values...)
	}
	return confidences, nil
}

func parseLabelFile(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label file: %w", err)
	}
	defer file.Close()

	var confidences []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 6 {
			continue
		}
		conf, err := strconv.ParseFloat(fields[len(fields)-1], 64)
		if err != nil {
			return nil, fmt.Errorf("parse confidence in %s: %w", filepath.Base(path), err)
		}
		confidences = append(confidences, conf)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan label file: %w", err)
	}
	return confidences, nil
}
