package ml

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/swappilot/quoterank/internal/domain"
)

// Backend runs model inference for one feature vector. Any error from
// Predict sends the engine to the heuristic; backends never need to degrade
// gracefully themselves.
type Backend interface {
	Predict(ctx context.Context, f Features) (Prediction, error)
}

// featureCount is the frozen width of Features.Vector.
const featureCount = 11

// logitHead is one linear 3-class head over the feature vector, logits
// ordered [LOW, MEDIUM, HIGH].
type logitHead struct {
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`
}

type calibrationHead struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// modelArtifact is the on-disk risk classifier: four logit heads plus an
// optional confidence calibration.
type modelArtifact struct {
	Version     string               `json:"version"`
	Heads       map[string]logitHead `json:"heads"`
	Calibration *calibrationHead     `json:"calibration,omitempty"`
}

// requiredHeads must all be present for a prediction to count as complete.
var requiredHeads = []string{"mev", "churn", "liquidity", "slippage"}

// linearBackend serves a linear risk classifier loaded once at
// construction. Construction fails if the artifact is missing or malformed;
// the engine then runs heuristic-only for the life of the process.
type linearBackend struct {
	artifact modelArtifact
	version  string
}

// ArtifactPath returns the expected model artifact location for a version.
func ArtifactPath(modelsPath, version string) string {
	return filepath.Join(modelsPath, fmt.Sprintf("risk_classifier_%s.json", version))
}

// NewLinearBackend loads and validates the model artifact for version.
func NewLinearBackend(modelsPath, version string) (Backend, error) {
	raw, err := os.ReadFile(ArtifactPath(modelsPath, version))
	if err != nil {
		return nil, fmt.Errorf("model artifact: %w", err)
	}
	var artifact modelArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("model artifact: %w", err)
	}
	for _, name := range requiredHeads {
		head, ok := artifact.Heads[name]
		if !ok {
			return nil, fmt.Errorf("model artifact: missing head %q", name)
		}
		if len(head.Weights) != 3 || len(head.Bias) != 3 {
			return nil, fmt.Errorf("model artifact: head %q is not 3-class", name)
		}
		for _, row := range head.Weights {
			if len(row) != featureCount {
				return nil, fmt.Errorf("model artifact: head %q expects %d features", name, featureCount)
			}
		}
	}
	return &linearBackend{artifact: artifact, version: version}, nil
}

func (b *linearBackend) Predict(ctx context.Context, f Features) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	vec := f.Vector()
	logits := make(map[string][]float64, len(requiredHeads))
	for _, name := range requiredHeads {
		logits[name] = b.artifact.Heads[name].apply(vec)
	}

	confidence := softmaxMax(logits["mev"])
	if cal := b.artifact.Calibration; cal != nil && len(cal.Weights) == featureCount {
		confidence = sigmoid(dot(cal.Weights, vec) + cal.Bias)
	}

	return Prediction{
		MEVExposureLevel: levelFromLogits(logits["mev"]),
		ChurnLevel:       levelFromLogits(logits["churn"]),
		LiquidityLevel:   levelFromLogits(logits["liquidity"]),
		SlippageLevel:    levelFromLogits(logits["slippage"]),
		Confidence:       confidence,
		Source:           SourceModel,
		ModelVersion:     b.version,
	}, nil
}

func (h logitHead) apply(vec []float64) []float64 {
	out := make([]float64, 3)
	for i := range out {
		out[i] = dot(h.Weights[i], vec) + h.Bias[i]
	}
	return out
}

func dot(w, v []float64) float64 {
	var sum float64
	for i := range w {
		sum += w[i] * v[i]
	}
	return sum
}

// levelFromLogits picks the max-logit class; ties resolve to the lowest
// index, which is always the lower-risk class.
func levelFromLogits(logits []float64) domain.RiskLevel {
	maxIdx := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[maxIdx] {
			maxIdx = i
		}
	}
	switch maxIdx {
	case 0:
		return domain.RiskLow
	case 1:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// softmaxMax is the softmax probability of the max logit, shift-stabilized.
func softmaxMax(logits []float64) float64 {
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for _, v := range logits {
		sum += math.Exp(v - maxVal)
	}
	return 1 / sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
