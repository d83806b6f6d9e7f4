package judge

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/longregen/refinery/internal/domain/models"
)

// ParseError reports that no usable evaluation JSON was found in a response.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "failed to parse evaluation response: " + e.Reason
}

type evaluationPayload struct {
	Scores       map[string]float64 `json:"scores"`
	OverallScore float64            `json:"overall_score"`
	Feedback     string             `json:"feedback"`
}

// ParseEvaluation extracts a structured evaluation from raw model output.
// First the whole text is tried as JSON; failing that, brace-delimited
// blocks are scanned line by line. Either way the first JSON object
// carrying all of scores, overall_score and feedback wins. Anything else
// is a *ParseError.
func ParseEvaluation(text string) (*models.Evaluation, error) {
	if eval, ok := parseEvaluationObject(text); ok {
		return eval, nil
	}

	for _, block := range candidateBlocks(text) {
		if eval, ok := parseEvaluationObject(block); ok {
			return eval, nil
		}
	}

	return nil, &ParseError{Reason: "no valid JSON object with scores, overall_score and feedback found"}
}

func parseEvaluationObject(text string) (*models.Evaluation, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &keys); err != nil {
		return nil, false
	}
	for _, required := range []string{"scores", "overall_score", "feedback"} {
		if _, ok := keys[required]; !ok {
			return nil, false
		}
	}

	var payload evaluationPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}
	return payload.toEvaluation(), true
}

// candidateBlocks collects line runs that start at a '{' line and end where
// the open-brace depth returns to zero. Brace counting is textual, which is
// close enough for model output that interleaves prose with JSON.
func candidateBlocks(text string) []string {
	var blocks []string
	var block []string
	depth := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(block) == 0 {
			if !strings.HasPrefix(line, "{") {
				continue
			}
		}

		block = append(block, line)
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			blocks = append(blocks, strings.Join(block, "\n"))
			block = nil
			depth = 0
		}
	}

	return blocks
}

func (p evaluationPayload) toEvaluation() *models.Evaluation {
	scores := make(map[string]int, len(p.Scores))
	for name, value := range p.Scores {
		scores[name] = int(math.Round(value))
	}

	eval := &models.Evaluation{
		Scores:       scores,
		OverallScore: p.OverallScore,
		Feedback:     p.Feedback,
	}
	eval.Normalize()
	return eval
}
