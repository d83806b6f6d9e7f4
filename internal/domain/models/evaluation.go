package models

// Criteria is the fixed, ordered set of evaluation dimensions. Every
// evaluation's score map contains exactly these keys.
var Criteria = []string{
	"Novelty and creativity",
	"Clarity and specificity",
	"Feasibility and practicality",
	"Engagement and fun factor",
	"Balance and fairness",
}

// NeutralScore is the midpoint score used when an evaluation has to be
// synthesized or a criterion is missing from a parsed result.
const NeutralScore = 5

// Evaluation is a structured multi-criterion judgment of one candidate
// solution. OverallScore is supplied by the judging call and is not
// required to equal any derived average. Error is set only when the
// evaluation had to be synthesized after a failure.
type Evaluation struct {
	Scores       map[string]int `json:"scores"`
	OverallScore float64        `json:"overall_score"`
	Feedback     string         `json:"feedback"`
	Error        string         `json:"error,omitempty"`
}

// FallbackEvaluation builds the synthesized evaluation used when judging
// could not produce a structured result: every criterion at the neutral
// score, the failure recorded in feedback and the error marker.
func FallbackEvaluation(feedback string, cause error) *Evaluation {
	scores := make(map[string]int, len(Criteria))
	for _, c := range Criteria {
		scores[c] = NeutralScore
	}
	e := &Evaluation{
		Scores:       scores,
		OverallScore: NeutralScore,
		Feedback:     feedback,
	}
	if cause != nil {
		e.Error = cause.Error()
	}
	return e
}

// Normalize forces the score map onto the fixed criterion set: missing
// criteria take the neutral score, unknown keys are dropped and values
// are clamped to the 1..10 range.
func (e *Evaluation) Normalize() {
	scores := make(map[string]int, len(Criteria))
	for _, c := range Criteria {
		v, ok := e.Scores[c]
		if !ok {
			v = NeutralScore
		}
		scores[c] = clampScore(v)
	}
	e.Scores = scores
}

func clampScore(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
