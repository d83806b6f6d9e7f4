package prompt

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// Composer renders solution and critique request text from the template
// store plus prior-iteration state.
type Composer struct {
	store  *Store
	logger *slog.Logger
}

// NewComposer validates the store up front: a pipeline must not start with
// a blank template.
func NewComposer(store *Store, logger *slog.Logger) (*Composer, error) {
	if err := store.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{store: store, logger: logger}, nil
}

// SolutionPrompt builds the request text for the solution call of the given
// 1-based iteration. The first iteration embeds the fixed first-iteration
// context; later iterations embed the previous solution, the previous
// critique, and the suggestions extracted from it.
func (c *Composer) SolutionPrompt(originalPrompt string, iteration, totalIterations int, previousSolution, previousCritique string) string {
	var context string
	if iteration <= 1 {
		context = c.store.FirstIterationContext
	} else {
		suggestions := FormatImprovements(ExtractImprovements(previousCritique))
		context = c.render(c.store.SubsequentIterationContext, map[string]string{
			"previous_solution":       previousSolution,
			"previous_critique":       previousCritique,
			"improvement_suggestions": suggestions,
			"iteration_number":        strconv.Itoa(iteration),
		})
	}

	return c.render(c.store.Solution, map[string]string{
		"original_prompt":   originalPrompt,
		"context":           context,
		"iteration_context": fmt.Sprintf("This is iteration %d of your refinement process.", iteration),
		"iteration":         strconv.Itoa(iteration),
		"total_iterations":  strconv.Itoa(totalIterations),
		"timestamp":         time.Now().Format("2006-01-02 15:04:05"),
	})
}

// CritiquePrompt builds the request text for the critique call on the given
// solution.
func (c *Composer) CritiquePrompt(originalPrompt, solution string, iteration, totalIterations int) string {
	iterationContext := fmt.Sprintf("This is iteration %d of %d.\nProvide a detailed critique of the following solution.", iteration, totalIterations)

	return c.render(c.store.Critique, map[string]string{
		"original_prompt":   originalPrompt,
		"current_solution":  solution,
		"iteration_context": iterationContext,
		"iteration":         strconv.Itoa(iteration),
		"iteration_count":   strconv.Itoa(iteration),
		"total_iterations":  strconv.Itoa(totalIterations),
		"timestamp":         time.Now().Format("2006-01-02 15:04:05"),
	})
}

func (c *Composer) render(template string, vars map[string]string) string {
	text, missing := Render(template, vars)
	for _, name := range missing {
		c.logger.Warn("template placeholder missing, substituted empty string", "placeholder", name)
	}
	return text
}
