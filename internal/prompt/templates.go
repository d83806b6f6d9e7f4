package prompt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/longregen/refinery/internal/domain"
)

// Template file names recognized by LoadStore.
const (
	SolutionTemplateFile           = "solution_template.txt"
	FirstIterationContextFile      = "first_iteration_context.txt"
	SubsequentIterationContextFile = "subsequent_iteration_context.txt"
	CritiqueTemplateFile           = "critique_template.txt"
)

const defaultSolutionTemplate = `You are an expert creative problem solver. {iteration_context}

ORIGINAL REQUEST:
{original_prompt}

{context}

Write the strongest complete solution you can. Respond with the solution text only, without meta commentary.`

const defaultFirstIterationContext = `This is your first attempt at this request. There is no earlier feedback to build on. Aim for a solution that is novel, clearly specified, practical, engaging, and well balanced.`

const defaultSubsequentIterationContext = `YOUR PREVIOUS SOLUTION:
{previous_solution}

CRITIQUE OF THAT SOLUTION:
{previous_critique}

IMPROVEMENTS TO APPLY (iteration {iteration_number}):
{improvement_suggestions}

Address every improvement above while keeping what already worked.`

const defaultCritiqueTemplate = `You are a rigorous reviewer. {iteration_context}

ORIGINAL REQUEST:
{original_prompt}

SOLUTION UNDER REVIEW:
{current_solution}

Structure your critique exactly as follows:

## TOP IMPROVEMENT PRIORITIES
- the most important concrete improvements, one bullet per line

## REFINED APPROACH SUGGESTION
A short paragraph describing how the next attempt should approach the request.`

// Store holds the four request templates the composer renders from.
type Store struct {
	Solution                   string
	FirstIterationContext      string
	SubsequentIterationContext string
	Critique                   string
}

func DefaultStore() *Store {
	return &Store{
		Solution:                   defaultSolutionTemplate,
		FirstIterationContext:      defaultFirstIterationContext,
		SubsequentIterationContext: defaultSubsequentIterationContext,
		Critique:                   defaultCritiqueTemplate,
	}
}

// LoadStore returns the default templates overridden by whichever of the
// four template files exist in dir. A present-but-blank file is a
// configuration error; an absent file keeps the default.
func LoadStore(dir string) (*Store, error) {
	store := DefaultStore()
	if dir == "" {
		return store, nil
	}

	overrides := []struct {
		file   string
		target *string
	}{
		{SolutionTemplateFile, &store.Solution},
		{FirstIterationContextFile, &store.FirstIterationContext},
		{SubsequentIterationContextFile, &store.SubsequentIterationContext},
		{CritiqueTemplateFile, &store.Critique},
	}

	for _, o := range overrides {
		data, err := os.ReadFile(filepath.Join(dir, o.file))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", o.file, err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil, fmt.Errorf("template %s: %w", o.file, domain.ErrTemplateEmpty)
		}
		*o.target = content
	}

	return store, nil
}

// Validate confirms every template is non-empty after trimming.
func (s *Store) Validate() error {
	checks := []struct {
		name string
		text string
	}{
		{"solution_template", s.Solution},
		{"first_iteration_context", s.FirstIterationContext},
		{"subsequent_iteration_context", s.SubsequentIterationContext},
		{"critique_template", s.Critique},
	}

	var empty []string
	for _, c := range checks {
		if strings.TrimSpace(c.text) == "" {
			empty = append(empty, c.name)
		}
	}
	if len(empty) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrTemplateEmpty, strings.Join(empty, ", "))
	}
	return nil
}
