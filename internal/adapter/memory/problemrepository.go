package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"gitlab.com/judgeflow.net/internal/core/ports/secondary"
	"gitlab.com/judgeflow.net/internal/domain"
)

var _ secondary.ProblemRepository = (*ProblemRepository)(nil)

type problemEntry struct {
	problem   domain.Problem
	testCases []domain.TestCase
}

// ProblemRepository serves problems and test cases from memory
type ProblemRepository struct {
	mu       sync.RWMutex
	problems map[string]problemEntry
}

func NewProblemRepository() *ProblemRepository {
	return &ProblemRepository{problems: make(map[string]problemEntry)}
}

// AddProblem registers a problem, ordering its test cases by ordinal
func (r *ProblemRepository) AddProblem(problem domain.Problem, testCases []domain.TestCase) {
	cases := make([]domain.TestCase, len(testCases))
	copy(cases, testCases)
	for i := range cases {
		cases[i].ProblemID = problem.ID
		if cases[i].Kind == "" {
			cases[i].Kind = domain.TestCaseKindTest
		}
		if cases[i].ID == "" {
			cases[i].ID = fmt.Sprintf("%s-%d", problem.ID, i+1)
		}
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].Ordinal < cases[j].Ordinal })

	r.mu.Lock()
	defer r.mu.Unlock()
	r.problems[problem.ID] = problemEntry{problem: problem, testCases: cases}
}

func (r *ProblemRepository) GetProblem(_ context.Context, problemID string) (*domain.Problem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.problems[problemID]
	if !ok {
		return nil, nil
	}
	p := e.problem
	return &p, nil
}

func (r *ProblemRepository) GetTestCases(_ context.Context, problemID string) ([]domain.TestCase, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.problems[problemID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.TestCase, len(e.testCases))
	copy(out, e.testCases)
	return out, nil
}

type problemFixture struct {
	domain.Problem `yaml:",inline"`
	TestCases      []domain.TestCase `yaml:"test_cases"`
}

type problemsFile struct {
	Problems []problemFixture `yaml:"problems"`
}

// LoadProblemRepository reads problems and their test cases from a YAML file
func LoadProblemRepository(path string) (*ProblemRepository, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problems file: %w", err)
	}
	return ParseProblems(raw)
}

func ParseProblems(raw []byte) (*ProblemRepository, error) {
	var file problemsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse problems file: %w", err)
	}
	repo := NewProblemRepository()
	for _, p := range file.Problems {
		if p.ID == "" {
			return nil, fmt.Errorf("problem without id in problems file")
		}
		for i := range p.TestCases {
			if p.TestCases[i].Ordinal == 0 {
				p.TestCases[i].Ordinal = i + 1
			}
		}
		repo.AddProblem(p.Problem, p.TestCases)
	}
	return repo, nil
}
