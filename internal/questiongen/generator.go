package questiongen

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"daily-quiz-service/internal/domain"
)

// Generator turns a day's activity into multiple-choice questions.
// It is safe for concurrent use; the random source is guarded by a mutex.
type Generator struct {
	catalog []Archetype
	cfg     CatalogConfig
	newID   func() string
	clock   func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customises a Generator.
type Option func(*Generator)

// WithRand injects the random source, typically seeded in tests.
func WithRand(rnd *rand.Rand) Option {
	return func(g *Generator) { g.rnd = rnd }
}

// WithCatalog replaces the archetype catalog.
func WithCatalog(catalog []Archetype) Option {
	return func(g *Generator) { g.catalog = catalog }
}

// WithIDs overrides question id generation.
func WithIDs(newID func() string) Option {
	return func(g *Generator) { g.newID = newID }
}

// WithClock sets the clock used to date the sample day.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.clock = now }
}

func NewGenerator(cfg CatalogConfig, opts ...Option) *Generator {
	g := &Generator{
		catalog: DefaultCatalog(cfg),
		cfg:     cfg,
		newID:   uuid.NewString,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds up to count questions from records. An empty day falls back
// to SampleActivity. Archetypes do not repeat unless fewer are applicable than
// requested, in which case the applicable ones are cycled in the same shuffled order.
func (g *Generator) Generate(records []domain.ActivityRecord, count int) ([]domain.Question, error) {
	if count <= 0 {
		return nil, nil
	}
	if len(records) == 0 {
		records = SampleActivity("", g.clock())
	}

	facts := Analyze(records, g.cfg.ImpulseThreshold)

	g.mu.Lock()
	defer g.mu.Unlock()

	type candidate struct {
		archetype Archetype
		answer    Answer
	}
	applicable := make([]candidate, 0, len(g.catalog))
	for _, a := range g.catalog {
		if answer, ok := a.Build(facts, g.rnd); ok {
			applicable = append(applicable, candidate{archetype: a, answer: answer})
		}
	}
	if len(applicable) == 0 {
		return nil, nil
	}
	g.rnd.Shuffle(len(applicable), func(i, j int) {
		applicable[i], applicable[j] = applicable[j], applicable[i]
	})

	questions := make([]domain.Question, 0, count)
	for i := 0; i < count; i++ {
		c := applicable[i%len(applicable)]
		answer := c.answer
		if i >= len(applicable) {
			// repeated archetype: draw fresh distractors
			answer, _ = c.archetype.Build(facts, g.rnd)
		}
		q, err := g.assemble(c.archetype, answer)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// assemble shuffles the options and records where the correct one landed.
func (g *Generator) assemble(a Archetype, answer Answer) (domain.Question, error) {
	options := make([]string, 0, len(answer.Distractors)+1)
	options = append(options, answer.Correct)
	options = append(options, answer.Distractors...)
	g.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	correctIndex := -1
	for i, o := range options {
		if o == answer.Correct {
			correctIndex = i
			break
		}
	}

	q := domain.Question{
		ID:                 g.newID(),
		Archetype:          a.Key,
		Prompt:             a.Prompt,
		Options:            options,
		CorrectOptionIndex: correctIndex,
		Difficulty:         a.Difficulty,
		PointsBase:         a.PointsBase,
		Explanation:        answer.Explanation,
	}
	if err := Validate(q); err != nil {
		return domain.Question{}, fmt.Errorf("archetype %s: %w", a.Key, err)
	}
	return q, nil
}

// Validate checks the question contract: at least two distinct options and
// a correct index that addresses one of them.
func Validate(q domain.Question) error {
	if q.Prompt == "" {
		return fmt.Errorf("%w: empty prompt", domain.ErrMalformedQuestion)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: %d options", domain.ErrMalformedQuestion, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: duplicate option %q", domain.ErrMalformedQuestion, o)
		}
		seen[o] = struct{}{}
	}
	if !q.IsValidOption(q.CorrectOptionIndex) {
		return fmt.Errorf("%w: correct index %d out of range", domain.ErrMalformedQuestion, q.CorrectOptionIndex)
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("%w: difficulty %q", domain.ErrMalformedQuestion, q.Difficulty)
	}
	return nil
}
