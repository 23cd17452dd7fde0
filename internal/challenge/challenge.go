package challenge

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"
)

// Operator is one of the arithmetic operations a challenge can ask about.
type Operator int

const (
	Add Operator = iota
	Subtract
	Multiply
)

var operators = []Operator{Add, Subtract, Multiply}

func (o Operator) String() string {
	switch o {
	case Add:
		return "addition"
	case Subtract:
		return "subtraction"
	case Multiply:
		return "multiplication"
	default:
		return "unknown"
	}
}

// Symbol returns the glyph shown to the user.
func (o Operator) Symbol() string {
	switch o {
	case Add:
		return "+"
	case Subtract:
		return "−"
	case Multiply:
		return "×"
	default:
		return "?"
	}
}

// Apply evaluates a op b.
func (o Operator) Apply(a, b int) int {
	switch o {
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	default:
		return a + b
	}
}

// Challenge is a single arithmetic question and its expected answer.
type Challenge struct {
	A        int      `json:"a"`
	B        int      `json:"b"`
	Op       Operator `json:"op"`
	Question string   `json:"question"`
	Answer   string   `json:"-"`
}

// IsZero reports whether the challenge was never generated.
func (c Challenge) IsZero() bool {
	return c.Question == "" && c.Answer == ""
}

// Generator produces challenges. It is safe for concurrent use.
//
// Operand ranges:
//
//	addition:       a, b in [1, 50]
//	subtraction:    a in [10, 59], b in [0, a-1]
//	multiplication: a, b in [1, 12]
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a generator seeded from the clock.
func NewGenerator() *Generator {
	seed := uint64(time.Now().UnixNano())
	return NewGeneratorWithSource(rand.NewPCG(seed, seed>>1|1))
}

// NewGeneratorWithSource returns a generator reading from src. Tests use it
// to get deterministic sequences.
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Generate draws a new challenge.
func (g *Generator) Generate() Challenge {
	g.mu.Lock()
	op := operators[g.rnd.IntN(len(operators))]
	var a, b int
	switch op {
	case Add:
		a = g.rnd.IntN(50) + 1
		b = g.rnd.IntN(50) + 1
	case Subtract:
		a = g.rnd.IntN(50) + 10
		b = g.rnd.IntN(a)
	case Multiply:
		a = g.rnd.IntN(12) + 1
		b = g.rnd.IntN(12) + 1
	}
	g.mu.Unlock()

	return New(a, op, b)
}

// New builds the challenge for a op b.
func New(a int, op Operator, b int) Challenge {
	return Challenge{
		A:        a,
		B:        b,
		Op:       op,
		Question: fmt.Sprintf("%d %s %d", a, op.Symbol(), b),
		Answer:   strconv.Itoa(op.Apply(a, b)),
	}
}
