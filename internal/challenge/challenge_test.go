package challenge

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// evalQuestion parses "a op b" independently of the generator.
func evalQuestion(t *testing.T, q string) int {
	t.Helper()
	parts := strings.Fields(q)
	require.Len(t, parts, 3, "question %q", q)
	a, err := strconv.Atoi(parts[0])
	require.NoError(t, err)
	b, err := strconv.Atoi(parts[2])
	require.NoError(t, err)
	switch parts[1] {
	case "+":
		return a + b
	case "−":
		return a - b
	case "×":
		return a * b
	}
	t.Fatalf("unknown operator in %q", q)
	return 0
}

func TestGenerateAnswerMatchesQuestion(t *testing.T) {
	g := NewGeneratorWithSource(rand.NewPCG(1, 2))
	seen := map[Operator]int{}
	for i := 0; i < 5000; i++ {
		c := g.Generate()
		seen[c.Op]++

		want := evalQuestion(t, c.Question)
		assert.Equal(t, strconv.Itoa(want), c.Answer, "question %q", c.Question)
		assert.GreaterOrEqual(t, want, 0)
		assert.GreaterOrEqual(t, c.A, 0)
		assert.GreaterOrEqual(t, c.B, 0)

		switch c.Op {
		case Add:
			assert.True(t, c.A >= 1 && c.A <= 50, "a=%d", c.A)
			assert.True(t, c.B >= 1 && c.B <= 50, "b=%d", c.B)
		case Subtract:
			assert.True(t, c.A >= 10 && c.A <= 59, "a=%d", c.A)
			assert.True(t, c.B >= 0 && c.B < c.A, "b=%d a=%d", c.B, c.A)
		case Multiply:
			assert.True(t, c.A >= 1 && c.A <= 12, "a=%d", c.A)
			assert.True(t, c.B >= 1 && c.B <= 12, "b=%d", c.B)
		}
	}

	for _, op := range operators {
		assert.Greater(t, seen[op], 1000, "operator %s drawn too rarely", op)
	}
}

func TestGenerateIsDeterministicForSource(t *testing.T) {
	g1 := NewGeneratorWithSource(rand.NewPCG(42, 7))
	g2 := NewGeneratorWithSource(rand.NewPCG(42, 7))
	for i := 0; i < 50; i++ {
		assert.Equal(t, g1.Generate(), g2.Generate())
	}
}

func TestGenerateConcurrent(t *testing.T) {
	g := NewGenerator()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				c := g.Generate()
				if c.IsZero() {
					t.Error("generated zero challenge")
				}
			}
		}()
	}
	wg.Wait()
}

func TestNew(t *testing.T) {
	tests := []struct {
		a, b     int
		op       Operator
		question string
		answer   string
	}{
		{7, 4, Multiply, "7 × 4", "28"},
		{12, 12, Subtract, "12 − 12", "0"},
		{1, 50, Add, "1 + 50", "51"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			c := New(tt.a, tt.op, tt.b)
			assert.Equal(t, tt.question, c.Question)
			assert.Equal(t, tt.answer, c.Answer)
		})
	}
}

func TestOperatorString(t *testing.T) {
	assert.Equal(t, "addition", Add.String())
	assert.Equal(t, "subtraction", Subtract.String())
	assert.Equal(t, "multiplication", Multiply.String())
	assert.Equal(t, "unknown", Operator(9).String())
	assert.Equal(t, "?", Operator(9).Symbol())
}

func TestZeroChallenge(t *testing.T) {
	assert.True(t, Challenge{}.IsZero())
	assert.False(t, New(1, Add, 1).IsZero())
}
