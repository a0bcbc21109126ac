package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIgnoresWhitespace(t *testing.T) {
	a := Normalize("func Foo(x int) int {\n  return x + 1\n}").NormalizedHash
	b := Normalize("func Foo(x   int)   int {return x+1}").NormalizedHash
	assert.Equal(t, a, b)
}

func TestNormalizeIgnoresComments(t *testing.T) {
	a := Normalize("func Foo() { return 1 }").NormalizedHash
	b := Normalize("func Foo() { // a comment\n return 1 /* inline */ }").NormalizedHash
	assert.Equal(t, a, b)
}

func TestNormalizeIgnoresStringContent(t *testing.T) {
	a := Normalize(`func Foo() string { return "hello" }`).NormalizedHash
	b := Normalize(`func Foo() string { return "goodbye, world" }`).NormalizedHash
	assert.Equal(t, a, b)
}

func TestNormalizeIgnoresNumericValue(t *testing.T) {
	a := Normalize("func Foo() int { return 42 }").NormalizedHash
	b := Normalize("func Foo() int { return 0x2A }").NormalizedHash
	assert.Equal(t, a, b)
}

func TestNormalizeIgnoresIdentifierSpelling(t *testing.T) {
	m1 := Normalize("func M1(value int) int { total := value * 2; return total }")
	m2 := Normalize("func M2(amount int) int { sum := amount * 2; return sum }")
	assert.Equal(t, m1.NormalizedHash, m2.NormalizedHash, "identical structure under renamed identifiers must hash equal")
}

func TestNormalizeKeepsKeywordsAndBuiltins(t *testing.T) {
	a := Normalize("func Foo() { var x int; _ = x }")
	b := Normalize("func Foo() { var y int; _ = y }")
	assert.Equal(t, a.NormalizedHash, b.NormalizedHash)
}

func TestNormalizeDistinguishesDifferentStructure(t *testing.T) {
	a := Normalize("func Foo(x int) int { return x + 1 }")
	b := Normalize("func Foo(x int) int { return x - 1 }")
	assert.NotEqual(t, a.NormalizedHash, b.NormalizedHash)
}

func TestComputeMetricsBraceNesting(t *testing.T) {
	m := computeMetrics("func Foo() { if true { for {} } }")
	assert.Equal(t, 3, m.MaxBraceNesting)
}
