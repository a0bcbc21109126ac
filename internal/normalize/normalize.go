// Package normalize implements the structural-duplication normalization
// pipeline described in spec.md §4.11: string/numeric/identifier
// placeholder substitution followed by SHA-256, plus the auxiliary body
// metrics persisted alongside each node.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// reserved is the fixed set of tokens identifier normalization must never
// rewrite: Go keywords, built-in primitive names, standard container/
// promise/reflection-adjacent names, and the placeholder tokens themselves.
var reserved = buildReserved()

func buildReserved() map[string]bool {
	keywords := []string{
		"break", "case", "chan", "const", "continue", "default", "defer",
		"else", "fallthrough", "for", "func", "go", "goto", "if", "import",
		"interface", "map", "package", "range", "return", "select", "struct",
		"switch", "type", "var",
	}
	builtins := []string{
		"bool", "byte", "complex64", "complex128", "error", "float32",
		"float64", "int", "int8", "int16", "int32", "int64", "rune",
		"string", "uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
		"any", "true", "false", "nil", "iota",
		"append", "cap", "close", "complex", "copy", "delete", "imag", "len",
		"make", "new", "panic", "print", "println", "real", "recover",
	}
	containers := []string{
		"context", "Context", "sync", "WaitGroup", "Mutex", "RWMutex",
		"chan", "Channel", "reflect", "Value", "Type", "Kind",
		"STR", "NUM",
	}
	set := make(map[string]bool, len(keywords)+len(builtins)+len(containers))
	for _, list := range [][]string{keywords, builtins, containers} {
		for _, tok := range list {
			set[tok] = true
		}
	}
	return set
}

var (
	// Ordering matters: strings before comments so a "//" inside a string
	// literal is already replaced before comment stripping looks for it.
	stringLiteralRe = regexp.MustCompile("`[^`]*`|\"(?:\\\\.|[^\"\\\\])*\"|'(?:\\\\.|[^'\\\\])*'")
	blockCommentRe  = regexp.MustCompile(`/\*[\s\S]*?\*/`)
	lineCommentRe   = regexp.MustCompile(`//[^\n]*`)
	numberRe        = regexp.MustCompile(`\b0[xX][0-9a-fA-F_]+\b|\b0[bB][01_]+\b|\b0[oO][0-7_]+\b|\b[0-9][0-9_]*\.[0-9_]*(?:[eE][+-]?[0-9_]+)?\b|\b\.[0-9][0-9_]*(?:[eE][+-]?[0-9_]+)?\b|\b[0-9][0-9_]*(?:[eE][+-]?[0-9_]+)?[iI]?\b`)
	identifierRe    = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	punctSpaceRe    = regexp.MustCompile(`\s*([^A-Za-z0-9_$\s])\s*`)
)

// Metrics are the auxiliary body metrics emitted alongside normalizedHash
// (§4.11 "Emit auxiliary metrics").
type Metrics struct {
	ParameterCount    int
	StatementCount    int
	MaxBraceNesting   int
	NonBlankLineCount int
	TokenCount        int
}

// Result is the output of Normalize: the content hash plus its metrics.
type Result struct {
	NormalizedHash string
	Metrics        Metrics
}

// Normalize runs the full §4.11 pipeline over a declaration's raw source
// body and returns its normalized hash and auxiliary metrics.
func Normalize(body string) Result {
	metrics := computeMetrics(body)

	text := stringLiteralRe.ReplaceAllLiteralString(body, "$STR")
	text = blockCommentRe.ReplaceAllString(text, "")
	text = lineCommentRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = numberRe.ReplaceAllLiteralString(text, "$NUM")
	text = normalizeIdentifiers(text)
	text = punctSpaceRe.ReplaceAllString(text, "$1")
	text = strings.TrimSpace(text)

	sum := sha256.Sum256([]byte(text))
	return Result{NormalizedHash: hex.EncodeToString(sum[:]), Metrics: metrics}
}

// normalizeIdentifiers replaces user identifiers with sequential $VAR_k
// placeholders, preserving the reserved set and assigning the same
// placeholder to repeated occurrences of the same identifier.
func normalizeIdentifiers(text string) string {
	assigned := map[string]string{}
	next := 0
	return identifierRe.ReplaceAllStringFunc(text, func(tok string) string {
		if reserved[tok] {
			return tok
		}
		if v, ok := assigned[tok]; ok {
			return v
		}
		placeholder := placeholderFor(next)
		assigned[tok] = placeholder
		next++
		return placeholder
	})
}

func placeholderFor(k int) string {
	return "$VAR_" + itoa(k)
}

func itoa(k int) string {
	if k == 0 {
		return "0"
	}
	var digits []byte
	for k > 0 {
		digits = append([]byte{byte('0' + k%10)}, digits...)
		k /= 10
	}
	return string(digits)
}

func computeMetrics(body string) Metrics {
	m := Metrics{}
	depth, maxDepth := 0, 0
	for _, r := range body {
		switch r {
		case '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	m.MaxBraceNesting = maxDepth

	lines := strings.Split(body, "\n")
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			m.NonBlankLineCount++
		}
	}

	m.StatementCount = strings.Count(body, ";") + strings.Count(body, "\n")
	m.TokenCount = len(identifierRe.FindAllString(body, -1)) + len(numberRe.FindAllString(body, -1))
	// Comma count is a cheap default; internal/parser overrides it with the
	// schema's exact Parameter-child count wherever one is declared.
	m.ParameterCount = strings.Count(body, ",")

	return m
}
