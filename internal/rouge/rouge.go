// Package rouge computes ROUGE-N and ROUGE-L overlap between a candidate
// summary and a reference.
package rouge

import (
	"strings"
	"unicode"
)

// Score is one ROUGE measure.
type Score struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F         float64 `json:"f"`
}

// Scores holds the three measures reported per summary.
type Scores struct {
	Rouge1 Score `json:"rouge1"`
	Rouge2 Score `json:"rouge2"`
	RougeL Score `json:"rougeL"`
}

// Compute scores candidate against reference.
func Compute(candidate, reference string) Scores {
	c, r := Tokenize(candidate), Tokenize(reference)
	return Scores{
		Rouge1: N(c, r, 1),
		Rouge2: N(c, r, 2),
		RougeL: L(c, r),
	}
}

// Tokenize lower-cases text and splits it on anything that is not a
// letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// N is ROUGE-N over token slices, with clipped n-gram counts.
func N(candidate, reference []string, n int) Score {
	cg, rg := ngrams(candidate, n), ngrams(reference, n)
	var cTotal, rTotal, overlap int
	for _, v := range cg {
		cTotal += v
	}
	for g, v := range rg {
		rTotal += v
		overlap += min(v, cg[g])
	}
	return measure(overlap, cTotal, rTotal)
}

// L is ROUGE-L: longest common subsequence over token slices.
func L(candidate, reference []string) Score {
	return measure(lcs(candidate, reference), len(candidate), len(reference))
}

func measure(overlap, cTotal, rTotal int) Score {
	if overlap == 0 || cTotal == 0 || rTotal == 0 {
		return Score{}
	}
	p := float64(overlap) / float64(cTotal)
	r := float64(overlap) / float64(rTotal)
	return Score{Precision: p, Recall: r, F: 2 * p * r / (p + r)}
}

func ngrams(tokens []string, n int) map[string]int {
	out := map[string]int{}
	for i := 0; i+n <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+n], "\x00")]++
	}
	return out
}

func lcs(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				cur[j+1] = prev[j] + 1
			} else {
				cur[j+1] = max(prev[j+1], cur[j])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
