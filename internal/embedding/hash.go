package embedding

import (
	"math"
	"strings"
)

// HashEmbed is the offline fallback: a bag-of-characters hash over word
// tokens, L2-normalized so scores stay comparable with hosted vectors.
// Identical input always yields a bit-identical vector.
func HashEmbed(text string, dim int) Vector {
	if dim <= 0 {
		dim = DefaultDimension
	}
	acc := make([]float64, dim)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordChar(r)
	})
	for i, tok := range tokens {
		// Tokens are ASCII only, so bytes are character codes.
		for j := 0; j < len(tok); j++ {
			acc[(int(tok[j])+i*j)%dim]++
		}
	}

	var sum float64
	for _, v := range acc {
		sum += v * v
	}
	out := make(Vector, dim)
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// isWordChar matches the \w class: ASCII letters, digits and underscore.
func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
