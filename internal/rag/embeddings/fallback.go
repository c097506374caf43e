package embeddings

import (
	"crypto/md5"
	"strings"
)

// FallbackVector builds a deterministic vector from a hash of the text. It
// is used when the remote embedding path fails: same text always yields the
// same vector, different texts diverge with overwhelming probability, but
// the vector carries no semantic signal and callers must treat it as low
// quality.
//
// Construction: the MD5 digest bytes are repeated cyclically up to the
// target dimension and rescaled from [0,255] into [-1,1]; the first 26
// dimensions are then averaged with the text's a-z character frequencies;
// the result is L2-normalized.
func FallbackVector(text string, dimension int) []float32 {
	if dimension <= 0 {
		return nil
	}

	digest := md5.Sum([]byte(text))

	values := make([]float64, dimension)
	for i := range values {
		b := digest[i%len(digest)]
		values[i] = (float64(b) - 127.5) / 127.5
	}

	var letterCounts [26]float64
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			letterCounts[r-'a']++
		}
	}
	limit := 26
	if dimension < limit {
		limit = dimension
	}
	for i := 0; i < limit; i++ {
		values[i] = (values[i] + letterCounts[i]) / 2
	}

	vec := make([]float32, dimension)
	for i, v := range values {
		vec[i] = float32(v)
	}
	Normalize(vec)
	return vec
}
