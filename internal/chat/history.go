package chat

import "github.com/tddg/qwen-code/internal/genai"

// CuratedHistory computes the subset of comprehensive history that is safe
// to resend to the model. User turns pass through unchanged. Each maximal
// run of consecutive model turns is kept only if every turn in it is
// content-valid; an invalid run is dropped together with the user turn
// immediately preceding it, so a request that produced no usable output
// does not leave an orphaned user turn behind. The function is pure and
// idempotent.
func CuratedHistory(comprehensive []*genai.Content) []*genai.Content {
	var curated []*genai.Content
	i := 0
	for i < len(comprehensive) {
		c := comprehensive[i]
		if c == nil {
			i++
			continue
		}
		if c.Role != genai.RoleModel {
			curated = append(curated, c)
			i++
			continue
		}

		valid := true
		j := i
		for j < len(comprehensive) && comprehensive[j] != nil && comprehensive[j].Role == genai.RoleModel {
			if !comprehensive[j].IsValid() {
				valid = false
			}
			j++
		}

		if valid {
			curated = append(curated, comprehensive[i:j]...)
		} else if len(curated) > 0 && curated[len(curated)-1].Role == genai.RoleUser {
			curated = curated[:len(curated)-1]
		}
		i = j
	}
	return curated
}

// consolidateModelTurns merges adjacent model turns that are both pure
// text into a single turn, avoiding history fragmentation from multi-step
// tool-calling subroutines.
func consolidateModelTurns(turns []*genai.Content) []*genai.Content {
	var out []*genai.Content
	for _, t := range turns {
		if t == nil {
			continue
		}
		if len(out) > 0 {
			last := out[len(out)-1]
			if last.IsTextOnly() && t.IsTextOnly() {
				out[len(out)-1] = genai.NewModelContent(genai.NewTextPart(last.Text() + t.Text()))
				continue
			}
		}
		out = append(out, t)
	}
	return out
}
