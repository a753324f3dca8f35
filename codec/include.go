package codec

import "github.com/dshills/embedbridge/core"

var includeOrder = []core.Include{
	core.IncludeDocuments,
	core.IncludeEmbeddings,
	core.IncludeMetadatas,
	core.IncludeDistances,
	core.IncludeURIs,
}

// DecodeInclude maps include tokens to an IncludeList in canonical order.
// Unknown tokens are ignored. A nil token list selects fallback.
func DecodeInclude(tokens []string, fallback core.IncludeList) core.IncludeList {
	if tokens == nil {
		return append(core.IncludeList(nil), fallback...)
	}
	requested := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		requested[t] = true
	}
	out := core.IncludeList{}
	for _, inc := range includeOrder {
		if requested[string(inc)] {
			out = append(out, inc)
		}
	}
	return out
}
