package observability

import (
	"encoding/json"
	"strings"

	"brokle/pkg/utils"
)

// extractChunkTextualContent recursively reduces a RAG context chunk (string,
// JSON-encoded string, array, or object) down to the plain text used to
// derive a deterministic document id.
func extractChunkTextualContent(x interface{}) string {
	switch v := x.(type) {
	case string:
		var parsed interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return strings.TrimSpace(v)
		}
		return extractChunkTextualContent(parsed)
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, el := range v {
			text := extractChunkTextualContent(el)
			if text != "" {
				parts = append(parts, text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n"))
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// documentIDForContent derives the deterministic RAG document id: the
// lowercase hex MD5 of the chunk's extracted textual content.
func documentIDForContent(content interface{}) string {
	text := extractChunkTextualContent(content)
	id, err := utils.HashString(text, utils.AlgorithmMD5)
	if err != nil {
		return ""
	}
	return id
}

type ragContextEntry struct {
	DocumentID string      `json:"document_id,omitempty"`
	Content    interface{} `json:"content"`
}

// enrichRAGContextIDs rewrites a langwatch.rag.contexts JSON array to carry a
// document_id on every entry, computing it from the entry's content when
// every entry in the array currently lacks one. It
// returns the (possibly unchanged) JSON string and whether it rewrote
// anything.
func enrichRAGContextIDs(raw string) (string, bool) {
	var arr []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return raw, false
	}
	if len(arr) == 0 {
		return raw, false
	}

	for _, entry := range arr {
		if id, ok := entry["document_id"]; ok && id != nil && id != "" {
			return raw, false
		}
	}

	out := make([]ragContextEntry, 0, len(arr))
	for _, entry := range arr {
		out = append(out, ragContextEntry{
			DocumentID: documentIDForContent(entry["content"]),
			Content:    entry["content"],
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return raw, false
	}
	return string(b), true
}
