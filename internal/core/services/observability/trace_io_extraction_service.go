package observability

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"brokle/internal/core/domain/observability"
)

// TraceIOIOPair is a {raw, text} pair for a trace's selected input or
// output: raw is the as-decoded payload (messages array, plain
// string, or nil), text is its flattened human-readable rendering.
type TraceIOIOPair struct {
	Raw  interface{}
	Text string
}

// traceIONode is one span positioned in a per-trace parent/child tree.
type traceIONode struct {
	span     *observability.NormalizedSpan
	children []*traceIONode
}

// excludedSpanTypes are never considered for trace-level input/output
// selection.
var excludedSpanTypes = map[string]bool{
	"evaluation": true,
	"guardrail":  true,
}

// traceIOCacheTTLEntries bounds the memoized tree-build cache; entries are
// keyed by trace id, and a cached tree is returned as-is even when a later
// call supplies a different span set for that trace id.
const traceIOCacheTTLEntries = 256

// TraceIOExtractionService builds a parent/child span tree per trace and
// selects the first meaningful input and last meaningful output, with
// framework-aware message coercion. It is synchronous: no
// suspension points.
type TraceIOExtractionService struct {
	treeCache *lru.Cache[string, []*traceIONode]
}

func NewTraceIOExtractionService() *TraceIOExtractionService {
	cache, _ := lru.New[string, []*traceIONode](traceIOCacheTTLEntries)
	return &TraceIOExtractionService{treeCache: cache}
}

// ExtractTraceIO computes trace-level input and output from a trace's
// canonicalized spans. spans need not be pre-sorted.
func (s *TraceIOExtractionService) ExtractTraceIO(traceID string, spans []*observability.NormalizedSpan) (input, output TraceIOIOPair) {
	roots := s.buildTree(traceID, spans)
	return s.firstInput(roots), s.lastOutput(roots)
}

// buildTree sorts spans by start time ascending (span id breaking ties),
// attaches each to its parent when present in the same set, and returns the
// root nodes. Results are memoized per trace
// id since a trace's span set is immutable once fully ingested.
func (s *TraceIOExtractionService) buildTree(traceID string, spans []*observability.NormalizedSpan) []*traceIONode {
	if cached, ok := s.treeCache.Get(traceID); ok {
		return cached
	}

	sorted := make([]*observability.NormalizedSpan, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartTimeUnixMs != sorted[j].StartTimeUnixMs {
			return sorted[i].StartTimeUnixMs < sorted[j].StartTimeUnixMs
		}
		return sorted[i].SpanID < sorted[j].SpanID
	})

	nodes := make(map[string]*traceIONode, len(sorted))
	for _, sp := range sorted {
		nodes[sp.SpanID] = &traceIONode{span: sp}
	}

	var roots []*traceIONode
	for _, sp := range sorted {
		node := nodes[sp.SpanID]
		if sp.ParentSpanID != nil && *sp.ParentSpanID != "" {
			if parent, ok := nodes[*sp.ParentSpanID]; ok {
				parent.children = append(parent.children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	s.treeCache.Add(traceID, roots)
	return roots
}

// flattenOutsideIn emits each node before its children (pre-order).
func flattenOutsideIn(roots []*traceIONode) []*traceIONode {
	var out []*traceIONode
	var visit func(n *traceIONode)
	visit = func(n *traceIONode) {
		out = append(out, n)
		for _, c := range n.children {
			visit(c)
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

// flattenInsideOut emits each node after its children (post-order).
func flattenInsideOut(roots []*traceIONode) []*traceIONode {
	var out []*traceIONode
	var visit func(n *traceIONode)
	visit = func(n *traceIONode) {
		for _, c := range n.children {
			visit(c)
		}
		out = append(out, n)
	}
	for _, r := range roots {
		visit(r)
	}
	return out
}

func isExcludedSpan(span *observability.NormalizedSpan) bool {
	v, ok := span.SpanAttributes.Get(observability.KeyLangWatchSpanType)
	if !ok {
		return false
	}
	typ, ok := v.StringValue()
	return ok && excludedSpanTypes[typ]
}

// firstInput traverses outside-in, skipping excluded spans, and returns the
// rich I/O of the first span with a non-null input.
func (s *TraceIOExtractionService) firstInput(roots []*traceIONode) TraceIOIOPair {
	for _, n := range flattenOutsideIn(roots) {
		if isExcludedSpan(n.span) {
			continue
		}
		if pair, ok := richIO(n.span, "input"); ok {
			return pair
		}
	}
	return fallbackInput(roots)
}

// fallbackInput picks the root span and renders "<http.method> <http.target>"
// if both are strings, else the root span's name.
func fallbackInput(roots []*traceIONode) TraceIOIOPair {
	root := firstRoot(roots)
	if root == nil {
		return TraceIOIOPair{}
	}
	method, hasMethod := getSpanAttrString(root.span, "http.method")
	target, hasTarget := getSpanAttrString(root.span, "http.target")
	if hasMethod && hasTarget {
		text := method + " " + target
		return TraceIOIOPair{Raw: text, Text: text}
	}
	return TraceIOIOPair{Raw: root.span.Name, Text: root.span.Name}
}

// lastOutput flattens inside-out, keeps spans with valid output, reverses;
// if exactly one top-level survivor remains, returns its output, otherwise
// picks the one with the largest endTimeUnixMs among all survivors.
func (s *TraceIOExtractionService) lastOutput(roots []*traceIONode) TraceIOIOPair {
	var survivors []*traceIONode
	for _, n := range flattenInsideOut(roots) {
		if isExcludedSpan(n.span) {
			continue
		}
		if _, ok := richIO(n.span, "output"); ok {
			survivors = append(survivors, n)
		}
	}
	if len(survivors) == 0 {
		return fallbackOutput(roots)
	}
	reverse(survivors)
	isRoot := make(map[*traceIONode]bool, len(roots))
	for _, r := range roots {
		isRoot[r] = true
	}
	var topLevel []*traceIONode
	for _, n := range survivors {
		if isRoot[n] {
			topLevel = append(topLevel, n)
		}
	}
	if len(topLevel) == 1 {
		pair, _ := richIO(topLevel[0].span, "output")
		return pair
	}

	best := survivors[0]
	for _, n := range survivors[1:] {
		if n.span.EndTimeUnixMs > best.span.EndTimeUnixMs {
			best = n
		}
	}
	pair, _ := richIO(best.span, "output")
	return pair
}

func reverse(nodes []*traceIONode) {
	for i, j := 0, len(nodes)-1; i < j; i, j = i+1, j-1 {
		nodes[i], nodes[j] = nodes[j], nodes[i]
	}
}

// fallbackOutput returns the root span's http.status_code as a string.
func fallbackOutput(roots []*traceIONode) TraceIOIOPair {
	root := firstRoot(roots)
	if root == nil {
		return TraceIOIOPair{}
	}
	v, ok := root.span.SpanAttributes.Get("http.status_code")
	if !ok {
		return TraceIOIOPair{}
	}
	text := attrValueToPlainString(v)
	if text == "" {
		return TraceIOIOPair{}
	}
	return TraceIOIOPair{Raw: text, Text: text}
}

func firstRoot(roots []*traceIONode) *traceIONode {
	if len(roots) == 0 {
		return nil
	}
	return roots[0]
}

// richIO reads a span's input or output in priority order: gen_ai messages
// (parsed and flattened to text) first, then langwatch.input/output (passed
// through if a plain string, else flattened).
func richIO(span *observability.NormalizedSpan, direction string) (TraceIOIOPair, bool) {
	genaiKey := observability.KeyGenAIInputMessages
	langwatchKey := observability.KeyLangWatchInput
	if direction == "output" {
		genaiKey = observability.KeyGenAIOutputMessages
		langwatchKey = observability.KeyLangWatchOutput
	}

	if v, ok := span.SpanAttributes.Get(genaiKey); ok {
		raw := attrValueToInterface(v)
		if parsed := parseIfJSONString(raw); parsed != nil {
			text := messagesToText(parsed)
			if text != "" {
				return TraceIOIOPair{Raw: parsed, Text: text}, true
			}
		}
	}

	if v, ok := span.SpanAttributes.Get(langwatchKey); ok {
		if s, ok := v.StringValue(); ok && v.Kind() == observability.AttributeKindString {
			if s != "" {
				return TraceIOIOPair{Raw: s, Text: s}, true
			}
		}
		raw := attrValueToInterface(v)
		parsed := parseIfJSONString(raw)
		if parsed == nil {
			parsed = raw
		}
		text := messagesToText(parsed)
		if text != "" {
			return TraceIOIOPair{Raw: parsed, Text: text}, true
		}
	}

	return TraceIOIOPair{}, false
}

func parseIfJSONString(v interface{}) interface{} {
	s, ok := v.(string)
	if !ok {
		return v
	}
	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil
	}
	return parsed
}

// messagesToText understands strings, arrays of messages, and message
// objects.
func messagesToText(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		var parts []string
		for _, el := range val {
			if t := messageToText(el); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]interface{}:
		return messageToText(val)
	default:
		return ""
	}
}

// messageToText renders one message object via extractMessageContent,
// falling back to top-level text/value fields.
func messageToText(v interface{}) string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		if s, ok := v.(string); ok {
			return s
		}
		return ""
	}
	if content, ok := obj["content"]; ok {
		if text := extractMessageContent(content); text != "" {
			return text
		}
	}
	if text, ok := obj["text"].(string); ok {
		return text
	}
	if value, ok := obj["value"].(string); ok {
		return value
	}
	return ""
}

// extractMessageContent: content may be a string, or an array whose
// elements are strings or {type:"text", text} / {text} (Anthropic/Strands)
// or {type:"image_url", ...} (skipped).
func extractMessageContent(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var parts []string
		for _, el := range v {
			if s, ok := el.(string); ok {
				parts = append(parts, s)
				continue
			}
			obj, ok := el.(map[string]interface{})
			if !ok {
				continue
			}
			if typ, _ := obj["type"].(string); typ == "image_url" {
				continue
			}
			if text, ok := obj["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
		}
		return strings.Join(parts, "\n")
	default:
		return ""
	}
}

func getSpanAttrString(span *observability.NormalizedSpan, key string) (string, bool) {
	v, ok := span.SpanAttributes.Get(key)
	if !ok {
		return "", false
	}
	return v.StringValue()
}

func attrValueToInterface(v observability.AttributeValue) interface{} {
	switch v.Kind() {
	case observability.AttributeKindString:
		s, _ := v.StringValue()
		return s
	case observability.AttributeKindJSON:
		raw, _ := v.StringValue()
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			return parsed
		}
		return raw
	case observability.AttributeKindBool:
		b, _ := v.BoolValue()
		return b
	case observability.AttributeKindInt:
		i, _ := v.IntValue()
		return i
	case observability.AttributeKindDouble:
		d, _ := v.DoubleValue()
		return d
	case observability.AttributeKindArray:
		arr, _ := v.ArrayValue()
		out := make([]interface{}, len(arr))
		for i, el := range arr {
			out[i] = attrValueToInterface(el)
		}
		return out
	default:
		return nil
	}
}

func attrValueToPlainString(v observability.AttributeValue) string {
	switch v.Kind() {
	case observability.AttributeKindString:
		s, _ := v.StringValue()
		return s
	case observability.AttributeKindInt:
		i, _ := v.IntValue()
		return strconv.FormatInt(i, 10)
	case observability.AttributeKindDouble:
		d, _ := v.DoubleValue()
		return strconv.FormatFloat(d, 'g', -1, 64)
	case observability.AttributeKindBool:
		b, _ := v.BoolValue()
		return strconv.FormatBool(b)
	default:
		return ""
	}
}
