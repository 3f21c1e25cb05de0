// Package canonicalize implements the multi-vendor attribute canonicalizer:
// an ordered pipeline of vendor-specific extractors that consume a mutable
// per-span attribute/event bag and emit canonical gen_ai.*/langwatch.*
// attributes, with strict collision and precedence rules.
package canonicalize

import (
	"brokle/internal/core/domain/observability"
)

// SpanView is the mutable span-level surface an extractor may rewrite.
// Extractors read/write through it instead of holding a *NormalizedSpan
// directly, keeping the contract narrow and explicit.
type SpanView struct {
	span *observability.NormalizedSpan
}

func newSpanView(span *observability.NormalizedSpan) *SpanView {
	return &SpanView{span: span}
}

func (v *SpanView) Name() string          { return v.span.Name }
func (v *SpanView) SetName(name string)   { v.span.Name = name }
func (v *SpanView) Kind() uint8           { return v.span.Kind }
func (v *SpanView) SetKind(kind uint8)    { v.span.Kind = kind }
func (v *SpanView) ParentSpanID() *string { return v.span.ParentSpanID }
func (v *SpanView) StatusCode() *int      { return v.span.StatusCode }
func (v *SpanView) SetStatusCode(code int) {
	v.span.StatusCode = &code
}
func (v *SpanView) StatusMessage() *string { return v.span.StatusMessage }
func (v *SpanView) SetStatusMessage(msg string) {
	v.span.StatusMessage = &msg
}
func (v *SpanView) InstrumentationScopeName() string {
	return v.span.InstrumentationScope.Name
}

// ExtractorContext is the read/write surface passed to each extractor's
// Apply call: the remaining-attribute bag, the write-only canonical output
// map, a mutable span view, and a rule-trace recorder.
type ExtractorContext struct {
	Bag  *observability.SpanDataBag
	Out  *observability.AttributeMap
	Span *SpanView

	rules []string
}

func NewExtractorContext(bag *observability.SpanDataBag, span *observability.NormalizedSpan) *ExtractorContext {
	return &ExtractorContext{
		Bag:  bag,
		Out:  observability.NewAttributeMap(),
		Span: newSpanView(span),
	}
}

// RecordRule appends a rule-trace marker naming the extractor that fired,
// for observability and tests.
func (c *ExtractorContext) RecordRule(id string) {
	c.rules = append(c.rules, id)
}

// AppliedRules returns the rule-trace markers recorded so far, in firing order.
func (c *ExtractorContext) AppliedRules() []string {
	out := make([]string, len(c.rules))
	copy(out, c.rules)
	return out
}

// SetAttr coerces value to an AttributeValue and writes it to the output
// map, overwriting any prior value under key. A value that coerces to null
// is a no-op; an empty string is still written.
func (c *ExtractorContext) SetAttr(key string, value interface{}) {
	av := ToAttributeValue(value)
	if av.IsNull() {
		return
	}
	c.Out.Set(key, av)
}

// SetAttrRaw writes an already-constructed AttributeValue, overwriting any
// prior value under key.
func (c *ExtractorContext) SetAttrRaw(key string, value observability.AttributeValue) {
	if value.IsNull() {
		return
	}
	c.Out.Set(key, value)
}

// SetAttrIfAbsent writes only when key is present in neither the remaining
// bag nor the output map.
func (c *ExtractorContext) SetAttrIfAbsent(key string, value interface{}) {
	if c.Bag.Has(key) {
		return
	}
	if _, ok := c.Out.Get(key); ok {
		return
	}
	c.SetAttr(key, value)
}

// AppendValueType records "<key>=<type>" into langwatch.reserved.value_types,
// accumulating across extractor invocations.
func (c *ExtractorContext) AppendValueType(key, valueType string) {
	entry := key + "=" + valueType
	existing, ok := c.Out.Get(observability.KeyLangWatchReservedValueTypes)
	var arr []observability.AttributeValue
	if ok {
		if existingArr, isArr := existing.ArrayValue(); isArr {
			arr = existingArr
		}
	} else if v, ok := c.Bag.Get(observability.KeyLangWatchReservedValueTypes); ok {
		if existingArr, isArr := v.ArrayValue(); isArr {
			arr = append(arr, existingArr...)
		}
	}
	for _, v := range arr {
		if s, isStr := v.StringValue(); isStr && s == entry {
			c.Out.Set(observability.KeyLangWatchReservedValueTypes, observability.ArrayAttribute(arr))
			return
		}
	}
	arr = append(arr, observability.StringAttribute(entry))
	c.Out.Set(observability.KeyLangWatchReservedValueTypes, observability.ArrayAttribute(arr))
}

// Extractor is a vendor/framework-specific canonicalization rule module.
// Implementations must not panic; an error aborts the
// span's canonicalization.
type Extractor interface {
	ID() string
	Apply(ctx *ExtractorContext) error
}
