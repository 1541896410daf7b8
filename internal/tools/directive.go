package tools

import "strings"

// DirectiveKind classifies a model reply.
type DirectiveKind int

const (
	// PlainReply carries no tool request.
	PlainReply DirectiveKind = iota
	// SearchDirective asks for a web search: [SEARCH: query]
	SearchDirective
	// FetchDirective asks for a page fetch: [FETCH: url]
	FetchDirective
)

func (k DirectiveKind) String() string {
	switch k {
	case SearchDirective:
		return "search"
	case FetchDirective:
		return "fetch"
	default:
		return "plain"
	}
}

const (
	searchMarker = "[SEARCH:"
	fetchMarker  = "[FETCH:"
)

// Directive is the parsed form of a model reply. Before and After hold the
// narrative text around the marker, trimmed.
type Directive struct {
	Kind   DirectiveKind
	Arg    string
	Before string
	After  string
}

// Preamble joins the narrative text surrounding the directive marker.
func (d Directive) Preamble() string {
	switch {
	case d.Before == "":
		return d.After
	case d.After == "":
		return d.Before
	default:
		return d.Before + "\n" + d.After
	}
}

// ParseDirective classifies reply. A closed search marker wins over any
// fetch marker, even when its argument is blank; a reply whose search
// markers are all blank is a plain reply. A marker without a closing
// bracket or with an empty argument is ignored.
func ParseDirective(reply string) Directive {
	if d, ok := scanMarker(reply, searchMarker); ok {
		d.Kind = SearchDirective
		return d
	}
	if hasClosedMarker(reply, searchMarker) {
		return Directive{Kind: PlainReply}
	}
	if d, ok := scanMarker(reply, fetchMarker); ok {
		d.Kind = FetchDirective
		return d
	}
	return Directive{Kind: PlainReply}
}

// scanMarker finds the first occurrence of marker whose bracket closes
// around a non-blank argument.
func scanMarker(text, marker string) (Directive, bool) {
	offset := 0
	for {
		idx := strings.Index(text[offset:], marker)
		if idx < 0 {
			return Directive{}, false
		}
		start := offset + idx
		argStart := start + len(marker)

		end := strings.IndexByte(text[argStart:], ']')
		if end < 0 {
			return Directive{}, false
		}
		argEnd := argStart + end

		if arg := strings.TrimSpace(text[argStart:argEnd]); arg != "" {
			return Directive{
				Arg:    arg,
				Before: strings.TrimSpace(text[:start]),
				After:  strings.TrimSpace(text[argEnd+1:]),
			}, true
		}
		offset = argEnd + 1
	}
}

func hasClosedMarker(text, marker string) bool {
	idx := strings.Index(text, marker)
	return idx >= 0 && strings.IndexByte(text[idx+len(marker):], ']') >= 0
}
