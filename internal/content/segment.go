package content

import "strings"

// Segment is one piece of formatted message content: plain Text, a Link or
// a Styled span wrapping further segments.
type Segment interface {
	segment()
}

// Text is literal text.
type Text string

// Link is a detected URL. Its display text is the URL itself.
type Link struct {
	URL string
}

type Style string

const (
	StyleBold   Style = "bold"
	StyleItalic Style = "italic"
	StyleCode   Style = "code"
)

// Styled is a span with a style applied to its children.
type Styled struct {
	Style    Style
	Children []Segment
}

func (Text) segment()   {}
func (Link) segment()   {}
func (Styled) segment() {}

// PlainText concatenates the visible text of segs, dropping all markup.
func PlainText(segs []Segment) string {
	var sb strings.Builder
	writePlain(&sb, segs)
	return sb.String()
}

func writePlain(sb *strings.Builder, segs []Segment) {
	for _, s := range segs {
		switch s := s.(type) {
		case Text:
			sb.WriteString(string(s))
		case Link:
			sb.WriteString(s.URL)
		case Styled:
			writePlain(sb, s.Children)
		}
	}
}

// transformText applies fn to every Text leaf of segs, descending into Styled
// children and leaving links alone. budget is shared across the whole walk.
func transformText(segs []Segment, budget *int, fn func(string, *int) []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		switch s := s.(type) {
		case Text:
			out = append(out, fn(string(s), budget)...)
		case Styled:
			out = append(out, Styled{Style: s.Style, Children: transformText(s.Children, budget, fn)})
		default:
			out = append(out, s)
		}
	}
	return out
}

// compact drops empty text leaves and merges adjacent ones.
func compact(segs []Segment) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		switch v := s.(type) {
		case Text:
			if v == "" {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(Text); ok {
					out[n-1] = prev + v
					continue
				}
			}
		case Styled:
			s = Styled{Style: v.Style, Children: compact(v.Children)}
		}
		out = append(out, s)
	}
	return out
}
