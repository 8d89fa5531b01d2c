package domain

import (
	"strings"
)

// OutlineNode is one heading in the outline tree. Level follows Markdown
// leading-# counting: 1 is "#", up to 4 ("####"). Children are nested
// subheadings in document order.
type OutlineNode struct {
	Heading  string
	Level    int
	Children []*OutlineNode
}

// Outline is the root of the heading tree produced by Stage 3. The root
// itself carries no heading text; TopLevel returns its direct children,
// which are the "#"-level sections Stage 4a drafts against.
type Outline struct {
	Root *OutlineNode
}

// NewOutline returns an empty outline with a synthetic, heading-less
// root node.
func NewOutline() *Outline {
	return &Outline{Root: &OutlineNode{Level: 0}}
}

// TopLevel returns the outline's top-level ("#") sections in document
// order.
func (o *Outline) TopLevel() []*OutlineNode {
	if o == nil || o.Root == nil {
		return nil
	}
	return o.Root.Children
}

// Walk visits every node in the tree, depth-first, pre-order, including
// the root's children but not the synthetic root itself.
func (o *Outline) Walk(visit func(n *OutlineNode)) {
	if o == nil || o.Root == nil {
		return
	}
	var walk func(n *OutlineNode)
	walk = func(n *OutlineNode) {
		for _, c := range n.Children {
			visit(c)
			walk(c)
		}
	}
	walk(o.Root)
}

// Headings returns every heading text in the tree, depth-first,
// pre-order. Used to check that polishing never drops a heading (§3
// invariant: "Headings in the polished article are a superset of the
// refined outline's headings").
func (o *Outline) Headings() []string {
	var out []string
	o.Walk(func(n *OutlineNode) { out = append(out, n.Heading) })
	return out
}

// ParseOutline parses Markdown heading lines ("#".."####") into an
// Outline tree by leading-# counting. Lines that do not match a
// heading are discarded, matching the OutlineGenerator contract in
// §4.7: "Lines not matching a heading are discarded."
//
// Levels deeper than 4 are clamped to 4; a line with more than 4 '#'
// characters followed by a space is still treated as a level-4 heading,
// since the prompt contract only ever asks the model for "#".."####".
func ParseOutline(markdown string) *Outline {
	o := NewOutline()
	// path[i] is the most recently seen node at level i+1.
	path := make([]*OutlineNode, 4)

	for _, line := range strings.Split(markdown, "\n") {
		level, heading, ok := parseHeadingLine(line)
		if !ok {
			continue
		}
		if level > 4 {
			level = 4
		}
		node := &OutlineNode{Heading: heading, Level: level}

		var parent *OutlineNode
		if level == 1 {
			parent = o.Root
		} else {
			parent = path[level-2]
			if parent == nil {
				// No ancestor observed; attach directly under root
				// rather than dropping the heading.
				parent = o.Root
			}
		}
		parent.Children = append(parent.Children, node)
		path[level-1] = node
		for i := level; i < 4; i++ {
			path[i] = nil
		}
	}
	return o
}

// parseHeadingLine reports the heading level (count of leading '#') and
// trimmed heading text of a single Markdown line, or ok=false if the
// line is not a heading.
func parseHeadingLine(line string) (level int, heading string, ok bool) {
	trimmed := strings.TrimRight(line, "\r")
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i == 0 || i > len(trimmed) {
		return 0, "", false
	}
	rest := trimmed[i:]
	if rest != "" && !strings.HasPrefix(rest, " ") {
		// "##heading" with no space is not a valid ATX heading.
		return 0, "", false
	}
	heading = strings.TrimSpace(rest)
	if heading == "" {
		return 0, "", false
	}
	return i, heading, true
}

// Render reproduces the outline as Markdown, one heading per line,
// "#" repeated Level times. ParseOutline(Render(o)) must reconstruct an
// equivalent tree (the round-trip/idempotence property in §8).
func (o *Outline) Render() string {
	var b strings.Builder
	var walk func(n *OutlineNode)
	walk = func(n *OutlineNode) {
		for _, c := range n.Children {
			b.WriteString(strings.Repeat("#", c.Level))
			b.WriteString(" ")
			b.WriteString(c.Heading)
			b.WriteString("\n")
			walk(c)
		}
	}
	walk(o.Root)
	return strings.TrimRight(b.String(), "\n")
}

// NormalizeHeading lowercases and trims a heading for case-insensitive
// comparisons such as the lead/conclusion skip-list in §4.8.
func NormalizeHeading(heading string) string {
	return strings.ToLower(strings.TrimSpace(heading))
}

var skippedTopLevelHeadings = map[string]struct{}{
	"introduction": {},
	"conclusion":   {},
	"summary":      {},
}

// IsSkippedSection reports whether a top-level heading is one of the
// reserved names the ArticleGenerator skips because the lead is
// generated separately during polishing.
func IsSkippedSection(heading string) bool {
	_, skip := skippedTopLevelHeadings[NormalizeHeading(heading)]
	return skip
}
