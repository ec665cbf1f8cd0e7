package document

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind identifies a layout block.
type BlockKind int

const (
	BlockParagraph BlockKind = iota
	BlockHeading
	BlockListItem
	BlockCode
	BlockQuote
	BlockRule
)

// Block is one unit of document layout. Inline markup is flattened to plain
// text.
type Block struct {
	Kind   BlockKind
	Level  int    // heading level, 1..6
	Depth  int    // list nesting, 0 for top level
	Marker string // "-" or "3." for list items
	Text   string
}

// Parse splits an itinerary body into layout blocks. Leading indentation
// shared by every line is removed first, so bodies pasted from indented
// source text are not mistaken for code blocks.
func Parse(body string) []Block {
	source := []byte(Dedent(body))
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []Block
	walkBlocks(doc, source, &blocks, 0)
	return blocks
}

func walkBlocks(node ast.Node, source []byte, out *[]Block, quote int) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		addBlock(c, source, out, quote)
	}
}

func addBlock(node ast.Node, source []byte, out *[]Block, quote int) {
	switch n := node.(type) {
	case *ast.Heading:
		*out = append(*out, Block{Kind: BlockHeading, Level: n.Level, Text: inlineText(n, source)})

	case *ast.Paragraph, *ast.TextBlock:
		kind := BlockParagraph
		if quote > 0 {
			kind = BlockQuote
		}
		if t := inlineText(n, source); t != "" {
			*out = append(*out, Block{Kind: kind, Text: t})
		}

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		*out = append(*out, Block{Kind: BlockCode, Text: rawLines(n, source)})

	case *ast.List:
		addList(n, source, out, 0)

	case *ast.ThematicBreak:
		*out = append(*out, Block{Kind: BlockRule})

	case *ast.Blockquote:
		walkBlocks(n, source, out, quote+1)

	case *ast.HTMLBlock:
		if t := strings.TrimSpace(rawLines(n, source)); t != "" {
			*out = append(*out, Block{Kind: BlockParagraph, Text: t})
		}

	default:
		walkBlocks(node, source, out, quote)
	}
}

func addList(list *ast.List, source []byte, out *[]Block, depth int) {
	num := list.Start
	for c := list.FirstChild(); c != nil; c = c.NextSibling() {
		item, ok := c.(*ast.ListItem)
		if !ok {
			continue
		}
		marker := "-"
		if list.IsOrdered() {
			marker = strconv.Itoa(num) + "."
			num++
		}

		var parts []string
		flush := func() {
			if len(parts) > 0 {
				*out = append(*out, Block{Kind: BlockListItem, Depth: depth, Marker: marker, Text: strings.Join(parts, " ")})
				parts = nil
				marker = ""
			}
		}
		for ic := item.FirstChild(); ic != nil; ic = ic.NextSibling() {
			switch in := ic.(type) {
			case *ast.Paragraph, *ast.TextBlock:
				parts = append(parts, inlineText(in, source))
			case *ast.List:
				flush()
				addList(in, source, out, depth+1)
			default:
				flush()
				addBlock(ic, source, out, 0)
			}
		}
		flush()
	}
}

func inlineText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		writeInline(c, source, &buf)
	}
	return strings.TrimSpace(buf.String())
}

func writeInline(node ast.Node, source []byte, buf *bytes.Buffer) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() {
			buf.WriteByte(' ')
		}
		if n.HardLineBreak() {
			buf.WriteByte('\n')
		}
	case *ast.String:
		buf.Write(n.Value)
	case *ast.Link:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			writeInline(c, source, buf)
		}
		if dest := string(n.Destination); dest != "" {
			buf.WriteString(" (" + dest + ")")
		}
	case *ast.AutoLink:
		buf.Write(n.URL(source))
	case *ast.RawHTML:
		// dropped
	default:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			writeInline(c, source, buf)
		}
	}
}

func rawLines(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// Dedent removes the longest run of leading spaces or tabs common to every
// non-blank line.
func Dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	if prefix == "" {
		return strings.Join(lines, "\n")
	}
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
