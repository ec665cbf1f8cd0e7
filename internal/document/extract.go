package document

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/ledongthuc/pdf"
)

// ExtractText reads back the text of a PDF, one line per text row.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := pageRows(p)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			sb.WriteString(row)
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

type textRun struct {
	x, y float64
	s    string
}

// pageRows walks the page content stream and groups shown strings by
// baseline, top to bottom. Identity-H fonts carry UTF-16BE code units,
// which is how fpdf writes embedded TrueType text.
func pageRows(p pdf.Page) (rows []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	var (
		runs       []textRun
		decode     = func(s string) string { return s }
		lineX      float64
		lineY      float64
		fontDecode = map[string]func(string) string{}
	)
	show := func(s string) {
		if t := decode(s); t != "" {
			runs = append(runs, textRun{x: lineX, y: lineY, s: t})
		}
	}

	pdf.Interpret(p.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		switch op {
		case "BT":
			lineX, lineY = 0, 0
		case "Tf":
			if len(args) != 2 {
				return
			}
			name := args[0].Name()
			d, ok := fontDecode[name]
			if !ok {
				d = fontDecoder(p.Font(name))
				fontDecode[name] = d
			}
			decode = d
		case "Td", "TD":
			if len(args) == 2 {
				lineX += args[0].Float64()
				lineY += args[1].Float64()
			}
		case "Tm":
			if len(args) == 6 {
				lineX, lineY = args[4].Float64(), args[5].Float64()
			}
		case "Tj", "'":
			if len(args) == 1 {
				show(args[0].RawString())
			}
		case "\"":
			if len(args) == 3 {
				show(args[2].RawString())
			}
		case "TJ":
			if len(args) == 1 {
				for i := 0; i < args[0].Len(); i++ {
					if v := args[0].Index(i); v.Kind() == pdf.String {
						show(v.RawString())
					}
				}
			}
		}
	})

	sort.SliceStable(runs, func(i, j int) bool {
		if int64(runs[i].y) != int64(runs[j].y) {
			return runs[i].y > runs[j].y
		}
		return runs[i].x < runs[j].x
	})
	var (
		cur  strings.Builder
		curY int64
	)
	for i, r := range runs {
		if i > 0 && int64(r.y) != curY {
			rows = append(rows, cur.String())
			cur.Reset()
		}
		curY = int64(r.y)
		cur.WriteString(r.s)
	}
	if cur.Len() > 0 {
		rows = append(rows, cur.String())
	}
	return rows, nil
}

// fontDecoder picks how shown strings map to text. A font whose ToUnicode
// CMap is the single identity range uses code points as CIDs, so the raw
// bytes are UTF-16BE.
func fontDecoder(font pdf.Font) func(string) string {
	if font.V.Key("Encoding").Name() == "Identity-H" && identityCMap(font.V.Key("ToUnicode")) {
		return decodeUTF16BE
	}
	return font.Encoder().Decode
}

func identityCMap(v pdf.Value) bool {
	if v.Kind() != pdf.Stream {
		return false
	}
	rc := v.Reader()
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return false
	}
	cmap := string(data)
	return strings.Contains(cmap, "1 beginbfrange\n<0000> <FFFF> <0000>")
}

func decodeUTF16BE(s string) string {
	units := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		units = append(units, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(units))
}
