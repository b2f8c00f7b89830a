// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package grobid

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	"github.com/pdiddy/workflow-miner/pkg/types"
)

// TEINamespace is the namespace of GROBID's TEI output. Paths below use
// unprefixed tags, which etree matches in any namespace.
const TEINamespace = "http://www.tei-c.org/ns/1.0"

const (
	authorSep    = "; "
	paragraphSep = "\n\n"
)

// ErrEmptyDocument is returned when the TEI response has no root element.
var ErrEmptyDocument = errors.New("TEI document has no root element")

// ErrJunkAfterRoot is returned when content follows the root element.
var ErrJunkAfterRoot = errors.New("TEI document has junk after the root element")

// ParseTEI extracts paper content from a GROBID TEI document. filename is
// the PDF base name; its stem is the title when the document has none.
func ParseTEI(data []byte, filename string) (types.PaperContent, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return types.PaperContent{}, fmt.Errorf("parsing TEI: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return types.PaperContent{}, ErrEmptyDocument
	}
	if err := checkSingleRoot(doc); err != nil {
		return types.PaperContent{}, err
	}

	title := ""
	if el := root.FindElement(".//titleStmt/title"); el != nil {
		title = strings.TrimSpace(el.Text())
	}
	if title == "" {
		title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}

	return types.PaperContent{
		Filename:       filename,
		Title:          title,
		Authors:        strings.Join(authors(root), authorSep),
		Abstract:       abstract(root),
		FullText:       strings.Join(bodyDivisions(root), paragraphSep),
		FigureCaptions: strings.Join(captions(root, false), paragraphSep),
		TableCaptions:  strings.Join(captions(root, true), paragraphSep),
	}, nil
}

// authors returns "forename surname" for every author in the source
// description that has a persName with at least one of the two.
func authors(root *etree.Element) []string {
	var names []string
	for _, author := range root.FindElements(".//sourceDesc//author") {
		pers := author.FindElement(".//persName")
		if pers == nil {
			continue
		}
		var parts []string
		if el := pers.FindElement("./forename"); el != nil && el.Text() != "" {
			parts = append(parts, el.Text())
		}
		if el := pers.FindElement("./surname"); el != nil && el.Text() != "" {
			parts = append(parts, el.Text())
		}
		if len(parts) > 0 {
			names = append(names, strings.Join(parts, " "))
		}
	}
	return names
}

func abstract(root *etree.Element) string {
	el := root.FindElement(".//profileDesc/abstract")
	if el == nil {
		return ""
	}
	return allText(el)
}

// bodyDivisions returns the text of every div in the body, skipping empty ones.
func bodyDivisions(root *etree.Element) []string {
	body := root.FindElement(".//text/body")
	if body == nil {
		return nil
	}
	var parts []string
	for _, div := range body.FindElements(".//div") {
		if text := allText(div); text != "" {
			parts = append(parts, text)
		}
	}
	return parts
}

// captions returns "head figDesc" for each table figure (tables true) or
// each non-table figure (tables false).
func captions(root *etree.Element, tables bool) []string {
	var out []string
	for _, fig := range root.FindElements(".//figure") {
		if (fig.SelectAttrValue("type", "") == "table") != tables {
			continue
		}
		var parts []string
		if head := fig.FindElement("./head"); head != nil && head.Text() != "" {
			parts = append(parts, strings.TrimSpace(head.Text()))
		}
		if desc := fig.FindElement("./figDesc"); desc != nil {
			if text := allText(desc); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, " "))
		}
	}
	return out
}

// allText joins every text node under el, in document order, with single
// spaces and trims the result.
func allText(el *etree.Element) string {
	var chunks []string
	collectText(el, &chunks)
	return strings.TrimSpace(strings.Join(chunks, " "))
}

func collectText(el *etree.Element, chunks *[]string) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			*chunks = append(*chunks, t.Data)
		case *etree.Element:
			collectText(t, chunks)
		}
	}
}

// checkSingleRoot rejects a second top-level element or text outside the
// root element.
func checkSingleRoot(doc *etree.Document) error {
	elements := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			elements++
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return ErrJunkAfterRoot
			}
		}
	}
	if elements > 1 {
		return ErrJunkAfterRoot
	}
	return nil
}
