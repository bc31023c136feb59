// Package extract turns saved web pages into plain text so they can be merged
// with the .txt files of a corpus.
package extract

import (
    "bytes"
    "fmt"
    "strings"

    "golang.org/x/net/html"
)

// Document is the readable part of an HTML page.
type Document struct {
    Title string
    Text  string
}

// String renders the document as merge input: the title on its own line
// followed by a blank line and the text.
func (d Document) String() string {
    switch {
    case d.Title == "":
        return d.Text
    case d.Text == "":
        return d.Title
    }
    return d.Title + "\n\n" + d.Text
}

var skipTags = map[string]bool{
    "script": true, "style": true, "noscript": true, "template": true,
    "nav": true, "footer": true, "aside": true, "iframe": true,
    "form": true, "button": true, "svg": true,
}

var blockTags = map[string]bool{
    "p": true, "div": true, "section": true, "blockquote": true, "tr": true,
    "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
    "table": true, "dl": true, "dt": true, "dd": true, "figcaption": true,
}

var boilerplateMarkers = []string{"cookie", "consent", "gdpr", "newsletter", "share-buttons", "advert"}

// FromHTML extracts readable text, preferring <main> or <article> and
// falling back to <body>. Block elements become paragraphs, list items and
// line breaks become lines, and pre blocks keep their whitespace.
func FromHTML(input []byte) (Document, error) {
    root, err := html.Parse(bytes.NewReader(input))
    if err != nil {
        return Document{}, fmt.Errorf("parse html: %w", err)
    }
    var doc Document
    if head := findFirst(root, "head"); head != nil {
        if t := findFirst(head, "title"); t != nil {
            doc.Title = collapseSpaces(strings.TrimSpace(textOf(t)))
        }
    }
    content := findFirst(root, "main")
    if content == nil {
        content = findFirst(root, "article")
    }
    if content == nil {
        content = findFirst(root, "body")
    }
    if content != nil {
        var b strings.Builder
        walk(&b, content, false)
        doc.Text = normalizeWhitespace(b.String())
    }
    return doc, nil
}

func findFirst(n *html.Node, tag string) *html.Node {
    if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
        return n
    }
    for c := n.FirstChild; c != nil; c = c.NextSibling {
        if found := findFirst(c, tag); found != nil {
            return found
        }
    }
    return nil
}

func textOf(n *html.Node) string {
    var b strings.Builder
    for c := n.FirstChild; c != nil; c = c.NextSibling {
        if c.Type == html.TextNode {
            b.WriteString(c.Data)
        }
    }
    return b.String()
}

func walk(b *strings.Builder, n *html.Node, inPre bool) {
    switch n.Type {
    case html.TextNode:
        data := n.Data
        if !inPre {
            data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
        }
        b.WriteString(data)
        return
    case html.ElementNode:
    default:
        for c := n.FirstChild; c != nil; c = c.NextSibling {
            walk(b, c, inPre)
        }
        return
    }

    name := strings.ToLower(n.Data)
    if skipTags[name] || isBoilerplate(n) {
        return
    }
    switch {
    case name == "br":
        b.WriteString("\n")
        return
    case name == "pre":
        inPre = true
        b.WriteString("\n\n")
    case name == "li":
        b.WriteString("\n")
    case blockTags[name]:
        b.WriteString("\n\n")
    }
    for c := n.FirstChild; c != nil; c = c.NextSibling {
        walk(b, c, inPre)
    }
    if name == "pre" || blockTags[name] {
        b.WriteString("\n\n")
    }
}

// isBoilerplate reports elements whose id, class or role mark them as
// consent banners, share widgets or ads.
func isBoilerplate(n *html.Node) bool {
    for _, attr := range n.Attr {
        key := strings.ToLower(attr.Key)
        if key != "id" && key != "class" && key != "role" && key != "aria-label" {
            continue
        }
        val := strings.ToLower(attr.Val)
        for _, m := range boilerplateMarkers {
            if strings.Contains(val, m) {
                return true
            }
        }
    }
    return false
}

// normalizeWhitespace trims every line, collapses runs of spaces and keeps at
// most one blank line between paragraphs.
func normalizeWhitespace(s string) string {
    lines := strings.Split(s, "\n")
    out := make([]string, 0, len(lines))
    for _, line := range lines {
        trimmed := strings.TrimSpace(line)
        if trimmed == "" {
            if len(out) == 0 || out[len(out)-1] == "" {
                continue
            }
            out = append(out, "")
            continue
        }
        out = append(out, collapseSpaces(trimmed))
    }
    for len(out) > 0 && out[len(out)-1] == "" {
        out = out[:len(out)-1]
    }
    return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
    var b strings.Builder
    lastSpace := false
    for _, r := range s {
        if r == ' ' || r == '\t' || r == '\u00a0' {
            if !lastSpace {
                b.WriteByte(' ')
                lastSpace = true
            }
            continue
        }
        b.WriteRune(r)
        lastSpace = false
    }
    return b.String()
}
