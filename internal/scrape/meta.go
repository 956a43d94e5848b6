// Package scrape extracts media URLs from provider HTML pages via their og:
// and twitter: meta tags.
package scrape

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/radialmonster/red-media-browser-sub000/generic"
)

// maxHTMLBody bounds how much of a page gets parsed; the tags of interest
// live in <head>.
const maxHTMLBody = 2 << 20

// MetaTags parses an HTML document and maps each meta tag's property/name
// attribute (lowercased) to its content. Attribute names match
// case-insensitively; the first occurrence of a key wins.
func MetaTags(r io.Reader) map[string]string {
	tags := make(map[string]string)
	doc, err := html.Parse(io.LimitReader(r, maxHTMLBody))
	if err != nil {
		return tags
	}
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, "meta") {
			var key, content string
			for _, a := range n.Attr {
				switch strings.ToLower(a.Key) {
				case "property", "name":
					key = strings.ToLower(a.Val)
				case "content":
					content = a.Val
				}
			}
			if key != "" && content != "" {
				if _, ok := tags[key]; !ok {
					tags[key] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return tags
}

// FirstMeta returns the first non-empty content among keys, in key order.
func FirstMeta(tags map[string]string, keys ...string) generic.Option[string] {
	for _, key := range keys {
		if v, ok := tags[key]; ok && v != "" {
			return generic.Some(v)
		}
	}
	return generic.None[string]()
}

// FirstAttr returns the value of attr on the first tag element in the
// document. Works on fragments too, e.g. an embed's iframe markup.
func FirstAttr(r io.Reader, tag string, attr string) generic.Option[string] {
	doc, err := html.Parse(io.LimitReader(r, maxHTMLBody))
	if err != nil {
		return generic.None[string]()
	}
	found := generic.None[string]()
	var f func(*html.Node)
	f = func(n *html.Node) {
		if found.IsSome() {
			return
		}
		if n.Type == html.ElementNode && strings.EqualFold(n.Data, tag) {
			for _, a := range n.Attr {
				if strings.EqualFold(a.Key, attr) && a.Val != "" {
					found = generic.Some(a.Val)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)
	return found
}
