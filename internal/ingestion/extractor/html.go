package extractor

import (
	"bytes"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
)

var (
	noiseTags = []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button", "svg",
	}
	noiseClasses = []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "cookie", "cookies",
		"footer", "header", "breadcrumb", "share", "social", "newsletter",
	}
	mainSelectors = []string{"main", "article", "[role=main]"}
)

// htmlConverter renders saved web pages (hotel sites, PMS exports) as
// GitHub-flavored markdown, keeping tables such as rate cards readable.
type htmlConverter struct {
	conv *md.Converter
}

func newHTMLConverter() *htmlConverter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &htmlConverter{conv: conv}
}

func (c *htmlConverter) Convert(content []byte) (title string, markdown string, err error) {
	doc, perr := html.Parse(bytes.NewReader(content))
	var cleaned string
	if perr != nil {
		cleaned = styleRe.ReplaceAllString(scriptRe.ReplaceAllString(string(content), ""), "")
	} else {
		title = htmlTitle(doc)
		cleaned = mainContent(doc)
	}

	markdown, err = c.conv.ConvertString(cleaned)
	if err != nil {
		return "", "", err
	}
	if title == "" {
		title = markdownTitle(markdown)
	}
	return collapseWhitespace(title), markdown, nil
}

func htmlTitle(doc *html.Node) string {
	n := findElement(doc, "title")
	if n == nil || n.FirstChild == nil {
		return ""
	}
	return strings.TrimSpace(n.FirstChild.Data)
}

func mainContent(doc *html.Node) string {
	for _, sel := range mainSelectors {
		if n := findElement(doc, sel); n != nil {
			removeElements(n, noiseTags)
			return renderNode(n)
		}
	}
	removeElements(doc, noiseTags)
	removeByClass(doc, noiseClasses)
	if body := findElement(doc, "body"); body != nil {
		return renderNode(body)
	}
	return renderNode(doc)
}

func findElement(n *html.Node, selector string) *html.Node {
	if n.Type == html.ElementNode && matchesSelector(n, selector) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, selector); found != nil {
			return found
		}
	}
	return nil
}

// matchesSelector supports tag names and [attr=value].
func matchesSelector(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		key, val, ok := strings.Cut(selector[1:len(selector)-1], "=")
		if !ok {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

func removeElements(root *html.Node, tags []string) {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	removeMatching(root, func(n *html.Node) bool { return set[n.Data] })
}

func removeByClass(root *html.Node, classes []string) {
	set := make(map[string]bool, len(classes))
	for _, c := range classes {
		set[c] = true
	}
	removeMatching(root, func(n *html.Node) bool {
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(strings.ToLower(a.Val)) {
				if set[c] {
					return true
				}
			}
		}
		return false
	})
}

func removeMatching(root *html.Node, match func(*html.Node) bool) {
	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n != root && n.Type == html.ElementNode && match(n) {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func renderNode(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}
