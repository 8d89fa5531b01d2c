package persona

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// FetchToC fetches url and extracts its heading text (h2-h6) in
// document order as a newline-joined "table of contents" string
// (§4.5 step 1). Fetch failures are returned as an error; callers
// ignore them silently per the spec ("Ignore fetch failures
// silently").
//
// Grounded on the pack's web_fetch tool shape
// (theRebelliousNerd-codenerd/internal/tools/research/web_fetch.go):
// net/http GET with a timeout and User-Agent, golang.org/x/net/html
// parse, walk the node tree.
func FetchToC(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; dartreport/1.0)")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{url: url, status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}

	var headings []string
	walkHeadings(doc, &headings)
	return strings.Join(headings, "\n"), nil
}

var headingTags = map[string]bool{
	"h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func walkHeadings(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode && headingTags[n.Data] {
		text := strings.TrimSpace(collectText(n))
		if text != "" {
			*out = append(*out, text)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHeadings(c, out)
	}
}

func collectText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return "persona: fetch " + e.url + ": unexpected status " + strconv.Itoa(e.status)
}
