package scraper

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// Page is the input every extraction strategy works on.
type Page struct {
	Body []byte
	Doc  *goquery.Document // nil if the body could not be parsed as HTML
	Base *url.URL
}

// Candidate is a raw record pulled out of the page before validation.
type Candidate struct {
	Title string
	Href  string
	Date  string
}

// Strategy is one named way of locating announcements in the page.
// Strategies are pure: same page, same candidates.
type Strategy struct {
	Name    string
	Extract func(p *Page) []Candidate
}

var dateRe = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{4}\b|\b\d{4}-\d{2}-\d{2}\b`)

// DefaultStrategies returns the extraction chain in priority order.
// linkKeywords drives the last-resort anchor scan.
func DefaultStrategies(linkKeywords []string) []Strategy {
	return []Strategy{
		FeedStrategy(),
		SelectorStrategy("media",
			"div.media",
			".media-body h4 a, .media-body a[href]",
			".media-body .date, .media-body p.date, .media-body small"),
		SelectorStrategy("media-loose",
			"div.media",
			"h4 a, a[href]",
			".date, p.date, small"),
		SelectorStrategy("listing",
			"article, li.list-group-item, .news-item, .duyuru-item, div[class*='duyuru'], div[class*='listing-item']",
			"h2 a, h3 a, h4 a, h5 a, .title a, a[class*='title'], a[href]",
			"time, .date, span[class*='date'], small"),
		TableStrategy(),
		AnchorScanStrategy(linkKeywords),
	}
}

// SelectorStrategy matches every container and reads the first title link and
// the first date element inside it.
func SelectorStrategy(name, container, titleSel, dateSel string) Strategy {
	return Strategy{
		Name: name,
		Extract: func(p *Page) []Candidate {
			if p.Doc == nil {
				return nil
			}
			var out []Candidate
			p.Doc.Find(container).Each(func(_ int, s *goquery.Selection) {
				link := s.Find(titleSel).First()
				href, ok := link.Attr("href")
				if !ok {
					return
				}
				date := s.Find(dateSel).First()
				out = append(out, Candidate{
					Title: link.Text(),
					Href:  href,
					Date:  dateText(date),
				})
			})
			return out
		},
	}
}

// TableStrategy reads table rows holding a link and a date cell.
func TableStrategy() Strategy {
	return Strategy{
		Name: "table",
		Extract: func(p *Page) []Candidate {
			if p.Doc == nil {
				return nil
			}
			var out []Candidate
			p.Doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
				link := row.Find("a[href]").First()
				href, ok := link.Attr("href")
				if !ok {
					return
				}
				var date string
				row.Find("td").EachWithBreak(func(_ int, td *goquery.Selection) bool {
					date = dateRe.FindString(td.Text())
					return date == ""
				})
				out = append(out, Candidate{Title: link.Text(), Href: href, Date: date})
			})
			return out
		},
	}
}

// AnchorScanStrategy walks every anchor whose href contains one of the
// keywords, taking the date from the surrounding element's text.
func AnchorScanStrategy(keywords []string) Strategy {
	return Strategy{
		Name: "anchor-scan",
		Extract: func(p *Page) []Candidate {
			if len(keywords) == 0 {
				return nil
			}
			root, err := html.Parse(bytes.NewReader(p.Body))
			if err != nil {
				return nil
			}
			var out []Candidate
			var walk func(*html.Node)
			walk = func(n *html.Node) {
				if n.Type == html.ElementNode && n.Data == "a" {
					href := attr(n, "href")
					if href != "" && containsAny(strings.ToLower(href), keywords) {
						var date string
						if n.Parent != nil {
							date = dateRe.FindString(nodeText(n.Parent))
						}
						out = append(out, Candidate{Title: nodeText(n), Href: href, Date: date})
					}
					return
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walk(c)
				}
			}
			walk(root)
			return out
		},
	}
}

// FeedStrategy parses the page as RSS/Atom when it looks like a feed.
func FeedStrategy() Strategy {
	return Strategy{
		Name: "feed",
		Extract: func(p *Page) []Candidate {
			if !looksLikeFeed(p.Body) {
				return nil
			}
			feed, err := gofeed.NewParser().ParseString(string(p.Body))
			if err != nil {
				return nil
			}
			out := make([]Candidate, 0, len(feed.Items))
			for _, item := range feed.Items {
				date := item.Published
				if item.PublishedParsed != nil {
					date = item.PublishedParsed.Format("02.01.2006")
				}
				out = append(out, Candidate{Title: item.Title, Href: item.Link, Date: date})
			}
			return out
		},
	}
}

func looksLikeFeed(body []byte) bool {
	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	lower := bytes.ToLower(head)
	return bytes.Contains(lower, []byte("<rss")) || bytes.Contains(lower, []byte("<feed"))
}

func dateText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if dt, ok := s.Attr("datetime"); ok && dt != "" {
		return dt
	}
	return s.Text()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
