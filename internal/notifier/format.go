package notifier

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/mfenderov/duyuru-watch/pkg/models"
	"github.com/microcosm-cc/bluemonday"
)

// TelegramMaxLength is the Bot API limit for one message text.
const TelegramMaxLength = 4096

// Messages holds the user-facing texts. Header, footer and alert texts may
// contain Telegram HTML markup; announcement fields are always escaped.
type Messages struct {
	NewHeader  string
	ListHeader string // %d is replaced by the item count
	LinkText   string
	Footer     string
	Empty      string
	Welcome    string
	Help       string
	Alert      string
}

// Formatter renders announcements as Telegram HTML messages.
type Formatter struct {
	msgs      Messages
	maxLength int
	policy    *bluemonday.Policy
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithMaxLength overrides the per-message length limit in characters.
func WithMaxLength(n int) FormatterOption {
	return func(f *Formatter) { f.maxLength = n }
}

// NewFormatter creates a Formatter.
func NewFormatter(msgs Messages, opts ...FormatterOption) *Formatter {
	f := &Formatter{
		msgs:      msgs,
		maxLength: TelegramMaxLength,
		policy:    bluemonday.StrictPolicy(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Messages returns the texts the formatter was built with.
func (f *Formatter) Messages() Messages {
	return f.msgs
}

// NewAnnouncements merges all unseen announcements into one message. When the
// result exceeds the length limit it is split at item boundaries; numbering
// continues across parts and only the last part carries the footer.
func (f *Formatter) NewAnnouncements(items []models.Announcement) []string {
	if len(items) == 0 {
		return nil
	}

	first := f.msgs.NewHeader + "\n\n" + f.listHeader(len(items)) + "\n\n"
	next := f.msgs.NewHeader + "\n\n"

	var (
		out     []string
		b       strings.Builder
		headLen = utf8.RuneCountInString(first)
		footLen = utf8.RuneCountInString(f.msgs.Footer)
	)
	b.WriteString(first)
	size := headLen
	budget := f.maxLength - headLen - footLen

	for i, a := range items {
		block := f.fitItem(i+1, a, budget)
		blockLen := utf8.RuneCountInString(block)
		if size > headLen && size+blockLen+footLen > f.maxLength {
			out = append(out, strings.TrimRight(b.String(), "\n"))
			b.Reset()
			b.WriteString(next)
			headLen = utf8.RuneCountInString(next)
			size = headLen
		}
		b.WriteString(block)
		size += blockLen
	}
	b.WriteString(f.msgs.Footer)
	return append(out, b.String())
}

// List renders the given announcements as a "latest N" reply.
func (f *Formatter) List(items []models.Announcement) string {
	if len(items) == 0 {
		return f.msgs.Empty
	}
	var b strings.Builder
	b.WriteString(f.listHeader(len(items)))
	b.WriteString("\n\n")
	for i, a := range items {
		b.WriteString(f.item(i+1, a))
	}
	b.WriteString(f.msgs.Footer)
	return b.String()
}

// Alert renders an operational failure notice. Error text is not markup,
// so it is escaped verbatim rather than sanitized.
func (f *Formatter) Alert(err error) string {
	return f.msgs.Alert + "\n\nHata: " + html.EscapeString(err.Error())
}

func (f *Formatter) listHeader(n int) string {
	if strings.Contains(f.msgs.ListHeader, "%d") {
		return fmt.Sprintf(f.msgs.ListHeader, n)
	}
	return f.msgs.ListHeader
}

func (f *Formatter) item(n int, a models.Announcement) string {
	return fmt.Sprintf("%d. <b>%s</b>\n📅 %s\n🔗 <a href=\"%s\">%s</a>\n\n",
		n, f.escape(a.Title), f.escape(a.Date), html.EscapeString(a.Link), f.msgs.LinkText)
}

// fitItem renders an item within budget runes by shortening its title. A
// link that alone exceeds the budget is left as is.
func (f *Formatter) fitItem(n int, a models.Announcement, budget int) string {
	block := f.item(n, a)
	title := []rune(a.Title)
	for {
		excess := utf8.RuneCountInString(block) - budget
		if excess <= 0 || len(title) == 0 {
			return block
		}
		title = title[:max(0, len(title)-excess-1)]
		a.Title = strings.TrimSpace(string(title)) + "…"
		block = f.item(n, a)
	}
}

// escape strips any markup from scraped text and escapes what remains, so
// titles cannot break Telegram's HTML parser.
func (f *Formatter) escape(s string) string {
	return strings.TrimSpace(f.policy.Sanitize(s))
}
