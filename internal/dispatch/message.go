package dispatch

import (
	"fmt"
	"strconv"
	"strings"

	"VideoScanner/internal/domain"
)

var categoryEmoji = map[domain.Category]string{
	domain.CategoryOfficialTrailer: "🎬",
	domain.CategoryTrailer:         "🎬",
	domain.CategoryTeaser:          "📽️",
	domain.CategorySong:            "🎵",
	domain.CategoryEvent:           "🎉",
	domain.CategoryNews:            "📰",
	domain.CategoryInterview:       "🎤",
}

// markdownEscaper escapes the characters legacy Telegram Markdown treats as markup.
var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

const markdownSpecials = "_*`["

// MessageOptions customise the channel message.
type MessageOptions struct {
	Label    string
	Hashtags []string
}

// FormatMessage renders an item as a Telegram Markdown post.
func FormatMessage(item domain.ContentItem, opts MessageOptions) string {
	emoji, ok := categoryEmoji[item.Category]
	if !ok {
		emoji = "📺"
	}

	priority := item.Priority
	if priority < domain.MinPriority {
		priority = domain.MinPriority
	}
	if priority > domain.MaxPriority {
		priority = domain.MaxPriority
	}

	header := fmt.Sprintf("%s *%s*", emoji, strings.ToUpper(strings.ReplaceAll(string(item.Category), "_", " ")))
	if opts.Label != "" {
		header += " | " + markdownEscaper.Replace(opts.Label)
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s Priority: %d/5\n\n", strings.Repeat("⭐", priority), priority)
	fmt.Fprintf(&b, "🎭 %s\n\n", bold(item.Title))
	fmt.Fprintf(&b, "📺 %s\n", markdownEscaper.Replace(item.SourceName))
	fmt.Fprintf(&b, "👀 Views: %s\n\n", groupThousands(item.Metrics.Views))
	fmt.Fprintf(&b, "🔗 [Watch Now](%s)", item.URL)

	tags := make([]string, 0, len(opts.Hashtags)+1)
	for _, tag := range opts.Hashtags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		if tag != "" {
			tags = append(tags, "#"+tag)
		}
	}
	tags = append(tags, "#"+categoryTag(item.Category))
	b.WriteString("\n\n")
	b.WriteString(markdownEscaper.Replace(strings.Join(tags, " ")))

	return b.String()
}

// bold wraps text in bold entities. Escapes are not allowed inside an entity,
// so markup characters close the run and are escaped between two entities.
func bold(text string) string {
	var b, run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			b.WriteString("*" + run.String() + "*")
			run.Reset()
		}
	}
	for _, r := range text {
		if strings.ContainsRune(markdownSpecials, r) {
			flush()
			b.WriteString("\\" + string(r))
			continue
		}
		run.WriteRune(r)
	}
	flush()
	return b.String()
}

func categoryTag(c domain.Category) string {
	parts := strings.Split(string(c), "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, "")
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
