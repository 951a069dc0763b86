package tui

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma"
	"github.com/alecthomas/chroma/formatters"
	"github.com/alecthomas/chroma/lexers"
	"github.com/alecthomas/chroma/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// Pre-compiled regex patterns for better performance
var (
	codeBlockRegex = regexp.MustCompile(`(?s)<pre><code(?: class="language-([a-zA-Z0-9]+)")?>(.*?)</code></pre>`)
	h1Regex        = regexp.MustCompile(`<h1 id="[^"]*">(.*?)</h1>`)
	h2Regex        = regexp.MustCompile(`<h2 id="[^"]*">(.*?)</h2>`)
	h3Regex        = regexp.MustCompile(`<h3 id="[^"]*">(.*?)</h3>`)
	strongRegex    = regexp.MustCompile(`<strong>(.*?)</strong>`)
	emRegex        = regexp.MustCompile(`<em>(.*?)</em>`)
	linkRegex      = regexp.MustCompile(`<a href="([^"]*)">(.*?)</a>`)
	blockquoteRe   = regexp.MustCompile(`(?s)<blockquote>(.*?)</blockquote>`)
	ulRegex        = regexp.MustCompile(`(?s)<ul>(.*?)</ul>`)
	olRegex        = regexp.MustCompile(`(?s)<ol>(.*?)</ol>`)
	liRegex        = regexp.MustCompile(`<li>(.*?)</li>`)
	htmlTagRegex   = regexp.MustCompile(`<[^>]+>`)
	multiNewline   = regexp.MustCompile(`\n{3,}`)
	inlineCodeRe   = regexp.MustCompile(`<code>([^<]+)</code>`)
	citationRegex  = regexp.MustCompile(`\[(\d{1,3})\]`)
)

// MarkdownRenderer renders report markdown for the terminal, highlighting
// inline [n] citations so they stand out against the reference list at the
// bottom of the report.
type MarkdownRenderer struct {
	goldmark.Markdown
	formatter chroma.Formatter
	style     *chroma.Style
	theme     Theme
}

func NewMarkdownRenderer(theme Theme) *MarkdownRenderer {
	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
		goldmark.WithExtensions(
			extension.GFM,
		),
	)

	return &MarkdownRenderer{
		Markdown:  md,
		formatter: formatters.Get("terminal256"),
		style:     styles.Get("dracula"),
		theme:     theme,
	}
}

// Render renders markdown content to terminal format.
func (r *MarkdownRenderer) Render(content string, width int) string {
	var buf bytes.Buffer

	if err := r.Convert([]byte(content), &buf); err != nil {
		return content
	}

	return r.formatForTerminal(buf.String(), width)
}

func (r *MarkdownRenderer) formatForTerminal(htmlContent string, width int) string {
	result := htmlContent
	t := r.theme

	// Extract and process code blocks first so later passes cannot touch
	// their contents.
	var codeBlocks []string
	result = codeBlockRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := codeBlockRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}

		lang := matches[1]
		code := r.decodeHTMLEntities(matches[2])
		highlighted := r.RenderCodeBlock(code, lang)

		codeWidth := width - 8
		if codeWidth < 20 {
			codeWidth = 20
		}

		styled := lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Width(codeWidth).
			Render(highlighted)

		index := len(codeBlocks)
		codeBlocks = append(codeBlocks, styled)
		return fmt.Sprintf("\n{{CODE_BLOCK_%d}}\n", index)
	})

	// Inline code
	result = inlineCodeRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := inlineCodeRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		code := r.decodeHTMLEntities(matches[1])
		return lipgloss.NewStyle().
			Foreground(t.Accent2).
			Render(code)
	})

	// Inline citations, before header/list styling introduces escape codes
	// of its own.
	citeStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	result = citationRegex.ReplaceAllStringFunc(result, func(m string) string {
		return citeStyle.Render(m)
	})

	// Headers
	result = h1Regex.ReplaceAllStringFunc(result, func(m string) string {
		matches := h1Regex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Accent).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(t.Border).
			Width(width - 4).
			Render(matches[1]) + "\n"
	})

	result = h2Regex.ReplaceAllStringFunc(result, func(m string) string {
		matches := h2Regex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Accent2).
			Width(width - 4).
			Render(matches[1]) + "\n"
	})

	result = h3Regex.ReplaceAllStringFunc(result, func(m string) string {
		matches := h3Regex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(t.TextPrimary).
			Width(width - 4).
			Render(matches[1]) + "\n"
	})

	// Bold
	result = strongRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := strongRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Bold(true).
			Foreground(t.TextPrimary).
			Render(matches[1])
	})

	// Italic
	result = emRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := emRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		return lipgloss.NewStyle().
			Italic(true).
			Foreground(t.TextMuted).
			Render(matches[1])
	})

	// Links; sources in the reference list render as "text (url)".
	result = linkRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := linkRegex.FindStringSubmatch(m)
		if len(matches) < 3 {
			return m
		}
		if matches[1] == matches[2] {
			return lipgloss.NewStyle().
				Foreground(t.Accent).
				Underline(true).
				Render(matches[1])
		}
		return lipgloss.NewStyle().
			Foreground(t.Accent).
			Underline(true).
			Render(fmt.Sprintf("%s (%s)", matches[2], matches[1]))
	})

	// Blockquotes
	result = blockquoteRe.ReplaceAllStringFunc(result, func(m string) string {
		matches := blockquoteRe.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		content := strings.TrimSpace(matches[1])
		content = htmlTagRegex.ReplaceAllString(content, "")
		return lipgloss.NewStyle().
			Foreground(t.TextMuted).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(t.Accent).
			PaddingLeft(2).
			Width(width - 4).
			Render(content) + "\n"
	})

	// Unordered lists
	bulletStyle := lipgloss.NewStyle().Foreground(t.Accent)
	result = ulRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := ulRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		items := liRegex.FindAllStringSubmatch(matches[1], -1)
		var list strings.Builder
		for _, item := range items {
			if len(item) >= 2 {
				itemContent := htmlTagRegex.ReplaceAllString(item[1], "")
				list.WriteString(bulletStyle.Render("  • "))
				list.WriteString(itemContent)
				list.WriteString("\n")
			}
		}
		return list.String()
	})

	// Ordered lists
	numberStyle := lipgloss.NewStyle().Foreground(t.Accent2).Bold(true)
	result = olRegex.ReplaceAllStringFunc(result, func(m string) string {
		matches := olRegex.FindStringSubmatch(m)
		if len(matches) < 2 {
			return m
		}
		items := liRegex.FindAllStringSubmatch(matches[1], -1)
		var list strings.Builder
		for i, item := range items {
			if len(item) >= 2 {
				itemContent := htmlTagRegex.ReplaceAllString(item[1], "")
				list.WriteString(numberStyle.Render(fmt.Sprintf("  %d. ", i+1)))
				list.WriteString(itemContent)
				list.WriteString("\n")
			}
		}
		return list.String()
	})

	// Paragraphs and line breaks
	result = strings.ReplaceAll(result, "<p>", "")
	result = strings.ReplaceAll(result, "</p>", "\n")
	result = strings.ReplaceAll(result, "<br>", "\n")
	result = strings.ReplaceAll(result, "<br/>", "\n")
	result = strings.ReplaceAll(result, "<br />", "\n")

	// Restore code blocks
	for i, codeBlock := range codeBlocks {
		result = strings.ReplaceAll(result, fmt.Sprintf("{{CODE_BLOCK_%d}}", i), codeBlock)
	}

	// Clean up any remaining HTML tags
	result = htmlTagRegex.ReplaceAllString(result, "")

	result = r.decodeHTMLEntities(result)

	result = multiNewline.ReplaceAllString(result, "\n\n")
	result = strings.TrimSpace(result)

	return result
}

func (r *MarkdownRenderer) decodeHTMLEntities(s string) string {
	replacements := []struct {
		old string
		new string
	}{
		{"&amp;", "&"},
		{"&lt;", "<"},
		{"&gt;", ">"},
		{"&quot;", "\""},
		{"&#39;", "'"},
		{"&nbsp;", " "},
		{"&hellip;", "..."},
		{"&#x27;", "'"},
		{"&#x60;", "`"},
	}

	for _, r := range replacements {
		s = strings.ReplaceAll(s, r.old, r.new)
	}
	return s
}

// RenderCodeBlock renders a fenced code block with syntax highlighting.
func (r *MarkdownRenderer) RenderCodeBlock(code, lang string) string {
	var buf bytes.Buffer

	var lexer chroma.Lexer
	if lang != "" {
		lexer = lexers.Get(lang)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	if err := r.formatter.Format(&buf, r.style, iterator); err != nil {
		return code
	}

	return strings.TrimRight(buf.String(), "\n")
}
