package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/Norgate-AV/docrender/internal/cache"
)

const (
	markdownInput  = "in.md"
	markdownOutput = "out.html"
)

// markdownPandoc converts the document to standalone HTML with pandoc
func (p *Pipelines) markdownPandoc(ctx context.Context, in Input) (*Output, error) {
	scratch, err := p.stage(in, markdownInput)
	if err != nil {
		return nil, err
	}

	inv, err := p.builder.ExecuteCommand(ctx, scratch, "pandoc", p.cfg.Pandoc, MarkdownArgs(markdownInput, markdownOutput))
	if err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}

	out, err := collect(cache.HTML, "pandoc", scratch, markdownOutput, inv.Transcript())
	if err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}

	return out, nil
}

var (
	markdownConverter     goldmark.Markdown
	markdownConverterOnce sync.Once
)

func getMarkdownConverter() goldmark.Markdown {
	markdownConverterOnce.Do(func() {
		markdownConverter = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
				extension.Footnote,
			),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		)
	})

	return markdownConverter
}

// markdownGoldmark converts the document to standalone HTML in process
func (p *Pipelines) markdownGoldmark(_ context.Context, in Input) (*Output, error) {
	scratch, err := p.stage(in, markdownInput)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(filepath.Join(scratch, markdownInput))
	if err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("failed to read staged markdown: %w", err)
	}

	var body bytes.Buffer
	if err := getMarkdownConverter().Convert(source, &body); err != nil {
		os.RemoveAll(scratch)
		return nil, &OutputError{Tool: EngineGoldmark, Output: markdownOutput, Err: err}
	}

	page := standaloneHTML(in.Meta.Title, body.Bytes())
	if err := os.WriteFile(filepath.Join(scratch, markdownOutput), page, 0o644); err != nil {
		os.RemoveAll(scratch)
		return nil, fmt.Errorf("failed to write html: %w", err)
	}

	return collect(cache.HTML, EngineGoldmark, scratch, markdownOutput, nil)
}

// standaloneHTML wraps an HTML fragment into a complete page
func standaloneHTML(title string, body []byte) []byte {
	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString("<meta charset=\"utf-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	b.WriteString("</head>\n<body>\n")
	b.Write(body)
	b.WriteString("</body>\n</html>\n")

	return b.Bytes()
}
