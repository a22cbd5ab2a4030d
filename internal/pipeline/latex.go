package pipeline

import (
	"bytes"
	"context"
	"os"

	"github.com/Norgate-AV/docrender/internal/cache"
)

const (
	latexInput  = "in.tex"
	latexOutput = "in.pdf"
)

// latex typesets the document in two passes. The draft pass only warms
// auxiliary files but must still succeed.
func (p *Pipelines) latex(ctx context.Context, in Input) (*Output, error) {
	scratch, err := p.stage(in, latexInput)
	if err != nil {
		return nil, err
	}

	var log bytes.Buffer

	for _, args := range [][]string{LaTeXDraftArgs(latexInput), LaTeXFinalArgs(latexInput)} {
		inv, err := p.builder.ExecuteCommand(ctx, scratch, "pdflatex", p.cfg.PdfLaTeX, args)
		log.Write(inv.Transcript())

		if err != nil {
			os.RemoveAll(scratch)
			return nil, err
		}
	}

	out, err := collect(cache.PDF, "pdflatex", scratch, latexOutput, log.Bytes())
	if err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}

	if err := p.validatePDF("pdflatex", out); err != nil {
		out.Close()
		return nil, err
	}

	return out, nil
}
