package pipeline

import (
	"context"
	"os"

	"github.com/Norgate-AV/docrender/internal/cache"
)

const (
	xournalInput  = "in.xopp"
	xournalOutput = "out.pdf"
)

// xournal exports a notebook to PDF
func (p *Pipelines) xournal(ctx context.Context, in Input) (*Output, error) {
	scratch, err := p.stage(in, xournalInput)
	if err != nil {
		return nil, err
	}

	inv, err := p.builder.ExecuteCommand(ctx, scratch, "xournalpp", p.cfg.Xournalpp, XournalArgs(xournalInput, xournalOutput))
	if err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}

	out, err := collect(cache.PDF, "xournalpp", scratch, xournalOutput, inv.Transcript())
	if err != nil {
		os.RemoveAll(scratch)
		return nil, err
	}

	if err := p.validatePDF("xournalpp", out); err != nil {
		out.Close()
		return nil, err
	}

	return out, nil
}
