package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfConfigOnce sync.Once

// validatePDF checks that a produced PDF parses and has at least one page
func (p *Pipelines) validatePDF(tool string, out *Output) error {
	if !p.cfg.ValidatePDF {
		return nil
	}

	// Keep pdfcpu from writing its config into the user's home
	pdfConfigOnce.Do(func() { model.ConfigPath = "disable" })

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.ValidateFile(out.Path, conf); err != nil {
		return &OutputError{Tool: tool, Output: "pdf", Err: fmt.Errorf("invalid pdf: %w", err)}
	}

	pages, err := api.PageCountFile(out.Path)
	if err != nil {
		return &OutputError{Tool: tool, Output: "pdf", Err: fmt.Errorf("unreadable pdf: %w", err)}
	}

	if pages < 1 {
		return &OutputError{Tool: tool, Output: "pdf", Err: errors.New("pdf has no pages")}
	}

	p.logger.Debug("validated pdf", "tool", tool, "pages", pages)

	return nil
}
