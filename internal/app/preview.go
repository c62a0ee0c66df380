package app

import (
	"context"
	"errors"
	"log/slog"

	"quizflow-client/internal/domain"
)

// PreviewUploader sends a PDF to the preview endpoint and returns its rendered pages.
type PreviewUploader interface {
	UploadPreview(ctx context.Context, file domain.SourceFile) ([]domain.PreviewPage, error)
}

// PagePreviewSelector owns the upload -> preview step for PDF sources.
// Unlike submissions it never retries; the user re-invokes Preview instead.
type PagePreviewSelector struct {
	uploader PreviewUploader
	logger   *slog.Logger
}

func NewPagePreviewSelector(uploader PreviewUploader, logger *slog.Logger) *PagePreviewSelector {
	if logger == nil {
		logger = slog.Default()
	}
	return &PagePreviewSelector{uploader: uploader, logger: logger}
}

// Preview uploads the file once and returns a set with every page selected.
func (s *PagePreviewSelector) Preview(ctx context.Context, file domain.SourceFile) (domain.PreviewSet, error) {
	if !file.IsPDF() {
		return nil, domain.ErrNotPDF
	}
	pages, err := s.uploader.UploadPreview(ctx, file)
	if err != nil {
		s.logger.Error("pdf preview failed", "file", file.Name, "error", err)
		var upErr *domain.UploadError
		if errors.As(err, &upErr) {
			return nil, upErr
		}
		return nil, &domain.UploadError{Message: err.Error(), Cause: err}
	}
	set, err := domain.NewPreviewSet(pages)
	if err != nil {
		return nil, &domain.UploadError{Message: err.Error(), Cause: err}
	}
	s.logger.Info("pdf preview ready", "file", file.Name, "pages", len(set))
	return set, nil
}

type DialogStatus string

const (
	DialogLoading   DialogStatus = "loading"
	DialogReady     DialogStatus = "ready"
	DialogFailed    DialogStatus = "failed"
	DialogConfirmed DialogStatus = "confirmed"
	DialogDismissed DialogStatus = "dismissed"
)

// DismissOutcome tells the host what to do with its file after the dialog closes.
type DismissOutcome struct {
	// Discard is true when the file selection must revert to empty.
	Discard   bool
	Selection domain.SelectionResult
}

// PreviewDialog is the host-side state of one file's page-selection dialog.
type PreviewDialog struct {
	selector  *PagePreviewSelector
	file      domain.SourceFile
	status    DialogStatus
	pages     domain.PreviewSet
	err       error
	toggled   bool
	confirmed domain.SelectionResult
}

// Open starts a dialog for file and blocks while the preview loads.
func (s *PagePreviewSelector) Open(ctx context.Context, file domain.SourceFile) *PreviewDialog {
	d := &PreviewDialog{selector: s, file: file}
	d.load(ctx)
	return d
}

func (d *PreviewDialog) load(ctx context.Context) {
	d.status = DialogLoading
	d.pages, d.err = nil, nil
	pages, err := d.selector.Preview(ctx, d.file)
	if err != nil {
		d.status, d.err = DialogFailed, err
		return
	}
	d.status, d.pages, d.toggled = DialogReady, pages, false
}

// Retry re-uploads after a failed preview.
func (d *PreviewDialog) Retry(ctx context.Context) error {
	if d.status != DialogFailed {
		return nil
	}
	d.load(ctx)
	return d.err
}

func (d *PreviewDialog) Status() DialogStatus    { return d.status }
func (d *PreviewDialog) Pages() domain.PreviewSet { return d.pages }
func (d *PreviewDialog) Err() error               { return d.err }
func (d *PreviewDialog) File() domain.SourceFile  { return d.file }

func (d *PreviewDialog) Toggle(pageIndex int) error {
	if err := d.editable(); err != nil {
		return err
	}
	pages, err := d.pages.Toggle(pageIndex)
	if err != nil {
		return err
	}
	d.pages, d.toggled, d.status = pages, true, DialogReady
	return nil
}

func (d *PreviewDialog) SelectAll() error {
	if err := d.editable(); err != nil {
		return err
	}
	d.pages, d.toggled, d.status = d.pages.SelectAll(), true, DialogReady
	return nil
}

func (d *PreviewDialog) SelectNone() error {
	if err := d.editable(); err != nil {
		return err
	}
	d.pages, d.toggled, d.status = d.pages.SelectNone(), true, DialogReady
	return nil
}

// CanConfirm mirrors the confirm button's enabled state.
func (d *PreviewDialog) CanConfirm() bool {
	return (d.status == DialogReady || d.status == DialogConfirmed) && d.pages.CanConfirm()
}

func (d *PreviewDialog) Confirm() (domain.SelectionResult, error) {
	if err := d.editable(); err != nil {
		return nil, err
	}
	result, err := d.pages.Confirm()
	if err != nil {
		return nil, err
	}
	// the retained selection must not alias what the caller gets back
	d.confirmed, d.status = append(domain.SelectionResult(nil), result...), DialogConfirmed
	return result, nil
}

// Dismiss closes the dialog. The last confirmed selection survives; without
// one the host discards the file as if it had never been chosen.
func (d *PreviewDialog) Dismiss() DismissOutcome {
	d.status = DialogDismissed
	if d.confirmed != nil {
		return DismissOutcome{Selection: d.confirmed}
	}
	d.selector.logger.Info("pdf preview dismissed without selection", "file", d.file.Name, "toggled", d.toggled)
	return DismissOutcome{Discard: true}
}

func (d *PreviewDialog) editable() error {
	switch d.status {
	case DialogReady, DialogConfirmed:
		return nil
	case DialogFailed:
		return d.err
	default:
		return domain.ErrNoPreview
	}
}
