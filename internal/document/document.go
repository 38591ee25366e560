// Package document wraps the external PDF collaborators behind one handle:
// pdfcpu for encryption handling and page count, ledongthuc/pdf for per-page
// geometry, go-fitz (MuPDF) for rasterization. The rest of the pipeline only
// sees the operations defined here.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rescanio/rescan/internal/page"
)

// Document is an opaque handle over one decoded PDF. It is exclusively owned
// by a single processing session; concurrent renders on the same handle are
// serialized internally because MuPDF page cursors are not reentrant.
type Document struct {
	mu sync.Mutex

	raw   []byte // bytes as uploaded
	plain []byte // decrypted bytes (same slice as raw when unencrypted)

	fz        *fitz.Document
	pageCount int

	needsPassword bool
	closed        bool
}

// Open parses data and returns a handle. If the document is protected by a
// user password, the handle is returned with NeedsPassword set and every
// page operation fails with PasswordError until Authenticate succeeds.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: errors.New("empty document")}
	}

	ctx, err := readValidated(data, model.NewDefaultConfiguration())
	if err != nil {
		if isPasswordErr(err) {
			return &Document{raw: data, needsPassword: true}, nil
		}
		return nil, &DecodeError{Err: err}
	}
	if ctx.PageCount < 1 {
		return nil, &DecodeError{Err: errors.New("document reports no pages")}
	}

	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("open renderer: %w", err)}
	}

	return &Document{
		raw:       data,
		plain:     data,
		fz:        fz,
		pageCount: ctx.PageCount,
	}, nil
}

// NeedsPassword reports whether the document is still locked.
func (d *Document) NeedsPassword() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.needsPassword
}

// Authenticate attempts to unlock the document. A wrong password returns
// (false, nil) and leaves the handle intact for another attempt.
func (d *Document) Authenticate(password string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false, &DecodeError{Err: errors.New("document closed")}
	}
	if !d.needsPassword {
		return true, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	var buf bytes.Buffer
	if err := api.Decrypt(bytes.NewReader(d.raw), &buf, conf); err != nil {
		if isPasswordErr(err) {
			return false, nil
		}
		return false, &PasswordError{Err: err}
	}
	plain := buf.Bytes()

	ctx, err := readValidated(plain, model.NewDefaultConfiguration())
	if err != nil {
		return false, &DecodeError{Err: fmt.Errorf("read decrypted document: %w", err)}
	}
	if ctx.PageCount < 1 {
		return false, &DecodeError{Err: errors.New("decrypted document reports no pages")}
	}
	fz, err := fitz.NewFromMemory(plain)
	if err != nil {
		return false, &DecodeError{Err: fmt.Errorf("open renderer: %w", err)}
	}

	d.plain = plain
	d.fz = fz
	d.pageCount = ctx.PageCount
	d.needsPassword = false
	return true, nil
}

// PageCount returns the number of pages, or 0 while the document is locked.
func (d *Document) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pageCount
}

// RenderImage rasterizes one page at the given DPI. The raw collaborator
// call; scaling policy lives in the render package.
func (d *Document) RenderImage(pageIndex int, dpi float64) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, &DecodeError{Err: errors.New("document closed")}
	}
	if d.needsPassword {
		return nil, &PasswordError{Err: errors.New("document is locked")}
	}
	if pageIndex < 0 || pageIndex >= d.pageCount {
		return nil, fmt.Errorf("page index %d out of range [0,%d)", pageIndex, d.pageCount)
	}
	return d.fz.ImageDPI(pageIndex, dpi)
}

// Close releases the renderer. The handle is unusable afterwards.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.fz != nil {
		return d.fz.Close()
	}
	return nil
}

// PlainBytes returns the decrypted document bytes for read-only use by the
// bounds extractor. Nil while locked.
func (d *Document) PlainBytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.needsPassword {
		return nil
	}
	return d.plain
}

// ExtractBounds reads each page's MediaBox, in page order. Per-page failures
// degrade to the A4 fallback; only a locked or closed document is fatal.
func (d *Document) ExtractBounds() ([]page.BoundsResult, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, &DecodeError{Err: errors.New("document closed")}
	}
	if d.needsPassword {
		d.mu.Unlock()
		return nil, &PasswordError{Err: errors.New("document is locked")}
	}
	data := d.plain
	count := d.pageCount
	d.mu.Unlock()

	return extractAllBounds(data, count), nil
}

// readValidated parses and validates a document. pdfcpu only fills in
// ctx.PageCount during validation, so a bare ReadContext is not enough.
func readValidated(data []byte, conf *model.Configuration) (*model.Context, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

func isPasswordErr(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "password")
}
