package document

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/rescanio/rescan/internal/page"
)

// encryptPDF wraps a fixture in AES encryption so the locked-document
// paths run against real pdfcpu output.
func encryptPDF(t *testing.T, data []byte, password string) []byte {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	var buf bytes.Buffer
	if err := api.Encrypt(bytes.NewReader(data), &buf, conf); err != nil {
		t.Fatalf("encrypting fixture: %v", err)
	}
	return buf.Bytes()
}

func TestOpen_PlainDocument(t *testing.T) {
	bounds := []page.Bounds{
		{X0: 0, Y0: 0, X1: 595.28, Y1: 841.89},
		{X0: 0, Y0: 0, X1: 612, Y1: 792},
	}
	doc, err := Open(buildPDF(t, bounds))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer doc.Close()

	if doc.NeedsPassword() {
		t.Error("expected plain document to be unlocked")
	}
	if got := doc.PageCount(); got != 2 {
		t.Errorf("expected 2 pages, got %d", got)
	}

	img, err := doc.RenderImage(0, 72)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if img.Bounds().Dx() < 1 || img.Bounds().Dy() < 1 {
		t.Errorf("expected a non-empty raster, got %v", img.Bounds())
	}

	if _, err := doc.RenderImage(2, 72); err == nil {
		t.Error("expected out-of-range page index to error")
	}
}

func TestOpen_Garbage(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("not a pdf at all")} {
		doc, err := Open(data)
		if err == nil {
			doc.Close()
			t.Errorf("expected error for %q", data)
		}
	}
}

func TestOpen_EncryptedDocument(t *testing.T) {
	plain := buildPDF(t, []page.Bounds{{X0: 0, Y0: 0, X1: 612, Y1: 792}})
	doc, err := Open(encryptPDF(t, plain, "secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer doc.Close()

	if !doc.NeedsPassword() {
		t.Fatal("expected encrypted document to be locked")
	}
	if got := doc.PageCount(); got != 0 {
		t.Errorf("expected page count 0 while locked, got %d", got)
	}

	var perr *PasswordError
	if _, err := doc.RenderImage(0, 72); !errors.As(err, &perr) {
		t.Errorf("expected PasswordError from render, got %v", err)
	}
	if _, err := doc.ExtractBounds(); !errors.As(err, &perr) {
		t.Errorf("expected PasswordError from bounds extraction, got %v", err)
	}
}

func TestAuthenticate_WrongThenRightPassword(t *testing.T) {
	want := page.Bounds{X0: 0, Y0: 0, X1: 595.28, Y1: 841.89}
	plain := buildPDF(t, []page.Bounds{want})
	doc, err := Open(encryptPDF(t, plain, "secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer doc.Close()

	ok, err := doc.Authenticate("wrong")
	if err != nil {
		t.Fatalf("unexpected error on wrong password: %v", err)
	}
	if ok {
		t.Fatal("expected wrong password to be rejected")
	}
	if !doc.NeedsPassword() {
		t.Fatal("expected handle to stay locked after a failed attempt")
	}

	ok, err = doc.Authenticate("secret")
	if err != nil {
		t.Fatalf("unexpected error on correct password: %v", err)
	}
	if !ok {
		t.Fatal("expected correct password to unlock")
	}
	if doc.NeedsPassword() {
		t.Error("expected handle unlocked")
	}
	if got := doc.PageCount(); got != 1 {
		t.Errorf("expected 1 page, got %d", got)
	}

	results, err := doc.ExtractBounds()
	if err != nil {
		t.Fatalf("unexpected bounds error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Fallback {
		t.Errorf("unexpected fallback (%s)", results[0].Reason)
	}
	if results[0].Bounds.WidthPt() != want.WidthPt() || results[0].Bounds.HeightPt() != want.HeightPt() {
		t.Errorf("expected %vx%v, got %vx%v",
			want.WidthPt(), want.HeightPt(),
			results[0].Bounds.WidthPt(), results[0].Bounds.HeightPt())
	}

	if _, err := doc.RenderImage(0, 72); err != nil {
		t.Errorf("unexpected render error after unlock: %v", err)
	}
}

func TestAuthenticate_AlreadyUnlocked(t *testing.T) {
	doc, err := Open(buildPDF(t, []page.Bounds{{X0: 0, Y0: 0, X1: 612, Y1: 792}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer doc.Close()

	ok, err := doc.Authenticate("anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected authenticate on an unlocked document to succeed")
	}
}
