// Package export builds the output PDF: one image-filled page per processed
// page, each sized exactly to the original's physical bounds in points. Pixel
// dimensions never influence page geometry here.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/rescanio/rescan/internal/page"
)

// Error means a page could not be embedded after both PNG and JPEG attempts.
// It aborts the whole export; no partial PDF is ever returned.
type Error struct {
	PageIndex int
	Err       error
}

func (e *Error) Error() string { return fmt.Sprintf("export page %d: %v", e.PageIndex, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Metadata is set once on the output document, not per page.
type Metadata struct {
	Title    string `json:"title,omitempty"`
	Author   string `json:"author,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Creator  string `json:"creator,omitempty"`
	Producer string `json:"producer,omitempty"`
	Keywords string `json:"keywords,omitempty"`

	CreationDate time.Time `json:"-"`
	ModDate      time.Time `json:"-"`
}

// PDF exports pages, in ascending page order, into a single document.
func PDF(pages []page.ProcessedPage, meta *Metadata) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to export")
	}

	var objects []pdfObject
	pageObjIDs := make([]int, 0, len(pages))
	nextID := 3 // 1 = catalog, 2 = page tree

	for _, p := range pages {
		img := p.Image()
		if img == nil {
			return nil, &Error{PageIndex: p.PageIndex, Err: fmt.Errorf("no image attached")}
		}
		emb, err := embedRaster(img)
		if err != nil {
			return nil, &Error{PageIndex: p.PageIndex, Err: err}
		}

		pageObjID := nextID
		contentsObjID := nextID + 1
		imageObjID := nextID + 2
		nextID += 3

		wPt := p.Bounds.WidthPt()
		hPt := p.Bounds.HeightPt()

		// Shortest representation that round-trips the float64 exactly:
		// the output page must match the extracted bounds bit-for-bit.
		pageObj := fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page\n   /Parent 2 0 R\n   /MediaBox [0 0 %s %s]\n   /Contents %d 0 R\n   /Resources << /XObject << /Im0 %d 0 R >> >>\n>>\nendobj\n",
			pageObjID, fmtPt(wPt), fmtPt(hPt), contentsObjID, imageObjID,
		)

		// Draw the image over the full page rectangle. No extra scaling
		// logic: the raster was rendered at this exact aspect ratio.
		content := fmt.Sprintf("q\n%s 0 0 %s 0 0 cm\n/Im0 Do\nQ\n", fmtPt(wPt), fmtPt(hPt))
		contentsObj := fmt.Sprintf(
			"%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n",
			contentsObjID, len(content), content,
		)

		imageHeader := fmt.Sprintf(
			"%d 0 obj\n<< /Type /XObject\n   /Subtype /Image\n   /Width %d\n   /Height %d\n   /ColorSpace %s\n   /BitsPerComponent 8\n   /Filter %s\n   /Length %d >>\nstream\n",
			imageObjID, emb.width, emb.height, emb.colorSpace, emb.filter, len(emb.data),
		)
		var imageObj bytes.Buffer
		imageObj.Grow(len(imageHeader) + len(emb.data) + 30)
		imageObj.WriteString(imageHeader)
		imageObj.Write(emb.data)
		imageObj.WriteString("\nendstream\nendobj\n")

		objects = append(objects,
			pdfObject{id: pageObjID, data: []byte(pageObj)},
			pdfObject{id: contentsObjID, data: []byte(contentsObj)},
			pdfObject{id: imageObjID, data: imageObj.Bytes()},
		)
		pageObjIDs = append(pageObjIDs, pageObjID)
	}

	infoObjID := 0
	if meta != nil {
		infoObjID = nextID
		objects = append(objects, pdfObject{id: infoObjID, data: []byte(infoObject(infoObjID, meta))})
	}

	var out bytes.Buffer
	if err := writeDocument(&out, objects, pageObjIDs, infoObjID); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// PDFChunked splits pages into batches of batchSize and exports each batch
// as its own document, for documents too large to hold in one pass.
func PDFChunked(pages []page.ProcessedPage, batchSize int, meta *Metadata) ([][]byte, error) {
	if batchSize <= 0 || batchSize >= len(pages) {
		out, err := PDF(pages, meta)
		if err != nil {
			return nil, err
		}
		return [][]byte{out}, nil
	}

	var chunks [][]byte
	for start := 0; start < len(pages); start += batchSize {
		end := min(start+batchSize, len(pages))
		out, err := PDF(pages[start:end], meta)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, out)
	}
	return chunks, nil
}

func infoObject(id int, meta *Metadata) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d 0 obj\n<<", id)
	writeInfoStr(&buf, "Title", meta.Title)
	writeInfoStr(&buf, "Author", meta.Author)
	writeInfoStr(&buf, "Subject", meta.Subject)
	writeInfoStr(&buf, "Creator", meta.Creator)
	writeInfoStr(&buf, "Producer", meta.Producer)
	writeInfoStr(&buf, "Keywords", meta.Keywords)
	if !meta.CreationDate.IsZero() {
		writeInfoStr(&buf, "CreationDate", pdfDate(meta.CreationDate))
	}
	if !meta.ModDate.IsZero() {
		writeInfoStr(&buf, "ModDate", pdfDate(meta.ModDate))
	}
	buf.WriteString(" >>\nendobj\n")
	return buf.String()
}

func writeInfoStr(buf *bytes.Buffer, key, val string) {
	if val == "" {
		return
	}
	fmt.Fprintf(buf, " /%s (%s)", key, escapePDFString(val))
}

// escapePDFString escapes the literal-string delimiters of PDF syntax.
func escapePDFString(s string) string {
	var buf bytes.Buffer
	for _, c := range []byte(s) {
		switch c {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case '\n':
			buf.WriteString("\\n")
		case '\r':
			buf.WriteString("\\r")
		default:
			buf.WriteByte(c)
		}
	}
	return buf.String()
}

func pdfDate(t time.Time) string {
	return t.UTC().Format("D:20060102150405Z")
}

func fmtPt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
