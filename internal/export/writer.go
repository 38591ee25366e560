package export

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"sync"
)

// pdfObject is one serialized indirect object, ready to be written at its
// xref-recorded offset.
type pdfObject struct {
	id   int
	data []byte
}

type pdfWriter struct {
	w      *bufio.Writer
	offset uint64
}

func (pw *pdfWriter) write(data []byte) {
	pw.w.Write(data)
	pw.offset += uint64(len(data))
}

func (pw *pdfWriter) writeStr(s string) {
	pw.w.WriteString(s)
	pw.offset += uint64(len(s))
}

func (pw *pdfWriter) writeHeader() {
	pw.write([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))
}

func (pw *pdfWriter) writeXrefTrailer(xrefOffsets []uint64, totalObjects, infoObjID int) {
	xrefStart := pw.offset
	pw.writeStr("xref\n")
	pw.writeStr(fmt.Sprintf("0 %d\n", totalObjects+1))
	pw.writeStr("0000000000 65535 f \n")
	for _, off := range xrefOffsets {
		fmt.Fprintf(pw.w, "%010d 00000 n \n", off)
		pw.offset += 20
	}
	pw.writeStr("trailer\n")
	if infoObjID > 0 {
		pw.writeStr(fmt.Sprintf("<< /Size %d /Root 1 0 R /Info %d 0 R >>\n", totalObjects+1, infoObjID))
	} else {
		pw.writeStr(fmt.Sprintf("<< /Size %d /Root 1 0 R >>\n", totalObjects+1))
	}
	pw.writeStr("startxref\n")
	pw.writeStr(fmt.Sprintf("%d\n", xrefStart))
	pw.writeStr("%%EOF\n")
}

// writeDocument assembles a complete PDF from pre-serialized objects.
// Object 1 is the catalog, object 2 the page tree; pageObjIDs lists the
// /Kids in output order.
func writeDocument(out io.Writer, objects []pdfObject, pageObjIDs []int, infoObjID int) error {
	bw := bufio.NewWriter(out)
	pw := &pdfWriter{w: bw}

	totalObjects := 2 + len(objects)
	xrefOffsets := make([]uint64, totalObjects)

	pw.writeHeader()

	xrefOffsets[0] = pw.offset
	pw.writeStr("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	var kids bytes.Buffer
	for _, id := range pageObjIDs {
		fmt.Fprintf(&kids, "%d 0 R ", id)
	}
	xrefOffsets[1] = pw.offset
	pw.writeStr(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [ %s] /Count %d >>\nendobj\n",
		kids.String(), len(pageObjIDs)))

	for _, obj := range objects {
		xrefOffsets[obj.id-1] = pw.offset
		pw.write(obj.data)
	}

	pw.writeXrefTrailer(xrefOffsets, totalObjects, infoObjID)
	return bw.Flush()
}

// Pooled zlib writers to amortize internal hash table allocation.
var zlibWriterPool = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(&bytes.Buffer{}, zlib.BestSpeed)
		return w
	},
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 4)

	w := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
