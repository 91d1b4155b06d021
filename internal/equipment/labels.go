package equipment

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"equipahub-backend/internal/platform/apperr"
)

type LabelEncoding string

const (
	LabelUTF8  LabelEncoding = "utf8"  // UTF-8 with BOM, opens cleanly in Excel
	LabelCP932 LabelEncoding = "cp932" // label printer software expects ANSI/Shift_JIS
)

var labelHeader = []string{"serial_number", "brand", "model", "type", "location"}

// ExportLabels writes one CSV row per unit for the label printer.
func (s *Service) ExportLabels(ctx context.Context, ids []uint64, enc LabelEncoding) ([]byte, error) {
	if len(ids) == 0 {
		return nil, apperr.Invalid("ids required")
	}
	units, err := s.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, apperr.NotFound("no equipment matched the given ids")
	}

	var b bytes.Buffer
	var w io.Writer
	switch enc {
	case "", LabelUTF8:
		w = transform.NewWriter(&b, unicode.UTF8BOM.NewEncoder())
	case LabelCP932:
		w = transform.NewWriter(&b, japanese.ShiftJIS.NewEncoder())
	default:
		return nil, apperr.Invalid("unsupported encoding %q", enc)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(labelHeader); err != nil {
		return nil, err
	}
	for _, e := range units {
		loc := ""
		if e.Location.Valid {
			loc = e.Location.String
		}
		if err := cw.Write([]string{e.SerialNumber, e.Brand, e.Model, e.Type, loc}); err != nil {
			return nil, apperr.Invalid("label for %s cannot be encoded as %s", e.SerialNumber, enc)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, apperr.Invalid("labels cannot be encoded as %s: %v", enc, err)
	}
	if c, ok := w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}
