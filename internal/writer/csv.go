package writer

import (
	"bytes"
	"encoding/csv"

	"github.com/nishad/runsheet/internal/errors"
	"github.com/nishad/runsheet/internal/frame"
)

// EncodeCSV renders a runsheet as comma separated text. The first column is
// the index, headed by the index name.
func EncodeCSV(f *frame.Frame) ([]byte, error) {
	const op errors.Op = "writer.EncodeCSV"

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	cols := f.Columns()

	header := append([]string{f.IndexName()}, cols...)
	if err := w.Write(header); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	record := make([]string, len(header))
	for _, k := range f.Index() {
		record[0] = k
		for i, c := range cols {
			record[i+1], _ = f.Get(k, c)
		}
		if err := w.Write(record); err != nil {
			return nil, errors.E(op, errors.KindIO, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	return buf.Bytes(), nil
}
