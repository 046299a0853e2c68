package export

import (
	"encoding/csv"
	"io"
	"os"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/history"
)

// WriteCSV writes the header followed by one record per row.
func WriteCSV(w io.Writer, table history.Table) error {
	errFactory := errors.New()

	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header); err != nil {
		return errFactory.Wrap(ErrFailed, err)
	}

	for _, row := range table.Rows {
		if err := cw.Write(row.Fields()); err != nil {
			return errFactory.Wrap(ErrFailed, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errFactory.Wrap(ErrFailed, err)
	}

	return nil
}

func writeCSVFile(path string, table history.Table) error {
	errFactory := errors.New()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, defaultFilePerm)
	if err != nil {
		return errFactory.WithData(ErrFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "open_file",
			Path:  path,
			Error: err.Error(),
		})
	}

	if err := WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return errFactory.Wrap(ErrFailed, err)
	}

	return nil
}
