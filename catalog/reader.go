package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/astrovis/starstream/util/log"
)

/*
Columnar catalog ingest. The input is a headered CSV where rows are stars and
columns are named attributes. Position and photometry columns are required;
velocity columns default to zero when absent, speed is derived from velocity
when absent, and any unrecognized column becomes an extra scalar column in
header order.
*/

////////////////////////////////////////////////////////////////////////////////

// Column names recognized by the reader.
const (
	ColX      = "x"
	ColY      = "y"
	ColZ      = "z"
	ColAbsMag = "absmag"
	ColColor  = "colorbv"
	ColVX     = "vx"
	ColVY     = "vy"
	ColVZ     = "vz"
	ColSpeed  = "speed"
)

var requiredColumns = []string{ColX, ColY, ColZ, ColAbsMag, ColColor}

// Dataset is the result of a catalog ingest: uniform records plus the layout
// they share.
type Dataset struct {
	Records []StarRecord
	Layout  Layout
}

// ReadCSV ingests a headered CSV catalog. Missing required columns fail the
// whole load with a MalformedDatasetError; no partial dataset is returned.
func ReadCSV(ctx context.Context, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	row, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	// Later reads reuse the row's backing array.
	header := make([]string, len(row))
	copy(header, row)
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, newMissingColumnsError(missing)
	}

	known := map[string]bool{
		ColX: true, ColY: true, ColZ: true,
		ColAbsMag: true, ColColor: true,
		ColVX: true, ColVY: true, ColVZ: true,
		ColSpeed: true,
	}
	layout := Layout{}
	var extraIndexes []int
	for i, name := range header {
		if !known[name] {
			layout.ExtraColumns = append(layout.ExtraColumns, name)
			extraIndexes = append(extraIndexes, i)
		}
	}
	_, hasSpeed := columns[ColSpeed]

	field := func(row []string, name string, rownum int) (float32, error) {
		idx, ok := columns[name]
		if !ok {
			return 0, nil
		}
		v, err := strconv.ParseFloat(row[idx], 32)
		if err != nil {
			return 0, newBadValueError(rownum, name, row[idx])
		}
		return float32(v), nil
	}

	var records []StarRecord
	for rownum := 0; ; rownum++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", rownum, err)
		}
		var rec StarRecord
		for i, name := range []string{ColX, ColY, ColZ} {
			if rec.Position[i], err = field(row, name, rownum); err != nil {
				return nil, err
			}
		}
		if rec.AbsMagnitude, err = field(row, ColAbsMag, rownum); err != nil {
			return nil, err
		}
		if rec.ColorIndex, err = field(row, ColColor, rownum); err != nil {
			return nil, err
		}
		for i, name := range []string{ColVX, ColVY, ColVZ} {
			if rec.Velocity[i], err = field(row, name, rownum); err != nil {
				return nil, err
			}
		}
		if hasSpeed {
			if rec.Speed, err = field(row, ColSpeed, rownum); err != nil {
				return nil, err
			}
		} else {
			rec.Speed = rec.Velocity.Len()
		}
		if len(extraIndexes) > 0 {
			rec.Extras = make([]float32, len(extraIndexes))
			for i, idx := range extraIndexes {
				v, err := strconv.ParseFloat(row[idx], 32)
				if err != nil {
					return nil, newBadValueError(rownum, header[idx], row[idx])
				}
				rec.Extras[i] = float32(v)
			}
		}
		records = append(records, rec)
	}
	log.Infow(ctx, "catalog ingested",
		"stars", len(records),
		"extraColumns", len(layout.ExtraColumns),
	)
	return &Dataset{Records: records, Layout: layout}, nil
}
