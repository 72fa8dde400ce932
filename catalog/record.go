package catalog

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/astrovis/starstream/util"
)

/*
Star records are fixed-order tuples: position, photometry (absolute magnitude
and B-V color index), motion (velocity and speed), then any number of extra
scalar columns described by the dataset layout. The order is load-bearing:
the GPU packing strategies and the shader contract both assume position,
photometry and motion occupy the leading values of every record.
*/

////////////////////////////////////////////////////////////////////////////////

// BaseValuesPerStar is the number of float32 values in a record before extra
// columns: 3 position + 2 photometry + 4 motion.
const BaseValuesPerStar = 9

// StarRecord is a single star observation.
type StarRecord struct {
	Position     mgl32.Vec3
	AbsMagnitude float32
	ColorIndex   float32
	Velocity     mgl32.Vec3
	Speed        float32
	Extras       []float32
}

// Layout describes the shape shared by every record in a dataset: the names
// of the extra scalar columns beyond the fixed leading fields.
type Layout struct {
	ExtraColumns []string `json:"extraColumns"`
}

// ValuesPerStar returns the number of float32 values per serialized record.
func (l Layout) ValuesPerStar() int {
	return BaseValuesPerStar + len(l.ExtraColumns)
}

// BytesPerStar returns the serialized size of one record in bytes.
func (l Layout) BytesPerStar() int64 {
	return int64(l.ValuesPerStar()) * 4
}

// Conforms reports whether the record matches the layout's field count.
func (l Layout) Conforms(rec StarRecord) bool {
	return len(rec.Extras) == len(l.ExtraColumns)
}

// Validate checks that every record matches the layout's field count,
// returning a MalformedDatasetError naming the first offender.
func (l Layout) Validate(records []StarRecord) error {
	for i, rec := range records {
		if !l.Conforms(rec) {
			return newFieldCountError(i, len(l.ExtraColumns), len(rec.Extras))
		}
	}
	return nil
}

// Marshal serializes records into the flat little-endian float32 form used
// for octree node payloads. Records that do not conform to the layout yield
// a MalformedDatasetError.
func Marshal(records []StarRecord, layout Layout) ([]byte, error) {
	stride := int(layout.BytesPerStar())
	buf := make([]byte, len(records)*stride)
	offset := 0
	for i, rec := range records {
		if !layout.Conforms(rec) {
			return nil, newFieldCountError(i, len(layout.ExtraColumns), len(rec.Extras))
		}
		offset += util.F32(buf[offset:], rec.Position.X())
		offset += util.F32(buf[offset:], rec.Position.Y())
		offset += util.F32(buf[offset:], rec.Position.Z())
		offset += util.F32(buf[offset:], rec.AbsMagnitude)
		offset += util.F32(buf[offset:], rec.ColorIndex)
		offset += util.F32(buf[offset:], rec.Velocity.X())
		offset += util.F32(buf[offset:], rec.Velocity.Y())
		offset += util.F32(buf[offset:], rec.Velocity.Z())
		offset += util.F32(buf[offset:], rec.Speed)
		for _, extra := range rec.Extras {
			offset += util.F32(buf[offset:], extra)
		}
	}
	return buf, nil
}

// Unmarshal parses the flat float32 form back into records.
func Unmarshal(data []byte, layout Layout) ([]StarRecord, error) {
	stride := int(layout.BytesPerStar())
	if stride == 0 || len(data)%stride != 0 {
		return nil, newPayloadSizeError(len(data), stride)
	}
	records := make([]StarRecord, len(data)/stride)
	offset := 0
	for i := range records {
		rec := &records[i]
		offset += util.ReadF32(data[offset:], &rec.Position[0])
		offset += util.ReadF32(data[offset:], &rec.Position[1])
		offset += util.ReadF32(data[offset:], &rec.Position[2])
		offset += util.ReadF32(data[offset:], &rec.AbsMagnitude)
		offset += util.ReadF32(data[offset:], &rec.ColorIndex)
		offset += util.ReadF32(data[offset:], &rec.Velocity[0])
		offset += util.ReadF32(data[offset:], &rec.Velocity[1])
		offset += util.ReadF32(data[offset:], &rec.Velocity[2])
		offset += util.ReadF32(data[offset:], &rec.Speed)
		if n := len(layout.ExtraColumns); n > 0 {
			rec.Extras = make([]float32, n)
			for j := range rec.Extras {
				offset += util.ReadF32(data[offset:], &rec.Extras[j])
			}
		}
	}
	return records, nil
}
