package convert

import (
	"fmt"

	"example.com/plclog/internal/plclog"
	"example.com/plclog/internal/source"
)

// Info is what Inspect learns from the header and the ends of a file
// without decoding every record.
type Info struct {
	Summary
	Size       int64    `json:"size"`
	Stride     int64    `json:"stride"`
	TrailBytes int64    `json:"trailBytes"`
	Fields     []string `json:"fields"`
}

// Inspect reads the header, counts records by stepping over their sentinels
// and decodes the first and last record through random access.
func Inspect(src source.Source) (Info, error) {
	info := Info{Size: src.Size()}
	info.Input = src.Name()
	fail := func(err error) (Info, error) {
		info.Error = err.Error()
		return info, err
	}

	hdr, layout, warnings, err := plclog.ReadHeaderAt(src)
	info.Warnings = warnings
	if err != nil {
		return fail(err)
	}
	info.setHeader(hdr, layout)
	for _, f := range layout.Fields {
		info.Fields = append(info.Fields, fmt.Sprintf("%s width %d", f.Column(), f.Width))
	}
	info.Stride = plclog.RecordStride(hdr)

	// Walk the sentinels forward; whatever follows the first terminator is
	// trailing data, not records.
	total := plclog.RecordCount(hdr, info.Size)
	var count int64
	var b [1]byte
	for ; count < total; count++ {
		if _, err := src.ReadAt(b[:], plclog.RecordOffset(hdr, count)); err != nil {
			return fail(&plclog.IOError{Name: src.Name(), Op: "read sentinel", Err: err})
		}
		if b[0] == plclog.SentinelTerminator {
			info.Terminated = true
			break
		}
		if b[0] != plclog.SentinelRecord {
			_, err := plclog.ReadRecordAt(src, hdr, layout, count)
			return fail(err)
		}
	}
	info.Records = count
	end := plclog.RecordOffset(hdr, count)
	info.TrailBytes = info.Size - end

	if count > 0 {
		first, err := plclog.ReadRecordAt(src, hdr, layout, 0)
		if err != nil {
			return fail(err)
		}
		last, err := plclog.ReadRecordAt(src, hdr, layout, count-1)
		if err != nil {
			return fail(err)
		}
		info.FirstTimestamp = first.Timestamp.String()
		info.LastTimestamp = last.Timestamp.String()
	}

	if !info.Terminated {
		if n, _ := src.ReadAt(b[:], end); n == 1 && b[0] == plclog.SentinelTerminator {
			info.Terminated = true
		}
	}
	if !info.Terminated {
		info.Warnings = append(info.Warnings, plclog.Warning{
			Kind:    plclog.WarnMissingTerminator,
			Offset:  end,
			Message: fmt.Sprintf("%s is missing entries: no terminator at %d", src.Name(), end),
		})
	}
	return info, nil
}
