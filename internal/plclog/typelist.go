package plclog

// ParseTypeList turns the header's type list into field descriptors.
//
// Each tag byte declares one field. A decimal digit 1-9 directly before a
// tag multiplies that field's width (in words); without one the field is a
// single word. NUL bytes are padding and are skipped anywhere. Two digits in
// a row, a zero digit, a digit that is never followed by a tag and non-ASCII
// bytes are rejected. Error offsets are file offsets, since the type list
// always starts right after the fixed header.
func ParseTypeList(list []byte) (Layout, error) {
	var (
		layout  Layout
		offset  int
		mult    = 1
		pending = -1
	)
	for i, c := range list {
		pos := int64(HeaderFixedSize + i)
		switch {
		case c == 0x00:
			continue
		case c >= '0' && c <= '9':
			if pending >= 0 {
				return Layout{}, formatErr(pos, ErrTypeList,
					"consecutive width digits %q at positions %d and %d", list[pending:i+1], pending, i)
			}
			if c == '0' {
				return Layout{}, formatErr(pos, ErrTypeList, "zero width multiplier at position %d", i)
			}
			mult = int(c - '0')
			pending = i
		case c >= 0x80:
			return Layout{}, formatErr(pos, ErrTypeList, "non-ASCII byte 0x%02X at position %d", c, i)
		default:
			width := WordSize * mult
			layout.Fields = append(layout.Fields, FieldDescriptor{Tag: c, Offset: offset, Width: width})
			offset += width
			mult = 1
			pending = -1
		}
	}
	if pending >= 0 {
		return Layout{}, formatErr(int64(HeaderFixedSize+pending), ErrTypeList,
			"width digit %q at position %d has no type", list[pending], pending)
	}
	return layout, nil
}

// CheckSpan verifies the layout covers exactly the declared payload.
func (l Layout) CheckSpan(wordCount uint8) error {
	want := int(wordCount) * WordSize
	if got := l.Span(); got != want {
		return formatErr(HeaderFixedSize, ErrTypeListSpan,
			"type list spans %d words (expected %d)", got/WordSize, wordCount)
	}
	return nil
}

// CheckFloatWidths rejects float fields that are not half, single or double
// precision, so a bad layout fails before any record is read.
func (l Layout) CheckFloatWidths() error {
	for _, f := range l.Fields {
		if f.Tag != 'f' {
			continue
		}
		switch f.Width {
		case 2, 4, 8:
		default:
			return formatErr(HeaderFixedSize, ErrFloatWidth, "field %s is %d bytes", f.Column(), f.Width)
		}
	}
	return nil
}
