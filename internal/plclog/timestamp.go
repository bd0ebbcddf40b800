package plclog

import "fmt"

var weekdayNames = map[uint8]string{
	1: "Sun",
	2: "Mon",
	3: "Tue",
	4: "Wed",
	5: "Thu",
	6: "Fri",
	7: "Sat",
}

// Timestamp is the PLC date-and-time block preceding every payload.
type Timestamp struct {
	Year       uint16
	Month      uint8
	Day        uint8
	Weekday    uint8
	Hour       uint8
	Minute     uint8
	Second     uint8
	Nanosecond uint32
}

// WeekdayName maps a weekday code (1 = Sunday) to its three letter name.
func WeekdayName(code uint8) (string, error) {
	name, ok := weekdayNames[code]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrWeekday, code)
	}
	return name, nil
}

// DecodeTimestamp decodes a 12-byte timestamp block.
func DecodeTimestamp(order ByteOrder, raw []byte) (Timestamp, error) {
	if len(raw) < TimestampSize {
		return Timestamp{}, fmt.Errorf("%w: timestamp has %d bytes", ErrTruncated, len(raw))
	}
	bo := order.Binary()
	ts := Timestamp{
		Year:       bo.Uint16(raw[0:2]),
		Month:      raw[2],
		Day:        raw[3],
		Weekday:    raw[4],
		Hour:       raw[5],
		Minute:     raw[6],
		Second:     raw[7],
		Nanosecond: bo.Uint32(raw[8:12]),
	}
	if _, err := WeekdayName(ts.Weekday); err != nil {
		return Timestamp{}, err
	}
	return ts, nil
}

// Encode is the inverse of DecodeTimestamp.
func (t Timestamp) Encode(order ByteOrder) []byte {
	buf := make([]byte, TimestampSize)
	bo := order.Binary()
	bo.PutUint16(buf[0:2], t.Year)
	buf[2] = t.Month
	buf[3] = t.Day
	buf[4] = t.Weekday
	buf[5] = t.Hour
	buf[6] = t.Minute
	buf[7] = t.Second
	bo.PutUint32(buf[8:12], t.Nanosecond)
	return buf
}

// Columns splits the rendering into its day, date and time columns.
// Unknown weekday codes render as "???"; DecodeTimestamp never yields one.
func (t Timestamp) Columns() [3]string {
	day, err := WeekdayName(t.Weekday)
	if err != nil {
		day = "???"
	}
	return [3]string{
		day,
		fmt.Sprintf("%04d-%02d-%02d", t.Year, t.Month, t.Day),
		fmt.Sprintf("%02d:%02d:%02d.%09d", t.Hour, t.Minute, t.Second, t.Nanosecond),
	}
}

// String renders "Www,YYYY-MM-DD,hh:mm:ss.nnnnnnnnn".
func (t Timestamp) String() string {
	c := t.Columns()
	return c[0] + "," + c[1] + "," + c[2]
}
