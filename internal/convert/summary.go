package convert

import (
	"encoding/hex"
	"time"

	"example.com/plclog/internal/plclog"
)

// Summary describes one conversion. It is what the JSON and PDF reports
// are rendered from.
type Summary struct {
	Input          string           `json:"input"`
	Output         string           `json:"output,omitempty"`
	LogID          string           `json:"logId"`
	LogIDHex       string           `json:"logIdHex"`
	ByteOrder      string           `json:"byteOrder"`
	Version        uint8            `json:"version"`
	WordCount      int              `json:"wordCount"`
	TypeList       string           `json:"typeList"`
	Columns        []string         `json:"columns"`
	Records        int64            `json:"records"`
	FirstTimestamp string           `json:"firstTimestamp,omitempty"`
	LastTimestamp  string           `json:"lastTimestamp,omitempty"`
	Terminated     bool             `json:"terminated"`
	Warnings       []plclog.Warning `json:"warnings,omitempty"`
	BytesRead      int64            `json:"bytesRead"`
	OutputBytes    int64            `json:"outputBytes"`
	OutputSHA256   string           `json:"outputSha256,omitempty"`
	StartedAt      time.Time        `json:"startedAt"`
	Duration       time.Duration    `json:"durationNs"`
	Error          string           `json:"error,omitempty"`
}

// OK reports whether the conversion finished without a fatal error.
func (s Summary) OK() bool {
	return s.Error == ""
}

func (s *Summary) setHeader(hdr plclog.Header, layout plclog.Layout) {
	s.LogID = hdr.IdentifierText()
	s.LogIDHex = hex.EncodeToString(hdr.LogID[:])
	s.ByteOrder = hdr.ByteOrder.String()
	s.Version = hdr.Version
	s.WordCount = int(hdr.WordCount)
	s.TypeList = typeListText(hdr.TypeList)
	s.Columns = layout.Columns()
}

func typeListText(list []byte) string {
	end := len(list)
	for end > 0 && list[end-1] == 0 {
		end--
	}
	return string(list[:end])
}
