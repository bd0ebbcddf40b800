package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/plclog/internal/convert"
	"example.com/plclog/internal/plclog"
)

func sampleSummary() convert.Summary {
	return convert.Summary{
		Input:          "20240517_0830.bin",
		Output:         "20240517_0830.csv",
		LogID:          "press-01",
		LogIDHex:       "70726573732d3031",
		ByteOrder:      "big",
		WordCount:      7,
		TypeList:       "u2df2bx",
		Columns:        []string{"u:0", "d:2", "f:6", "b:8", "x:12"},
		Records:        42,
		FirstTimestamp: "Fri,2024-05-17,08:30:00.000000000",
		LastTimestamp:  "Fri,2024-05-17,08:39:59.000000000",
		Warnings: []plclog.Warning{{
			Kind:    plclog.WarnMissingTerminator,
			Offset:  1234,
			Message: "20240517_0830.bin is missing entries",
		}},
		BytesRead:    1234,
		OutputBytes:  4096,
		OutputSHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		StartedAt:    time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC),
		Duration:     1500 * time.Millisecond,
	}
}

func TestSummaryJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.json")
	want := sampleSummary()
	require.NoError(t, SaveSummaryJSON(want, path))
	got, err := LoadSummaryJSON(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestNewBatch(t *testing.T) {
	failed := sampleSummary()
	failed.Error = "not a valid log file"
	b := NewBatch([]convert.Summary{sampleSummary(), failed, sampleSummary()})
	assert.Equal(t, 2, b.Converted)
	assert.Equal(t, 1, b.Failed)
	require.NoError(t, SaveBatchJSON(b, filepath.Join(t.TempDir(), "batch.json")))
}

func TestParseLanguage(t *testing.T) {
	for _, in := range []string{"", "en", "EN-us", "english"} {
		lang, err := ParseLanguage(in)
		require.NoError(t, err)
		assert.Equal(t, LangEnglish, lang)
	}
	for _, in := range []string{"de", "de-AT", "Deutsch", "de_DE.UTF-8"} {
		lang, err := ParseLanguage(in)
		require.NoError(t, err)
		assert.Equal(t, LangGerman, lang)
	}
	_, err := ParseLanguage("tlh")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}

func TestTranslator(t *testing.T) {
	de := NewTranslator(LangGerman)
	assert.Equal(t, LangGerman, de.Lang())
	assert.Equal(t, "Einträge", de.T("label.records"))
	assert.Equal(t, "FEHLER: kaputt", de.Format("value.failed", "kaputt"))
	assert.Equal(t, "missing.key", de.T("missing.key"))

	fallback := NewTranslator(Language("xx"))
	assert.Equal(t, LangEnglish, fallback.Lang())
	assert.Equal(t, "Records", fallback.T("label.records"))
}

func TestLocalesHaveSameKeys(t *testing.T) {
	all := catalogs()
	require.Contains(t, all, LangEnglish)
	require.Contains(t, all, LangGerman)
	for lang, entries := range all {
		for key := range all[LangEnglish] {
			_, ok := entries[key]
			assert.True(t, ok, "%s missing %s", lang, key)
		}
		assert.Len(t, entries, len(all[LangEnglish]), lang)
	}
}

func TestDigestQR(t *testing.T) {
	digest := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	png, err := DigestQR("line.csv", " "+strings.ToUpper(digest)+" ", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	assert.Equal(t, "sha256:a_b.csv:"+digest, digestPayload("a:b.csv", digest))

	_, err = DigestQR("line.csv", "ba7816bf", 64)
	assert.Error(t, err)
	_, err = DigestQR("line.csv", "zz", 64)
	assert.Error(t, err)
}

func TestSummaryPDFEmbedsDigestQR(t *testing.T) {
	data, err := RenderSummaryPDF(sampleSummary(), LangEnglish)
	require.NoError(t, err)
	assert.Equal(t, 1, bytes.Count(data, []byte("/Subtype /Image")))

	unsigned := sampleSummary()
	unsigned.OutputSHA256 = ""
	data, err = RenderSummaryPDF(unsigned, LangEnglish)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/Subtype /Image")
}

func TestSaveSummaryPDF(t *testing.T) {
	dir := t.TempDir()
	for _, lang := range []Language{LangEnglish, LangGerman} {
		out := filepath.Join(dir, string(lang)+".pdf")
		require.NoError(t, SaveSummaryPDF(sampleSummary(), lang, out))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")), lang)
	}

	failed := sampleSummary()
	failed.Error = "invalid endian flag"
	failed.TypeList = ""
	failed.OutputSHA256 = ""
	failed.Warnings = nil
	data, err := RenderSummaryPDF(failed, LangEnglish)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}
