package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
)

// Language is a report locale, named after its file under locales/.
type Language string

const (
	LangEnglish Language = "en"
	LangGerman  Language = "de"
)

var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed locales/*.json
var localeFS embed.FS

var (
	catalogOnce sync.Once
	catalogMap  map[Language]map[string]string
)

// catalogs parses every embedded locale on first use. A broken locale is a
// build defect, so it panics.
func catalogs() map[Language]map[string]string {
	catalogOnce.Do(func() {
		files, err := localeFS.ReadDir("locales")
		if err != nil {
			panic(fmt.Sprintf("report: list locales: %v", err))
		}
		catalogMap = make(map[Language]map[string]string, len(files))
		for _, f := range files {
			name := f.Name()
			data, err := localeFS.ReadFile(path.Join("locales", name))
			if err != nil {
				panic(fmt.Sprintf("report: load locale %s: %v", name, err))
			}
			var entries map[string]string
			if err := json.Unmarshal(data, &entries); err != nil {
				panic(fmt.Sprintf("report: parse locale %s: %v", name, err))
			}
			catalogMap[Language(strings.TrimSuffix(name, path.Ext(name)))] = entries
		}
	})
	return catalogMap
}

var languageAliases = map[string]Language{
	"":        LangEnglish,
	"en":      LangEnglish,
	"en-us":   LangEnglish,
	"en-gb":   LangEnglish,
	"english": LangEnglish,
	"de":      LangGerman,
	"de-de":   LangGerman,
	"de-at":   LangGerman,
	"de-ch":   LangGerman,
	"german":  LangGerman,
	"deutsch": LangGerman,
}

// ParseLanguage maps a flag or config value onto a Language. "_" and "-"
// are interchangeable and any ".charset" suffix is dropped, so LANG style
// values such as "de_DE.UTF-8" work.
func ParseLanguage(lang string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[:i]
	}
	key = strings.ReplaceAll(key, "_", "-")
	if l, ok := languageAliases[key]; ok {
		return l, nil
	}
	return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

// Translator looks up labels in one catalog, falling back to English and
// then to the key itself.
type Translator struct {
	lang    Language
	entries map[string]string
}

func NewTranslator(lang Language) Translator {
	all := catalogs()
	entries, ok := all[lang]
	if !ok {
		lang = LangEnglish
		entries = all[LangEnglish]
	}
	return Translator{lang: lang, entries: entries}
}

func (t Translator) Lang() Language {
	return t.lang
}

func (t Translator) T(key string) string {
	if v, ok := t.entries[key]; ok {
		return v
	}
	if v, ok := catalogs()[LangEnglish][key]; ok {
		return v
	}
	return key
}

func (t Translator) Format(key string, args ...interface{}) string {
	return fmt.Sprintf(t.T(key), args...)
}
