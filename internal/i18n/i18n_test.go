package i18n

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedCatalogs(t *testing.T) {
	m, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ru"}, m.Languages())
	assert.Equal(t, "Select your trading pair:", m.Translator("en").T("picker.choose_symbol"))
	assert.Equal(t, "Выберите торговую пару:", m.Translator("ru").T("picker.choose_symbol"))
	assert.Equal(t, "Ticker: {{.Symbol}}\nInterval: {{.Period}}", m.Translator("en").T("picker.summary"))
}

func TestTranslator_LanguageFallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"catalog/en.yaml": {Data: []byte("en:\n  greeting: Hello\n  only_en: English\n")},
		"catalog/ru.yml":  {Data: []byte("ru:\n  greeting: Привет\n")},
	}

	m, err := LoadFS(fsys, "catalog", "")
	require.NoError(t, err)

	testCases := []struct {
		name     string
		lang     string
		key      string
		expected string
		resolved string
	}{
		{name: "exact language", lang: "ru", key: "greeting", expected: "Привет", resolved: "ru"},
		{name: "region falls back to base", lang: "ru-RU", key: "greeting", expected: "Привет", resolved: "ru"},
		{name: "unknown language uses default", lang: "de", key: "greeting", expected: "Hello", resolved: "en"},
		{name: "empty language uses default", lang: "", key: "greeting", expected: "Hello", resolved: "en"},
		{name: "missing key falls back to default language", lang: "ru", key: "only_en", expected: "English", resolved: "ru"},
		{name: "missing everywhere returns key", lang: "ru", key: "absent.key", expected: "absent.key", resolved: "ru"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			tr := m.Translator(tc.lang)
			assert.Equal(t, tc.expected, tr.T(tc.key))
			assert.Equal(t, tc.resolved, tr.Lang())
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "messages.yaml"), []byte("en:\n  nested:\n    key: value\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	m, err := LoadFromDir(dir, "en")
	require.NoError(t, err)
	assert.Equal(t, "value", m.Translator("en").T("nested.key"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := LoadFS(fstest.MapFS{"x/readme.md": {Data: []byte("#")}}, "x", "en")
	assert.ErrorContains(t, err, "no yaml files")

	_, err = LoadFS(fstest.MapFS{"x/ru.yaml": {Data: []byte("ru:\n  a: b\n")}}, "x", "en")
	assert.ErrorContains(t, err, `default language "en" is missing`)

	_, err = LoadFS(fstest.MapFS{"x/en.yaml": {Data: []byte("en: [unclosed")}}, "x", "en")
	assert.ErrorContains(t, err, "parse file")
}

func TestRender(t *testing.T) {
	out := Render("Ticker: {{.Symbol}}\nInterval: {{.Period}}", map[string]string{
		"Symbol": "BTC/USDT",
		"Period": "1h",
	})
	assert.Equal(t, "Ticker: BTC/USDT\nInterval: 1h", out)
	assert.Equal(t, "no vars", Render("no vars", nil))
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.Nil(t, m.Languages())
	assert.Equal(t, "key", m.Translator("en").T("key"))
}

func TestRender_InsertsValuesVerbatim(t *testing.T) {
	vars := map[string]string{"Symbol": "{{.Period}}", "Period": "{{.Symbol}}"}

	for i := 0; i < 50; i++ {
		assert.Equal(t, "Ticker: {{.Period}}\nInterval: {{.Symbol}}", Render("Ticker: {{.Symbol}}\nInterval: {{.Period}}", vars))
	}
	assert.Equal(t, "plain", Render("plain", nil))
}
