// Package i18n loads YAML message catalogs and resolves localized strings.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const embeddedDir = "locales"

//go:embed locales/*.yaml
var embedded embed.FS

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	Lang() string
}

// Manager stores all available translations.
type Manager struct {
	translations messages
	defaultLang  string
}

// Load loads the catalogs compiled into the binary.
func Load(defaultLang string) (*Manager, error) {
	return LoadFS(embedded, embeddedDir, defaultLang)
}

// LoadFromDir loads translations from a directory containing YAML files.
func LoadFromDir(dir, defaultLang string) (*Manager, error) {
	return LoadFS(os.DirFS(dir), ".", defaultLang)
}

// LoadFS loads translations from the YAML files in dir of fsys.
func LoadFS(fsys fs.FS, dir, defaultLang string) (*Manager, error) {
	catalog, err := parseDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	defaultLang = normalizeLang(defaultLang)
	if defaultLang == "" {
		defaultLang = "en"
	}

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Manager{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for the requested language.
// Region subtags fall back to the base language ("ru-RU" uses "ru").
func (m *Manager) Translator(lang string) Translator {
	if m == nil {
		return translator{}
	}

	norm := normalizeLang(lang)
	if m.translations[norm] == nil {
		if base, _, ok := strings.Cut(norm, "-"); ok && m.translations[base] != nil {
			norm = base
		} else {
			norm = m.defaultLang
		}
	}

	return translator{
		lang:         norm,
		fallback:     m.defaultLang,
		translations: m.translations,
	}
}

// Languages returns all loaded languages in sorted order.
func (m *Manager) Languages() []string {
	if m == nil {
		return nil
	}

	languages := make([]string, 0, len(m.translations))
	for lang := range m.translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	return languages
}

// DefaultLang returns the fallback language.
func (m *Manager) DefaultLang() string {
	if m == nil {
		return ""
	}
	return m.defaultLang
}

// Render substitutes {{.Name}} placeholders with vars in a single pass.
// Substituted values are copied verbatim and never expanded again.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}

	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, "{{."+name+"}}", vars[name])
	}

	return strings.NewReplacer(pairs...).Replace(text)
}

type translator struct {
	lang         string
	fallback     string
	translations messages
}

func (t translator) Lang() string {
	return t.lang
}

func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	for _, lang := range []string{t.lang, t.fallback} {
		if value, ok := t.translations[lang][key]; ok && value != "" {
			return value
		}
	}

	return key
}

func normalizeLang(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), "_", "-")
}

// messages maps a language to its flattened "group.key" entries.
type messages map[string]map[string]string

func (m messages) merge(other messages) {
	for lang, entries := range other {
		if m[lang] == nil {
			m[lang] = make(map[string]string, len(entries))
		}
		for key, value := range entries {
			m[lang][key] = value
		}
	}
}

func parseDir(fsys fs.FS, dir string) (messages, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.y*ml"))
	if err != nil {
		return nil, fmt.Errorf("i18n: list %s: %w", dir, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", dir)
	}
	sort.Strings(names)

	catalog := make(messages)
	for _, name := range names {
		parsed, err := parseFile(fsys, name)
		if err != nil {
			return nil, err
		}
		catalog.merge(parsed)
	}

	return catalog, nil
}

// parseFile reads a document whose top-level keys are language codes.
func parseFile(fsys fs.FS, name string) (messages, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", name, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", name, err)
	}

	out := make(messages, len(doc))
	for lang, node := range doc {
		lang = normalizeLang(lang)
		if lang == "" {
			continue
		}

		entries := make(map[string]string)
		if err := collect("", &node, entries); err != nil {
			return nil, fmt.Errorf("i18n: %s: language %s: %w", name, lang, err)
		}
		if len(entries) > 0 {
			out[lang] = entries
		}
	}

	return out, nil
}

// collect walks nested mappings and records scalar leaves under dotted keys.
func collect(prefix string, node *yaml.Node, out map[string]string) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if prefix != "" {
			out[prefix] = node.Value
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if err := collect(key, node.Content[i+1], out); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported value at %q (line %d)", prefix, node.Line)
	}

	return nil
}
