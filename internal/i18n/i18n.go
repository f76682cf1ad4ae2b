package i18n

import (
	"embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Resolver maps message keys to locale-appropriate strings for error
// bodies. Unknown locales fall back to the default; unknown keys fall back
// to the key itself so a missing translation is visible, not fatal.
type Resolver struct {
	catalogs      map[string]map[string]string
	defaultLocale string
}

func NewResolver(defaultLocale string) (*Resolver, error) {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locale dir: %w", err)
	}
	catalogs := make(map[string]map[string]string, len(entries))
	for _, entry := range entries {
		locale := strings.TrimSuffix(entry.Name(), ".yaml")
		raw, err := localeFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", locale, err)
		}
		catalog := map[string]string{}
		if err := yaml.Unmarshal(raw, &catalog); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", locale, err)
		}
		catalogs[locale] = catalog
	}
	if _, ok := catalogs[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q has no catalog", defaultLocale)
	}
	return &Resolver{catalogs: catalogs, defaultLocale: defaultLocale}, nil
}

// Resolve returns the message for key in the best-matching locale.
func (r *Resolver) Resolve(locale, key string) string {
	if catalog, ok := r.catalogs[normalizeLocale(locale)]; ok {
		if msg, ok := catalog[key]; ok {
			return msg
		}
	}
	if msg, ok := r.catalogs[r.defaultLocale][key]; ok {
		return msg
	}
	return key
}

// PickLocale selects the first supported locale from an Accept-Language
// header. Quality values are ignored; order wins.
func (r *Resolver) PickLocale(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := normalizeLocale(part)
		if _, ok := r.catalogs[lang]; ok {
			return lang
		}
	}
	return r.defaultLocale
}

func normalizeLocale(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if i := strings.IndexAny(v, ";-_"); i > 0 {
		v = v[:i]
	}
	return v
}
