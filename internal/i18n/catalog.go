// Package i18n loads the localized strings shown in user notifications.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

const (
	// BaseLocale is the source locale every other catalog falls back to.
	BaseLocale = "en-US"

	MsgNotificationTitle   = "notificationTitle"
	MsgNotificationMessage = "notificationMessage"
)

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds the messages of every locale.
type Catalog struct {
	builder *catalog.Builder
	tags    map[string]language.Tag
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// LoadEmbedded loads the catalogs shipped with the binary.
func LoadEmbedded() (*Catalog, error) {
	return LoadFromFS(embeddedLocales)
}

// LoadFromFS loads every locales/*.yaml file of fsys.
func LoadFromFS(fsys fs.FS) (*Catalog, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	files := make(map[string]catalogFile, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := validate(p, file, files); err != nil {
			return nil, err
		}
		files[strings.TrimSpace(file.Locale)] = file
	}

	base, ok := files[BaseLocale]
	if !ok {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	c := &Catalog{
		builder: catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
		tags:    make(map[string]language.Tag, len(files)),
	}
	for locale, file := range files {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("parse locale %q: %w", locale, err)
		}
		// Keys missing from a translation use the base locale text.
		for key, msg := range base.Messages {
			if translated, ok := file.Messages[key]; ok {
				msg = translated
			}
			if err := c.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("locale %s: set %q: %w", locale, key, err)
			}
		}
		c.tags[locale] = tag
	}
	return c, nil
}

func validate(p string, file catalogFile, seen map[string]catalogFile) error {
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return fmt.Errorf("catalog %s: locale is required", p)
	}
	if want := strings.TrimSuffix(path.Base(p), path.Ext(p)); locale != want {
		return fmt.Errorf("catalog %s: locale %q must match file name %q", p, locale, want)
	}
	if _, exists := seen[locale]; exists {
		return fmt.Errorf("catalog %s: locale %q already defined", p, locale)
	}
	return nil
}

// Locales returns the available locale identifiers.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.tags))
	for locale := range c.tags {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Printer returns a printer for locale. Unknown locales use a catalog with
// the same base language, then the base locale.
func (c *Catalog) Printer(locale string) *message.Printer {
	return message.NewPrinter(c.resolve(locale), message.Catalog(c.builder))
}

// Message formats the message key for locale.
func (c *Catalog) Message(locale, key string, args ...any) string {
	return c.Printer(locale).Sprintf(key, args...)
}

func (c *Catalog) resolve(locale string) language.Tag {
	if tag, ok := c.tags[locale]; ok {
		return tag
	}

	requested, err := language.Parse(locale)
	if err == nil {
		want, _ := requested.Base()
		for _, name := range c.Locales() {
			tag := c.tags[name]
			if base, _ := tag.Base(); base == want {
				return tag
			}
		}
	}
	return c.tags[BaseLocale]
}
