package design

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/locales"
	"github.com/go-playground/locales/de"
	"github.com/go-playground/locales/de_DE"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/en_GB"
	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/es"
	"github.com/go-playground/locales/es_AR"
	"github.com/go-playground/locales/es_CL"
	"github.com/go-playground/locales/es_CO"
	"github.com/go-playground/locales/es_ES"
	"github.com/go-playground/locales/es_MX"
	"github.com/go-playground/locales/es_PE"
	"github.com/go-playground/locales/es_US"
	"github.com/go-playground/locales/fr"
	"github.com/go-playground/locales/fr_FR"
	"github.com/go-playground/locales/it"
	"github.com/go-playground/locales/ja"
	"github.com/go-playground/locales/nl"
	"github.com/go-playground/locales/nl_NL"
	"github.com/go-playground/locales/pt"
	"github.com/go-playground/locales/pt_BR"
	"github.com/go-playground/locales/zh"
	"golang.org/x/text/language"
)

// ErrInvalidDate 表示日期字符串不符合任何可接受的格式。
var ErrInvalidDate = errors.New("invalid date")

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseISO 解析 ISO-8601 日期。带偏移或 Z 的按绝对时刻处理，
// 其余按 loc 中的墙上时间处理。
func ParseISO(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("parse date: %w", ErrInvalidDate)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
}

// DateFormatter 按查看者的区域格式打印活动日期。
type DateFormatter interface {
	FormatDate(t time.Time) string
}

// LocaleFormatter 用 CLDR 的 medium 日期格式输出。
type LocaleFormatter struct {
	translator locales.Translator
	location   *time.Location
}

// 区域优先，其次语言，最后回落到 es
var translators = map[string]func() locales.Translator{
	"es":    es.New,
	"es_AR": es_AR.New,
	"es_CL": es_CL.New,
	"es_CO": es_CO.New,
	"es_ES": es_ES.New,
	"es_MX": es_MX.New,
	"es_PE": es_PE.New,
	"es_US": es_US.New,
	"en":    en.New,
	"en_GB": en_GB.New,
	"en_US": en_US.New,
	"pt":    pt.New,
	"pt_BR": pt_BR.New,
	"fr":    fr.New,
	"fr_FR": fr_FR.New,
	"de":    de.New,
	"de_DE": de_DE.New,
	"it":    it.New,
	"nl":    nl.New,
	"nl_NL": nl_NL.New,
	"ja":    ja.New,
	"zh":    zh.New,
}

// NewLocaleFormatter 接受 "es-PE"、"en-US" 这类 BCP 47 标签。
// 无法识别的标签回落到西班牙语。
func NewLocaleFormatter(tag string, loc *time.Location) *LocaleFormatter {
	if loc == nil {
		loc = time.Local
	}
	return &LocaleFormatter{translator: translatorFor(tag), location: loc}
}

func translatorFor(tag string) locales.Translator {
	t, err := language.Parse(tag)
	if err != nil {
		return es.New()
	}
	base, _ := t.Base()
	if region, conf := t.Region(); conf == language.Exact {
		if fn, ok := translators[base.String()+"_"+region.String()]; ok {
			return fn()
		}
	}
	if fn, ok := translators[base.String()]; ok {
		return fn()
	}
	return es.New()
}

// FormatDate 在查看者时区打印 t，如 "24 dic. 2025"、"Dec 24, 2025"。
func (f *LocaleFormatter) FormatDate(t time.Time) string {
	return f.translator.FmtDateMedium(t.In(f.location))
}

// Locale 返回实际选中的 CLDR 区域。
func (f *LocaleFormatter) Locale() string {
	return f.translator.Locale()
}

// Location 返回解析日期所用的时区。
func (f *LocaleFormatter) Location() *time.Location {
	return f.location
}
