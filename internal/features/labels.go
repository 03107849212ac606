package features

import (
	"strings"
	"unicode"

	apperrors "delivery-estimator/internal/common/errors"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Language string

const (
	English Language = "en"
	Spanish Language = "es"
)

// ParseLanguage accepts "en"/"es" and common spellings; anything else is English.
func ParseLanguage(s string) Language {
	switch fold(s) {
	case "es", "spa", "spanish", "espanol":
		return Spanish
	default:
		return English
	}
}

// Category is a canonical store category.
type Category int

const (
	American Category = iota
	Asian
	Beverages
	Desserts
	European
	FastFood
	Healthy
	Indian
	Italian
	Latin
	Mediterranean
	Mexican
	Other
)

var categoryLabels = [...]struct {
	en, es string
	factor float64
}{
	American:      {"American", "Americana", 1.2},
	Asian:         {"Asian", "Asiática", 1.1},
	Beverages:     {"Beverages", "Bebidas", 0.9},
	Desserts:      {"Desserts", "Postres", 1.0},
	European:      {"European", "Europea", 1.3},
	FastFood:      {"Fast Food", "Comida Rápida", 1.4},
	Healthy:       {"Healthy", "Saludable", 1.1},
	Indian:        {"Indian", "India", 1.2},
	Italian:       {"Italian", "Italiana", 1.0},
	Latin:         {"Latin", "Latina", 1.1},
	Mediterranean: {"Mediterranean", "Mediterránea", 1.0},
	Mexican:       {"Mexican", "Mexicana", 1.2},
	Other:         {"Other", "Otros", 1.0},
}

// Categories returns every category in table order.
func Categories() []Category {
	out := make([]Category, len(categoryLabels))
	for i := range categoryLabels {
		out[i] = Category(i)
	}
	return out
}

func (c Category) valid() bool {
	return c >= 0 && int(c) < len(categoryLabels)
}

// String returns the canonical English label.
func (c Category) String() string {
	return c.Label(English)
}

func (c Category) Label(lang Language) string {
	if !c.valid() {
		return ""
	}
	if lang == Spanish {
		return categoryLabels[c].es
	}
	return categoryLabels[c].en
}

// AdjustmentFactor scales partner density per category. Unknown values get 1.0.
func AdjustmentFactor(c Category) float64 {
	if !c.valid() {
		return 1.0
	}
	return categoryLabels[c].factor
}

// Day is a weekday indexed Monday=0..Sunday=6.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayLabels = [...]struct{ en, es string }{
	Monday:    {"Monday", "Lunes"},
	Tuesday:   {"Tuesday", "Martes"},
	Wednesday: {"Wednesday", "Miércoles"},
	Thursday:  {"Thursday", "Jueves"},
	Friday:    {"Friday", "Viernes"},
	Saturday:  {"Saturday", "Sábado"},
	Sunday:    {"Sunday", "Domingo"},
}

func Days() []Day {
	out := make([]Day, len(dayLabels))
	for i := range dayLabels {
		out[i] = Day(i)
	}
	return out
}

func (d Day) valid() bool {
	return d >= 0 && int(d) < len(dayLabels)
}

func (d Day) String() string {
	return d.Label(English)
}

func (d Day) Label(lang Language) string {
	if !d.valid() {
		return ""
	}
	if lang == Spanish {
		return dayLabels[d].es
	}
	return dayLabels[d].en
}

// Index is the numeric day used at training time.
func (d Day) Index() int {
	return int(d)
}

var (
	categoryByLabel = make(map[string]Category)
	dayByLabel      = make(map[string]Day)
)

func init() {
	for i, l := range categoryLabels {
		categoryByLabel[fold(l.en)] = Category(i)
		categoryByLabel[fold(l.es)] = Category(i)
	}
	for i, l := range dayLabels {
		dayByLabel[fold(l.en)] = Day(i)
		dayByLabel[fold(l.es)] = Day(i)
	}
}

// CanonicalCategory resolves an English or Spanish label. Case, surrounding
// whitespace and diacritics are ignored.
func CanonicalCategory(label string) (Category, error) {
	if c, ok := categoryByLabel[fold(label)]; ok {
		return c, nil
	}
	return 0, apperrors.NewUnknownCategoryError(label)
}

// CanonicalDay resolves an English or Spanish weekday label.
func CanonicalDay(label string) (Day, error) {
	if d, ok := dayByLabel[fold(label)]; ok {
		return d, nil
	}
	return 0, apperrors.NewUnknownDayError(label)
}

// fold lowercases, strips combining marks and collapses whitespace.
// Transformers are stateful, so a fresh chain is built per call.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}
