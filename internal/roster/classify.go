package roster

import (
	"strings"

	"github.com/sells-group/participation-cli/internal/model"
)

// ParticipationToken is the mark counted once per contribution.
const ParticipationToken = "#"

// Cell is the text of one raw cell in the forms the rules match against.
type Cell struct {
	Text    string // NFC-normalized raw text
	Upper   string // Text upper-cased
	Trimmed string // Upper with surrounding whitespace removed
}

// NewCell prepares raw text for matching.
func NewCell(raw string) Cell {
	text := normalizeText(raw)
	upper := strings.ToUpper(text)
	return Cell{Text: text, Upper: upper, Trimmed: strings.TrimSpace(upper)}
}

// Blank reports whether the cell holds nothing but whitespace.
func (c Cell) Blank() bool { return c.Trimmed == "" }

// Predicate decides whether a rule applies to a cell.
type Predicate func(Cell) bool

// Rule maps cells matching Match to Status. Rules are evaluated in order and the first
// match wins.
type Rule struct {
	Name   string
	Status model.Status
	Match  Predicate
}

// ContainsAny matches when the raw text contains any of the symbols.
func ContainsAny(symbols ...string) Predicate {
	return func(c Cell) bool {
		for _, s := range symbols {
			if strings.Contains(c.Text, s) {
				return true
			}
		}
		return false
	}
}

// Equals matches when the trimmed, upper-cased text equals one of the values.
func Equals(values ...string) Predicate {
	return func(c Cell) bool {
		for _, v := range values {
			if c.Trimmed == v {
				return true
			}
		}
		return false
	}
}

// ContainsWord matches when the upper-cased text contains word.
func ContainsWord(word string) Predicate {
	return func(c Cell) bool { return strings.Contains(c.Upper, word) }
}

// AnyOf matches when any of the predicates does.
func AnyOf(preds ...Predicate) Predicate {
	return func(c Cell) bool {
		for _, p := range preds {
			if p(c) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the attendance precedence: Excused, then Present, then Absent.
// A participation token implies presence, but an excused marker still wins over it.
var DefaultRules = []Rule{
	{
		Name:   "excused",
		Status: model.StatusExcused,
		Match:  AnyOf(ContainsAny("$"), Equals("E"), ContainsWord("EXCUSED")),
	},
	{
		Name:   "present",
		Status: model.StatusPresent,
		Match:  AnyOf(ContainsAny("*", "✓", "✔", ParticipationToken), Equals("P"), ContainsWord("PRESENT")),
	},
	{
		Name:   "absent",
		Status: model.StatusAbsent,
		Match:  AnyOf(ContainsAny("%"), Equals("A", "X"), ContainsWord("ABSENT")),
	},
}

// DefaultRuleName is reported when no rule matched and the fallback status applied.
const DefaultRuleName = "default"

// Classification is the full outcome of classifying one cell.
type Classification struct {
	Count  int
	Status model.Status
	Rule   string
}

// Unrecognized reports whether a non-blank cell fell through to the fallback.
func (c Classification) Unrecognized(cell Cell) bool {
	return c.Rule == DefaultRuleName && !cell.Blank()
}

// Classifier maps raw cell text to a participation count and attendance status.
type Classifier struct {
	rules    []Rule
	fallback model.Status
}

// NewClassifier builds a classifier over rules. With no rules it uses DefaultRules.
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules, fallback: model.StatusAbsent}
}

// Classify returns the number of participation tokens in raw and its attendance status.
// An absent cell is passed as "".
func (c *Classifier) Classify(raw string) (int, model.Status) {
	res := c.Explain(NewCell(raw))
	return res.Count, res.Status
}

// Explain classifies a prepared cell and reports which rule decided it.
func (c *Classifier) Explain(cell Cell) Classification {
	out := Classification{
		Count:  strings.Count(cell.Text, ParticipationToken),
		Status: c.fallback,
		Rule:   DefaultRuleName,
	}
	for _, r := range c.rules {
		if r.Match(cell) {
			out.Status = r.Status
			out.Rule = r.Name
			break
		}
	}
	return out
}
