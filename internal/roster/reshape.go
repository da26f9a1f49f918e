package roster

import (
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/model"
)

// DefaultPlaceholderTopic is used for weeks with no configured topic.
const DefaultPlaceholderTopic = "N/A"

// Topics maps a week label to its lecture topic.
type Topics map[string]string

// Resolve returns the topic for label by exact match, or placeholder.
func (t Topics) Resolve(label, placeholder string) string {
	if topic, ok := t[label]; ok {
		return topic
	}
	return placeholder
}

// Reshaper turns a wide roster table into per-(student, week) records.
type Reshaper struct {
	classifier  *Classifier
	topics      Topics
	placeholder string
	log         *zap.Logger

	onUnrecognized func()
}

// NewReshaper builds a Reshaper. A nil classifier uses DefaultRules and an empty
// placeholder uses DefaultPlaceholderTopic.
func NewReshaper(classifier *Classifier, topics Topics, placeholder string) *Reshaper {
	if classifier == nil {
		classifier = NewClassifier()
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholderTopic
	}
	return &Reshaper{
		classifier:  classifier,
		topics:      topics,
		placeholder: placeholder,
		log:         zap.L().Named("reshape"),
	}
}

// OnUnrecognized registers fn to be called once per unrecognized cell marker.
func (r *Reshaper) OnUnrecognized(fn func()) *Reshaper {
	r.onUnrecognized = fn
	return r
}

// Reshape emits one record for every (student, week) pair in the table. Rows with a
// blank student are dropped. A missing cell still yields a record (count 0, Absent).
func (r *Reshaper) Reshape(t *Table, weeks []model.WeekColumn) []model.ParticipationRecord {
	if t == nil {
		return nil
	}

	topics := make([]string, len(weeks))
	for i, w := range weeks {
		topics[i] = w.Topic
		if topics[i] == "" {
			topics[i] = r.topics.Resolve(w.Label, r.placeholder)
		}
	}

	records := make([]model.ParticipationRecord, 0, len(t.Rows)*len(weeks))
	unrecognized := 0
	for _, row := range t.Rows {
		if row.Student == "" {
			continue
		}
		for i, w := range weeks {
			cell := NewCell(row.Cell(w.Index))
			res := r.classifier.Explain(cell)
			if res.Unrecognized(cell) {
				unrecognized++
				if r.onUnrecognized != nil {
					r.onUnrecognized()
				}
				r.log.Warn("unrecognized attendance marker, defaulting to absent",
					zap.String("student", row.Student),
					zap.String("week", w.Label),
					zap.String("raw", cell.Text),
				)
			}
			records = append(records, model.ParticipationRecord{
				Student:       row.Student,
				Week:          w.Label,
				Date:          w.Date,
				Topic:         topics[i],
				Participation: res.Count,
				Attendance:    res.Status,
			})
		}
	}

	r.log.Debug("reshaped roster",
		zap.Int("records", len(records)),
		zap.Int("weeks", len(weeks)),
		zap.Int("unrecognized", unrecognized),
	)
	return records
}
