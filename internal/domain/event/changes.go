package event

// FieldChange holds the old and new value of one tracked field. Either side may be nil.
type FieldChange struct {
	OldValue any `json:"oldValue"`
	NewValue any `json:"newValue"`
}

// ChangeSet maps a field name to its change. Only differing fields are present.
type ChangeSet map[string]FieldChange

// IsEmpty reports whether nothing changed.
func (c ChangeSet) IsEmpty() bool {
	return len(c) == 0
}

// Has reports whether field changed.
func (c ChangeSet) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// Fields returns the changed field names in tracking order.
func (c ChangeSet) Fields() []string {
	fields := make([]string, 0, len(c))
	for _, f := range trackedFields {
		if c.Has(f.name) {
			fields = append(fields, f.name)
		}
	}
	return fields
}

const (
	FieldName            = "name"
	FieldMaxPlaces       = "maxPlaces"
	FieldStartTime       = "startTime"
	FieldCost            = "cost"
	FieldDurationMinutes = "durationMinutes"
	FieldLocationID      = "locationId"
	FieldStatus          = "status"
)

type trackedField struct {
	name  string
	value func(e *Event) any
	equal func(a, b *Event) bool
}

var trackedFields = []trackedField{
	{
		name:  FieldStartTime,
		value: func(e *Event) any { return e.StartTime },
		// Same instant re-recorded with another offset still counts as a change for subscribers.
		equal: func(a, b *Event) bool {
			_, aOff := a.StartTime.Zone()
			_, bOff := b.StartTime.Zone()
			return a.StartTime.Equal(b.StartTime) && aOff == bOff
		},
	},
	{
		name:  FieldDurationMinutes,
		value: func(e *Event) any { return e.DurationMinutes },
		equal: func(a, b *Event) bool { return a.DurationMinutes == b.DurationMinutes },
	},
	{
		name:  FieldLocationID,
		value: func(e *Event) any { return e.LocationID },
		equal: func(a, b *Event) bool { return a.LocationID == b.LocationID },
	},
	{
		name:  FieldName,
		value: func(e *Event) any { return e.Name },
		equal: func(a, b *Event) bool { return a.Name == b.Name },
	},
	{
		name:  FieldCost,
		value: func(e *Event) any { return FormatCost(e.CostCents) },
		equal: func(a, b *Event) bool { return a.CostCents == b.CostCents },
	},
	{
		name:  FieldMaxPlaces,
		value: func(e *Event) any { return e.MaxPlaces },
		equal: func(a, b *Event) bool { return a.MaxPlaces == b.MaxPlaces },
	},
	{
		name:  FieldStatus,
		value: func(e *Event) any { return e.Status },
		equal: func(a, b *Event) bool { return a.Status == b.Status },
	},
}

// Diff compares two snapshots of the same event and returns the fields that differ.
// It never mutates its arguments.
func Diff(before, after *Event) ChangeSet {
	changes := make(ChangeSet)
	for _, f := range trackedFields {
		if f.equal(before, after) {
			continue
		}
		changes[f.name] = FieldChange{
			OldValue: f.value(before),
			NewValue: f.value(after),
		}
	}
	return changes
}
