package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/rentroll/rentroll/pkg/property"
)

// Group names in the order they are reported.
const (
	GroupPropertyDetails    = "propertyDetails"
	GroupUnderwritingInputs = "underwritingInputs"
	GroupBrokers            = "brokers"
	GroupTenants            = "tenants"
)

// Snapshots returns the ordered field changes between old and new.
// Structurally equal snapshots yield an empty, non-nil slice.
func Snapshots(old, new property.Snapshot) ([]property.FieldChange, error) {
	changes := make([]property.FieldChange, 0)

	oldDetails, err := toMap(old.PropertyDetails)
	if err != nil {
		return nil, err
	}
	newDetails, err := toMap(new.PropertyDetails)
	if err != nil {
		return nil, err
	}
	changes = appendFields(changes, GroupPropertyDetails, oldDetails, newDetails)

	oldInputs, err := toMap(old.UnderwritingInputs)
	if err != nil {
		return nil, err
	}
	newInputs, err := toMap(new.UnderwritingInputs)
	if err != nil {
		return nil, err
	}
	changes = appendFields(changes, GroupUnderwritingInputs, oldInputs, newInputs)

	changes, err = appendCollection(changes, GroupBrokers, old.Brokers, new.Brokers)
	if err != nil {
		return nil, err
	}
	changes, err = appendCollection(changes, GroupTenants, old.Tenants, new.Tenants)
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// Equal reports whether the two snapshots produce no changes.
func Equal(old, new property.Snapshot) (bool, error) {
	changes, err := Snapshots(old, new)
	if err != nil {
		return false, err
	}
	return len(changes) == 0, nil
}

// appendFields compares two flat objects over the union of their keys.
// A key missing on one side compares as nil.
func appendFields(changes []property.FieldChange, prefix string, old, new map[string]any) []property.FieldChange {
	for _, key := range unionKeys(old, new) {
		ov, nv := old[key], new[key]
		if reflect.DeepEqual(ov, nv) {
			continue
		}
		changes = append(changes, property.FieldChange{
			Field:    prefix + "." + key,
			OldValue: ov,
			NewValue: nv,
		})
	}
	return changes
}

type keyed struct {
	id     string
	fields map[string]any
}

func appendCollection[T any](changes []property.FieldChange, group string, old, new []T) ([]property.FieldChange, error) {
	oldRows, err := keyRows(old)
	if err != nil {
		return nil, err
	}
	newRows, err := keyRows(new)
	if err != nil {
		return nil, err
	}

	newByID := make(map[string]map[string]any, len(newRows))
	for _, row := range newRows {
		newByID[row.id] = row.fields
	}
	seen := make(map[string]struct{}, len(oldRows))

	for _, row := range oldRows {
		seen[row.id] = struct{}{}
		path := fmt.Sprintf("%s[%s]", group, row.id)
		next, ok := newByID[row.id]
		if !ok {
			changes = append(changes, property.FieldChange{Field: path, OldValue: row.fields, NewValue: nil})
			continue
		}
		changes = appendFields(changes, path, row.fields, next)
	}

	for _, row := range newRows {
		if _, ok := seen[row.id]; ok {
			continue
		}
		changes = append(changes, property.FieldChange{
			Field:    fmt.Sprintf("%s[%s]", group, row.id),
			OldValue: nil,
			NewValue: row.fields,
		})
	}
	return changes, nil
}

// keyRows decodes each entity to a generic object keyed by its "id" field.
// Later rows with a repeated id replace earlier ones.
func keyRows[T any](rows []T) ([]keyed, error) {
	out := make([]keyed, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		fields, err := toMap(row)
		if err != nil {
			return nil, err
		}
		id, _ := fields["id"].(string)
		if i, dup := index[id]; dup {
			out[i].fields = fields
			continue
		}
		index[id] = len(out)
		out = append(out, keyed{id: id, fields: fields})
	}
	return out, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return out, nil
}

func unionKeys(a, b map[string]any) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
