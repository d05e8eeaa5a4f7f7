package repo

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

// CustomField is a booking form field definition.
type CustomField struct {
	ID       int64
	Label    string
	Type     string
	Required bool
	Position int
}

type CustomFieldClient struct {
	config
}

func (c *CustomFieldClient) List(ctx context.Context) ([]*CustomField, error) {
	var out []*CustomField
	err := c.query(ctx, "list custom fields", c.builder().Select("id", "label", "type", "required", "position").
		From(c.table("custom_fields")).
		OrderBy("position", "id"), func(rows *entsql.Rows) error {
		var f CustomField
		if err := rows.Scan(&f.ID, &f.Label, &f.Type, &f.Required, &f.Position); err != nil {
			return err
		}
		out = append(out, &f)
		return nil
	})
	return out, err
}

func (c *CustomFieldClient) Create(ctx context.Context, f *CustomField) error {
	id, err := c.insert(ctx, "create custom field", c.builder().Insert("custom_fields").
		Columns("label", "type", "required", "position").
		Values(f.Label, f.Type, f.Required, f.Position))
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

func (c *CustomFieldClient) LinkEvent(ctx context.Context, fieldID, eventID int64) error {
	_, err := c.insert(ctx, "link custom field event", c.builder().Insert("custom_fields_events").
		Columns("custom_field_id", "event_id").
		Values(fieldID, eventID))
	return err
}

// EventFieldIDs returns the custom fields linked to the event.
func (c *CustomFieldClient) EventFieldIDs(ctx context.Context, eventID int64) ([]int64, error) {
	var out []int64
	err := c.query(ctx, "list event custom fields", c.builder().Select("custom_field_id").
		From(c.table("custom_fields_events")).
		Where(entsql.EQ("event_id", eventID)), func(rows *entsql.Rows) error {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out = append(out, id)
		return nil
	})
	return out, err
}
