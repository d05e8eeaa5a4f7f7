package repo

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
)

// Setting is one category/name pair. Value is JSON.
type Setting struct {
	Category string
	Name     string
	Value    string
}

type SettingClient struct {
	config
}

func (c *SettingClient) All(ctx context.Context) ([]Setting, error) {
	var out []Setting
	err := c.query(ctx, "list settings", c.builder().Select("category", "name", "value").
		From(c.table("settings")).
		OrderBy("category", "name"), func(rows *entsql.Rows) error {
		var s Setting
		if err := rows.Scan(&s.Category, &s.Name, &s.Value); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

// Set upserts a setting.
func (c *SettingClient) Set(ctx context.Context, s Setting) error {
	match := entsql.And(entsql.EQ("category", s.Category), entsql.EQ("name", s.Name))
	n, err := c.exec(ctx, "update setting", c.builder().Update("settings").Set("value", s.Value).Where(match))
	if err != nil || n > 0 {
		return err
	}
	_, err = c.insert(ctx, "create setting", c.builder().Insert("settings").
		Columns("category", "name", "value").
		Values(s.Category, s.Name, s.Value))
	return err
}
