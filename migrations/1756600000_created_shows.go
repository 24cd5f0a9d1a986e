package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("shows")
		collection.Fields.Add(
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "venue"},
			&core.SelectField{
				Name:      "status",
				Values:    []string{"draft", "published", "ended"},
				MaxSelect: 1,
			},
		)
		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("shows")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
