package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		shows, err := app.FindCollectionByNameOrId("shows")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("schedules")
		collection.Fields.Add(
			&core.RelationField{
				Name:         "show",
				Required:     true,
				CollectionId: shows.Id,
				MaxSelect:    1,
			},
			&core.DateField{Name: "starts_at", Required: true},
			&core.NumberField{Name: "total_seats"},
		)
		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("schedules")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
