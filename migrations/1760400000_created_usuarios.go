package migrations

import (
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection(models.CollectionUsuarios)

		collection.Fields.Add(
			&core.TextField{Name: "nome", Required: true, Max: 120},
			&core.EmailField{Name: "email", Required: true},
			&core.TextField{Name: "senha_hash", Required: true, Hidden: true},
			&core.SelectField{Name: "role", Required: true, MaxSelect: 1, Values: models.Roles},
			&core.TextField{Name: "avatar", Max: 255},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_usuarios_email", true, "email", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(models.CollectionUsuarios)
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
