package migrations

import (
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		usuarios, err := app.FindCollectionByNameOrId(models.CollectionUsuarios)
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection(models.CollectionQRLoginTokens)

		collection.Fields.Add(
			&core.RelationField{
				Name:          "usuario",
				Required:      true,
				CollectionId:  usuarios.Id,
				CascadeDelete: true,
				MaxSelect:     1,
			},
			&core.TextField{Name: "jti", Required: true, Max: 64},
			// empty while the token is unconsumed
			&core.DateField{Name: "used_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_qr_login_tokens_jti", true, "jti", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(models.CollectionQRLoginTokens)
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
