package migrations

import (
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

func init() {
	m.Register(func(app core.App) error {
		usuarios, err := app.FindCollectionByNameOrId(models.CollectionUsuarios)
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection(models.CollectionTickets)

		collection.Fields.Add(
			&core.RelationField{
				Name:          "usuario_id",
				Required:      true,
				CollectionId:  usuarios.Id,
				CascadeDelete: false,
				MaxSelect:     1,
			},
			&core.DateField{Name: "data", Required: true},
			&core.NumberField{Name: "quantidade", Required: true, OnlyInt: true, Min: types.Pointer(1.0)},
			&core.NumberField{Name: "valor_total", Min: types.Pointer(0.0)},
			&core.SelectField{Name: "status", Required: true, MaxSelect: 1, Values: models.TicketStatuses},
			&core.BoolField{Name: "subsidiado"},
			// empty until a gateway preference exists
			&core.TextField{Name: "referencia_pagamento", Max: 64},
			&core.TextField{Name: "preferencia_id", Max: 128},
			&core.TextField{Name: "qr_code", Required: true, Max: 64},
			&core.BoolField{Name: "validado"},
			&core.DateField{Name: "validado_em"},
			&core.TextField{Name: "validado_por", Max: 64},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_qr_code", true, "qr_code", "")
		collection.AddIndex("idx_tickets_referencia", false, "referencia_pagamento", "")
		collection.AddIndex("idx_tickets_usuario_data", false, "usuario_id, data", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(models.CollectionTickets)
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
