package migrations

import (
	"ru-ticket/models"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		tickets, err := app.FindCollectionByNameOrId(models.CollectionTickets)
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection(models.CollectionTicketHistory)

		collection.Fields.Add(
			&core.RelationField{
				Name:          "ticket",
				Required:      true,
				CollectionId:  tickets.Id,
				CascadeDelete: true,
				MaxSelect:     1,
			},
			&core.TextField{Name: "status_anterior", Max: 20},
			&core.TextField{Name: "status_novo", Required: true, Max: 20},
			&core.SelectField{
				Name:      "origem",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{models.HistoryOriginWebhook, models.HistoryOriginAdmin},
			},
			&core.TextField{Name: "pagamento_id", Max: 64},
			&core.AutodateField{Name: "created", OnCreate: true},
		)

		collection.AddIndex("idx_ticket_historico_ticket", false, "ticket", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId(models.CollectionTicketHistory)
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
