package cmd

import (
	"context"
	"errors"
	"fmt"

	"ru-ticket/internal/services"

	"github.com/pocketbase/pocketbase"
	"github.com/spf13/cobra"
)

// newSeedAdminCommand registers "seed-admin", which creates an admin usuario
// or promotes an existing one.
func newSeedAdminCommand(app *pocketbase.PocketBase, auth *services.AuthService) *cobra.Command {
	var in services.RegisterInput

	command := &cobra.Command{
		Use:          "seed-admin",
		Short:        "Creates or promotes an admin usuario",
		SilenceUsage: true,
		RunE: func(command *cobra.Command, args []string) error {
			if in.Email == "" || in.Senha == "" {
				return errors.New("--email and --senha are required")
			}
			if in.Nome == "" {
				in.Nome = "Administrador"
			}

			if !app.IsBootstrapped() {
				if err := app.Bootstrap(); err != nil {
					return fmt.Errorf("bootstrap: %w", err)
				}
			}
			if err := app.RunAllMigrations(); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}

			usuario, err := auth.EnsureAdmin(context.Background(), in)
			if err != nil {
				return err
			}

			command.Printf("Admin ready: %s <%s> (id %s)\n", usuario.Nome, usuario.Email, usuario.ID)
			return nil
		},
	}

	command.Flags().StringVar(&in.Email, "email", "", "admin email")
	command.Flags().StringVar(&in.Senha, "senha", "", "admin password")
	command.Flags().StringVar(&in.Nome, "nome", "", "display name")

	return command
}
