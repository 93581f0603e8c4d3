package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/restin-ai/authcore/internal/config"
	"github.com/restin-ai/authcore/internal/identity"
	identitypg "github.com/restin-ai/authcore/internal/identity/pg"
	"github.com/restin-ai/authcore/internal/security/pincode"
)

// newSeedCmd da de alta principals de demo contra STORAGE_DSN.
// Solo dev: las cuentas reales se crean por el panel administrativo.
func newSeedCmd() *cobra.Command {
	var venueID string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Inserta principals de demostración en Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Storage.DSN == "" {
				return fmt.Errorf("seed requiere STORAGE_DSN")
			}

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			store := identitypg.New(pool)

			if venueID == "" {
				venueID = uuid.NewString()
			}

			seeds := []struct {
				name  string
				email string
				role  string
				pin   string
			}{
				{"Ana García", "ana@restin.ai", "manager", "4821"},
				{"Luis Pereira", "luis@restin.ai", "waiter", "1573"},
				{"Caja Principal", "caja@restin.ai", "cashier", "9034"},
			}

			for _, s := range seeds {
				pinHash, err := pincode.Hash(pincode.Default, s.pin)
				if err != nil {
					return err
				}
				email := s.email
				p := &identity.Principal{
					ID:              uuid.NewString(),
					VenueID:         venueID,
					Role:            s.role,
					DisplayName:     s.name,
					Email:           &email,
					LinkedEmails:    []string{},
					Provider:        identity.ProviderLocal,
					PINHash:         &pinHash,
					AllowedVenueIDs: []string{venueID},
					DefaultVenueID:  venueID,
				}
				if err := store.Insert(ctx, p); err != nil {
					return fmt.Errorf("seed %s: %w", s.email, err)
				}
				fmt.Printf("principal %s (%s) id=%s pin=%s\n", s.name, s.role, p.ID, s.pin)
			}
			fmt.Printf("venue_id=%s\n", venueID)
			return nil
		},
	}

	cmd.Flags().StringVar(&venueID, "venue-id", "", "venue destino (default: uuid nuevo)")
	return cmd
}
