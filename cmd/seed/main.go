package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/provider-booking/internal/appointment"
	"github.com/hackgods/provider-booking/internal/auth"
	"github.com/hackgods/provider-booking/internal/config"
	"github.com/hackgods/provider-booking/internal/logging"
	"github.com/hackgods/provider-booking/internal/store"
)

// SeededUser is one line of the seed output, consumed by the simulator.
type SeededUser struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	IsProvider bool      `json:"is_provider"`
	Token      string    `json:"token,omitempty"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the booking store with fake users",
	}
	rootCmd.AddCommand(usersCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create providers and clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, _ := cmd.Flags().GetInt("providers")
			clients, _ := cmd.Flags().GetInt("clients")
			withTokens, _ := cmd.Flags().GetBool("tokens")
			out, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}
			logger := logging.New(cfg.Env, cfg.LogLevel, "seed")

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			st, err := store.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.Close()

			secret := ""
			if withTokens {
				secret = cfg.JWTSecret
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			return seedUsers(ctx, st, w, providers, clients, secret, logger)
		},
	}
	cmd.Flags().Int("providers", 10, "Number of providers to create")
	cmd.Flags().Int("clients", 200, "Number of clients to create")
	cmd.Flags().Bool("tokens", false, "Include a signed access token per user")
	cmd.Flags().String("out", "", "Write the JSON lines to this file instead of stdout")
	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("user-id")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			id, err := uuid.Parse(raw)
			if err != nil {
				return errors.New("--user-id must be a valid UUID")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load: %w", err)
			}

			tok, err := auth.MakeToken(id, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().String("user-id", "", "User to issue the token for")
	cmd.Flags().Duration("ttl", auth.DefaultTTL, "Token lifetime")
	return cmd
}

// seedUsers writes one JSON line per created user to w. Tokens are signed
// only when secret is non-empty.
func seedUsers(ctx context.Context, users appointment.UserWriter, w io.Writer, providers, clients int, secret string, logger zerolog.Logger) error {
	logger.Info().Int("providers", providers).Int("clients", clients).Msg("seeding users")

	enc := json.NewEncoder(w)
	create := func(provider bool) error {
		u := &appointment.User{
			Name:       gofakeit.Name(),
			Email:      fmt.Sprintf("%s.%s@%s", gofakeit.Username(), uuid.NewString()[:8], gofakeit.DomainName()),
			IsProvider: provider,
		}
		if err := users.CreateUser(ctx, u); err != nil {
			return err
		}

		out := SeededUser{ID: u.ID, Name: u.Name, Email: u.Email, IsProvider: u.IsProvider}
		if secret != "" {
			tok, err := auth.MakeToken(u.ID, secret, auth.DefaultTTL)
			if err != nil {
				return err
			}
			out.Token = tok
		}
		return enc.Encode(out)
	}

	for i := 0; i < providers; i++ {
		if err := create(true); err != nil {
			return fmt.Errorf("seed provider: %w", err)
		}
	}
	logger.Info().Msg("providers seeded")

	for i := 0; i < clients; i++ {
		if err := create(false); err != nil {
			return fmt.Errorf("seed client: %w", err)
		}
		if (i+1)%500 == 0 {
			logger.Info().Msgf("clients seeded: %d/%d", i+1, clients)
		}
	}

	logger.Info().Msg("seed complete")
	return nil
}
