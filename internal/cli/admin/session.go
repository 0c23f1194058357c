package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/satriadhikara/dock/internal/config"
	"github.com/satriadhikara/dock/internal/repository"
	"github.com/satriadhikara/dock/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func SessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage sessions",
		Long:  "Create session tokens and sweep expired sessions",
	}

	cmd.AddCommand(SessionCreateCmd())
	cmd.AddCommand(SessionSweepCmd())

	return cmd
}

func SessionCreateCmd() *cobra.Command {
	var ttlHours int

	cmd := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Create a session token for a user",
		Long:  "Create a session token that the dock client can use to authenticate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runSessionCreate(args[0], ttlHours, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVar(&ttlHours, "ttl-hours", 0, "Session lifetime in hours (default 168)")

	return cmd
}

func runSessionCreate(userID string, ttlHours int, outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(sessionRepo, uuidGen, "")

	ttl := service.DefaultSessionTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}

	session, err := authSvc.CreateSession(ctx, userID, ttl)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         session.ID,
			"token":      session.Token,
			"user_id":    session.UserID,
			"expires_at": session.ExpiresAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Session created for %s\n", session.UserID)
		fmt.Printf("Token: %s\n", session.Token)
		fmt.Printf("Expires: %s\n", session.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func SessionSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions",
		Long:  "Delete every session whose expiry has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionSweep()
		},
	}
}

func runSessionSweep() error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessionRepo := repository.NewSessionRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(sessionRepo, uuidGen, "")

	deleted, err := authSvc.SweepExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep sessions: %w", err)
	}

	fmt.Printf("Deleted %d expired sessions\n", deleted)
	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
