// Command seed_admin creates the first admin account, or promotes an
// existing account to admin.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/xelth-com/sealflow/internal/audit"
	"github.com/xelth-com/sealflow/internal/cache"
	"github.com/xelth-com/sealflow/internal/config"
	"github.com/xelth-com/sealflow/internal/database"
	"github.com/xelth-com/sealflow/internal/identity"
	"github.com/xelth-com/sealflow/internal/logger"
	"github.com/xelth-com/sealflow/internal/models"
	"github.com/xelth-com/sealflow/internal/store"
	"github.com/xelth-com/sealflow/internal/store/dynamo"
	"github.com/xelth-com/sealflow/internal/store/postgres"
	"github.com/xelth-com/sealflow/internal/utils"
)

type options struct {
	email    string
	password string
	name     string
}

// seeder is what seed writes to
type seeder struct {
	users store.UserStore
	roles cache.RoleCache
	audit *audit.Logger
}

// operator is the actor recorded for seeded changes
var operator = identity.Principal{ID: "seed_admin", Name: "seed_admin", Role: models.RoleAdmin}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "seed_admin: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("seed_admin", pflag.ContinueOnError)
	flagSet.StringVar(&opts.email, "email", "", "admin email address (required)")
	flagSet.StringVar(&opts.password, "password", "", "password; required for a new account, resets an existing one (default $SEED_ADMIN_PASSWORD)")
	flagSet.StringVar(&opts.name, "name", "Administrator", "display name for a new account")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if opts.password == "" {
		opts.password = os.Getenv("SEED_ADMIN_PASSWORD")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Store.Backend == "memory" {
		return errors.New("STORE_BACKEND=memory keeps no accounts to seed")
	}
	zlog, err := logger.New(cfg.NodeEnv, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	db, err := database.Connect(cfg.Database, zlog)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.AutoMigrate(postgres.Models()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	ctx := context.Background()
	pg := postgres.New(db.DB)
	var activity store.ActivityStore = pg
	if cfg.Store.Backend == "dynamodb" {
		client, err := dynamo.NewClient(ctx, cfg.Store.AWSRegion, cfg.Store.DynamoEndpoint)
		if err != nil {
			return fmt.Errorf("dynamodb client: %w", err)
		}
		activity = dynamo.New(client, cfg.Store.ApplicationsTable, cfg.Store.LogsTable)
	}
	roles, closeCache := cache.Open(ctx, cfg.Cache.RedisURL, cfg.Cache.RoleTTL, zlog)
	defer closeCache()

	created, err := seed(ctx, seeder{users: pg, roles: roles, audit: audit.New(activity, zlog)}, opts, time.Now())
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("Created admin account %s\n", opts.email)
	} else {
		fmt.Printf("Promoted %s to admin\n", opts.email)
	}
	return nil
}

// seed creates or promotes the admin account and reports whether it was created
func seed(ctx context.Context, s seeder, opts options, now time.Time) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(opts.email))
	if email == "" {
		return false, errors.New("--email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		from := user.Role
		user.Role = models.RoleAdmin
		user.IsActive = true
		user.UpdatedAt = now.UTC()
		if opts.password != "" {
			if user.Password, err = utils.HashPassword(opts.password); err != nil {
				return false, fmt.Errorf("hash password: %w", err)
			}
		}
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return false, fmt.Errorf("promote %s: %w", email, err)
		}
		s.roles.Delete(ctx, user.ID)
		if from != models.RoleAdmin {
			s.audit.Record(ctx, audit.PromotionEntry(operator, user, from))
		}
		return false, nil
	case !errors.Is(err, store.ErrNotFound):
		return false, fmt.Errorf("look up %s: %w", email, err)
	}

	if len(opts.password) < 8 {
		return false, errors.New("--password of at least 8 characters is required for a new account")
	}
	hash, err := utils.HashPassword(opts.password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	admin := &models.UserAuth{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  hash,
		Name:      opts.name,
		Role:      models.RoleAdmin,
		CreatedBy: "seed_admin",
		IsActive:  true,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.users.CreateUser(ctx, admin); err != nil {
		return false, fmt.Errorf("create %s: %w", email, err)
	}
	s.audit.Record(ctx, audit.AccountEntry(operator, admin, true))
	return true, nil
}
