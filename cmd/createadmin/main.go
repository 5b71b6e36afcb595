// Command createadmin interactively creates an active, verified superuser.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/gatekeeper/internal/admincli"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

// opener connects to the database named by dsn.
type opener func(ctx context.Context, dsn string) (*sql.DB, error)

func main() {
	err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout,
		repomanager.OpenPostgres, repomanager.NewPostgresRepositoryManager())
	if err != nil {
		log.Fatalf("create admin: %v", err)
	}
}

// run loads the config, migrates the schema and prompts for one superuser.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer, open opener, rm repomanager.RepositoryManager) error {
	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	db, err := open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	us := services.NewUserService(db, rm, auth.NewBcryptHasher(cfg.BcryptCost), cfg, logger)
	return admincli.Run(ctx, bufio.NewReader(in), out, us)
}
