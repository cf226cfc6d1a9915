package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-capture/config"
	"github.com/marcelsud/webhook-capture/endpoint"
	"github.com/marcelsud/webhook-capture/endpoint/postgres"
	"github.com/marcelsud/webhook-capture/endpoint/sqlite"
	"github.com/marcelsud/webhook-capture/provision"
)

/* Admin CLI for the capture service
 *
 *   cli init                      create the database schema
 *   cli create                    mint one endpoint and print it
 *   cli provision -f FILE         apply an endpoint manifest
 *   cli provision -f FILE -dry-run  validate a manifest without writing
 */

// schemaCreator is implemented by both storage backends.
type schemaCreator interface {
	CreateTables(ctx context.Context) error
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	repo, err := openRepository(cfg)
	if err != nil {
		fail(err)
	}
	defer repo.Close(ctx)

	switch os.Args[1] {
	case "init":
		creator, ok := repo.(schemaCreator)
		if !ok {
			fail(fmt.Errorf("driver %q cannot create its schema", cfg.Driver))
		}
		if err := creator.CreateTables(ctx); err != nil {
			fail(err)
		}
		fmt.Println("Initialized the database.")

	case "create":
		service := endpoint.NewService(repo, cfg.PayloadsPerPage)
		e, err := service.Create(ctx, cfg.BaseURL)
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s\t%s\n", e.ID, e.URL)

	case "provision":
		fs := flag.NewFlagSet("provision", flag.ExitOnError)
		file := fs.String("f", "provision.yaml", "endpoint manifest file")
		dryRun := fs.Bool("dry-run", false, "validate the manifest without writing")
		fs.Parse(os.Args[2:])

		loader := provision.NewLoader()
		if err := loader.Load(*file); err != nil {
			fail(err)
		}
		if *dryRun {
			fmt.Printf("manifest OK: %d entries\n", len(loader.Entries()))
			return
		}

		created, err := loader.Apply(ctx, repo, cfg.BaseURL)
		if err != nil {
			fail(err)
		}
		for _, e := range created {
			fmt.Printf("%s\t%s\n", e.ID, e.URL)
		}

	default:
		usage()
		os.Exit(2)
	}
}

func openRepository(cfg *config.Config) (endpoint.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		return postgres.NewRepository(cfg.DatabaseURL)
	case "sqlite":
		return sqlite.NewRepository(cfg.DBName)
	default:
		return nil, fmt.Errorf("unknown driver %q (expected postgres or sqlite)", cfg.Driver)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: cli <init|create|provision> [flags]")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
