package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/noah-isme/curriculum-api/internal/curriculum"
	"github.com/noah-isme/curriculum-api/internal/dto"
	"github.com/noah-isme/curriculum-api/internal/models"
)

var errHelp = errors.New("help provided")

type importer interface {
	PlanImport(ctx context.Context, payload []byte) curriculum.ImportPlan
	CommitImport(ctx context.Context, actor models.Actor, req dto.ImportCommitRequest) (*dto.ImportCommitResult, error)
}

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type commandLine struct {
	importer importer
	users    userLookup
	out      io.Writer
	logger   *zap.Logger
	readFile func(string) ([]byte, error)
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  plan -file FILE                 - preview how FILE reconciles with the stored curriculum")
	fmt.Fprintln(cli.out, "  commit -file FILE -admin EMAIL  - import FILE as the given administrator")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	planCmd := flag.NewFlagSet("plan", flag.ContinueOnError)
	planFile := planCmd.String("file", "", "JSON array of curriculum records")
	commitCmd := flag.NewFlagSet("commit", flag.ContinueOnError)
	commitFile := commitCmd.String("file", "", "JSON array of curriculum records")
	commitAdmin := commitCmd.String("admin", "", "Email of the administrator performing the import")

	switch args[1] {
	case "plan":
		if err := planCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *planFile == "" {
			planCmd.Usage()
			return errHelp
		}
		return cli.plan(ctx, *planFile)
	case "commit":
		if err := commitCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *commitFile == "" || *commitAdmin == "" {
			commitCmd.Usage()
			return errHelp
		}
		return cli.commit(ctx, *commitFile, *commitAdmin)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) plan(ctx context.Context, file string) error {
	payload, err := cli.read(file)
	if err != nil {
		return err
	}
	plan := cli.importer.PlanImport(ctx, payload)
	cli.logger.Info("import planned",
		zap.String("file", file),
		zap.Int("added", plan.Added),
		zap.Int("updated", plan.Updated),
		zap.Int("errors", len(plan.Errors)))
	return cli.print(plan)
}

func (cli *commandLine) commit(ctx context.Context, file, adminEmail string) error {
	payload, err := cli.read(file)
	if err != nil {
		return err
	}
	user, err := cli.users.FindByEmail(ctx, adminEmail)
	if err != nil {
		return fmt.Errorf("look up %s: %w", adminEmail, err)
	}
	if !user.Active {
		return fmt.Errorf("account %s is disabled", adminEmail)
	}

	actor := models.Actor{ID: user.ID, Name: user.FullName, Role: user.Role}
	res, err := cli.importer.CommitImport(ctx, actor, dto.ImportCommitRequest{Items: payload})
	if err != nil {
		return err
	}
	cli.logger.Info("import committed",
		zap.String("file", file),
		zap.String("actor_id", actor.ID),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("collection_size", res.Collection))
	return cli.print(res)
}

func (cli *commandLine) read(file string) ([]byte, error) {
	readFile := cli.readFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	payload, err := readFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return payload, nil
}

func (cli *commandLine) print(v any) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
