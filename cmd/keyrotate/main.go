// Command keyrotate re-seals stored tenant connection strings under the
// primary encryption key. List the new key first in the configured keys and
// keep the old ones until the rotation has run.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/cryptox"
	"github.com/dmitrijs2005/estatematch/internal/flagx"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/server/config"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/estatematch/internal/server/services"
	"golang.org/x/term"
)

var errAborted = errors.New("rotation aborted")

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

type rotator interface {
	Pending(ctx context.Context) (int, error)
	Rotate(ctx context.Context) (int, error)
}

type options struct {
	yes    bool
	dryRun bool
}

func parseOptions(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("keyrotate", flag.ContinueOnError)
	fs.BoolVar(&o.yes, "y", false, "rotate without asking")
	fs.BoolVar(&o.dryRun, "dry-run", false, "only count stale secrets")
	err := fs.Parse(flagx.FilterArgs(args, []string{"-y", "-dry-run"}))
	return o, err
}

// confirm asks on interactive terminals only; without one, -y is required.
func confirm(in io.Reader, out io.Writer, fd int, pending int) (bool, error) {
	if !isTerminal(fd) {
		return false, fmt.Errorf("%w: not a terminal, pass -y to confirm", errAborted)
	}
	if _, err := fmt.Fprintf(out, "Re-seal %d tenant secret(s) under the primary key? [y/N]\n> ", pending); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func run(ctx context.Context, r rotator, o options, in io.Reader, out io.Writer, fd int) error {
	pending, err := r.Pending(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d tenant secret(s) sealed by an old key\n", pending)
	if pending == 0 || o.dryRun {
		return nil
	}

	if !o.yes {
		ok, err := confirm(in, out, fd, pending)
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	n, err := r.Rotate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d tenant secret(s) rotated\n", n)
	return nil
}

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	o, err := parseOptions(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	logger, err := logging.New(logging.Options{Backend: cfg.LogBackend, JSON: cfg.LogJSON, Debug: cfg.Debug})
	if err != nil {
		log.Fatalf("%v", err)
	}
	keyring, err := cryptox.NewKeyring(cfg.EncryptionKeys)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	r := services.NewKeyRotator(db, repomanager.NewPostgresRepositoryManager(), keyring, logger)
	if err := run(ctx, r, o, os.Stdin, os.Stdout, int(os.Stdin.Fd())); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}
}
