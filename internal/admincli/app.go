// Package admincli implements the administrative command line for the
// destructive account operations: key destruction and account anonymization.
// Both are gated on typed confirmation tokens.
package admincli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/dmitrijs2005/remindsafe/internal/anonymize"
	"github.com/dmitrijs2005/remindsafe/internal/app"
	"github.com/dmitrijs2005/remindsafe/internal/config"
	"github.com/dmitrijs2005/remindsafe/internal/destruction"
	"github.com/dmitrijs2005/remindsafe/internal/flagx"
)

type App struct {
	cfg  *config.Config
	base *app.App
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	base, err := app.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, base: base}, nil
}

func (a *App) Close() { a.base.Close() }

// Run dispatches on the first non-flag argument; shared config flags may
// appear anywhere and are ignored here.
func (a *App) Run(ctx context.Context, args []string) error {
	for i, arg := range args {
		switch arg {
		case "destroy-keys":
			return a.destroyKeys(ctx, append(args[:i:i], args[i+1:]...))
		case "anonymize":
			return a.anonymize(ctx, append(args[:i:i], args[i+1:]...))
		}
	}
	return errors.New("usage: admin <destroy-keys|anonymize> [flags]")
}

func (a *App) orchestrator() *destruction.Orchestrator {
	return destruction.NewOrchestrator(
		a.base.MemoryKeys, a.base.LocalKeys, a.base.RemoteKeys, a.base.Logger())
}

func (a *App) destroyKeys(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("destroy-keys", flag.ContinueOnError)
	user := fs.String("user", a.cfg.UserID, "user id")
	scope := fs.String("scope", "all", "all, amk or cross-device")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-user", "-scope"})); err != nil {
		return err
	}

	token, err := GetHiddenInput("Confirmation token", os.Stdout)
	if err != nil {
		return err
	}

	orch := a.orchestrator()
	var report *destruction.Report
	switch *scope {
	case "all":
		report, err = orch.DestroyAllKeys(ctx, *user, token, true)
	case "amk":
		report, err = orch.DestroyAccountMasterKey(ctx, *user, token, true)
	case "cross-device":
		report, err = orch.DestroyCrossDeviceKeys(ctx, *user, token, true)
	default:
		return fmt.Errorf("unknown scope %q", *scope)
	}

	if report != nil {
		fmt.Fprint(os.Stdout, report.Render())
	}
	return err
}

func (a *App) anonymize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("anonymize", flag.ContinueOnError)
	user := fs.String("user", a.cfg.UserID, "user id")
	authToken := fs.String("auth", "", "access token of the account owner")
	out := fs.String("out", "anonymization-certificate.txt", "certificate output path")
	if err := fs.Parse(flagx.FilterArgs(args, []string{"-user", "-auth", "-out"})); err != nil {
		return err
	}

	confirmation, err := GetHiddenInput("Confirmation token", os.Stdout)
	if err != nil {
		return err
	}

	progress := func(p anonymize.Progress) {
		marker := ""
		if p.PointOfNoReturnReached {
			marker = " [point of no return]"
		}
		fmt.Fprintf(os.Stdout, "phase %d/%d (%s)%s\n",
			p.CurrentPhase, p.TotalPhases, anonymize.PhaseName(p.CurrentPhase), marker)
	}

	wf := anonymize.NewWorkflow(
		a.base.Accounts,
		a.base.Local,
		a.orchestrator(),
		a.base.Engine,
		a.base.Audit,
		[]byte(a.cfg.SecretKey),
		progress,
		a.base.Logger(),
	)

	report, runErr := wf.Run(ctx, anonymize.Request{
		UserID:            *user,
		AuthToken:         *authToken,
		ConfirmationToken: confirmation,
	})
	if report == nil {
		return runErr
	}

	cert := anonymize.RenderCertificate(report)
	if err := os.WriteFile(*out, []byte(cert), 0o600); err != nil {
		return errors.Join(runErr, fmt.Errorf("failed to write certificate: %w", err))
	}
	fmt.Fprintf(os.Stdout, "certificate written to %s\n", *out)
	return runErr
}
