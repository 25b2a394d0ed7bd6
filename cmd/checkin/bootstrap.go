package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/app"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/auditctx"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/database"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/directory"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/render"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/services"
	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/store"
	"github.com/LACC-DEVLINK/checkin-exercito-api/pkg/logger"
)

const defaultAuditActor = "cli"

// runtimeStack bundles the long-lived services a command works with.
type runtimeStack struct {
	DB        *gorm.DB
	Store     *store.CredentialStore
	Audit     *services.AuditService
	Issuer    *credential.Issuer
	Validator *credential.Validator
	Batcher   *credential.Batcher
	Cards     *services.CardService
	Directory *directory.Directory
}

// bootstrapRuntime opens the database and assembles the credential services.
func bootstrapRuntime(cfg *app.Config) (*runtimeStack, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	stack := &runtimeStack{}
	success := false
	defer func() {
		if !success {
			stack.Close()
		}
	}()

	var err error
	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if stack.Store, err = store.NewCredentialStore(stack.DB); err != nil {
		return nil, err
	}

	if stack.Audit, err = services.NewAuditService(stack.DB, services.WithAuditActor(defaultAuditActor)); err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}

	signer, err := credential.NewSigner(cfg.Credentials.Secret)
	if err != nil {
		return nil, err
	}

	encoder := render.NewQREncoder(render.WithQRSize(cfg.Credentials.QRSize))

	stack.Issuer, err = credential.NewIssuer(stack.Store, signer,
		credential.WithEncoder(encoder),
		credential.WithTTL(cfg.Credentials.TTL),
		credential.WithIssuerAuditor(stack.Audit),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise issuer: %w", err)
	}

	stack.Validator, err = credential.NewValidator(stack.Store, signer,
		credential.WithValidatorAuditor(stack.Audit),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise validator: %w", err)
	}

	stack.Batcher, err = credential.NewBatcher(stack.Issuer,
		credential.WithConcurrency(cfg.Credentials.BatchConcurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise batcher: %w", err)
	}

	var cardOpts []services.CardServiceOption
	title := cfg.Credentials.SheetTitle
	if path := strings.TrimSpace(cfg.Credentials.Directory); path != "" {
		if stack.Directory, err = directory.Load(path); err != nil {
			return nil, err
		}
		cardOpts = append(cardOpts, services.WithProfiles(stack.Directory))
		if title == "" {
			title = stack.Directory.Title()
		}
	}

	renderer, err := render.NewCardRenderer(title)
	if err != nil {
		return nil, err
	}

	if stack.Cards, err = services.NewCardService(stack.Store, encoder, renderer, cardOpts...); err != nil {
		return nil, err
	}

	success = true
	return stack, nil
}

// Close releases the database connection.
func (s *runtimeStack) Close() {
	if s == nil || s.DB == nil {
		return
	}
	if err := database.Close(s.DB); err != nil {
		logger.WithModule("bootstrap").Warn("failed to close database", zap.Error(err))
	}
	s.DB = nil
}

// subjectsFromArgs returns args, or every directory subject when all is set.
func (s *runtimeStack) subjectsFromArgs(args []string, all bool) ([]string, error) {
	if !all {
		if len(args) == 0 {
			return nil, errors.New("provide at least one subject id or --all")
		}
		return args, nil
	}
	if len(args) > 0 {
		return nil, errors.New("subject ids cannot be combined with --all")
	}
	if s.Directory == nil {
		return nil, errors.New("--all requires credentials.directory to be configured")
	}
	return s.Directory.SubjectIDs(), nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Debug("database ready", zap.String("driver", dbCfg.Driver))
	return db, nil
}

// withRuntime bootstraps the stack for the duration of fn.
func withRuntime(ctx context.Context, state *cliState, fn func(ctx context.Context, rt *runtimeStack) error) error {
	rt, err := bootstrapRuntime(state.cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	defer func() { _ = logger.Sync() }()

	return fn(auditctx.WithActor(ctx, state.actor), rt)
}
