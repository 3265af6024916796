package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/streamlend/lending-service/internal/config"
	"github.com/streamlend/lending-service/internal/integrations/ledger"
	"github.com/streamlend/lending-service/internal/repository"
	"github.com/streamlend/lending-service/internal/service"
	"github.com/streamlend/lending-service/internal/utils"
)

// env bundles the pieces most subcommands need
type env struct {
	cfg       *config.Config
	db        *sql.DB
	repo      *repository.Repository
	ledger    *ledger.Client
	authority *service.Authority
	log       *logrus.Logger
}

func newEnv() (*env, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := repository.NewRepository(db)
	ledgerClient := ledger.NewClient(cfg, log)

	authority, err := service.NewAuthority(cfg, repo, ledgerClient, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &env{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		ledger:    ledgerClient,
		authority: authority,
		log:       log,
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

func newGenerateKPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-kp",
		Short: "Generate a fresh keypair and print it base58-encoded",
		RunE: func(cmd *cobra.Command, _ []string) error {
			priv, err := utils.GenerateKeypair()
			if err != nil {
				return err
			}
			cmd.Printf("public key: %s\n", utils.PublicKeyString(priv))
			cmd.Printf("secret: %s\n", utils.EncodeKeypair(priv))
			return nil
		},
	}
}

func newSetupAuthorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup-authority",
		Short: "Persist the configured authority and top up its wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			publicKey, err := e.authority.Setup(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("authority ready: %s\n", publicKey)
			return nil
		},
	}
}

func newSetupTokenCmd() *cobra.Command {
	var (
		decimals int
		name     string
		supply   string
	)
	cmd := &cobra.Command{
		Use:   "setup-token",
		Short: "Provision a lending token: mint, holding account and initial supply",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			amount, err := utils.ParseAmount(supply, decimals)
			if err != nil {
				return err
			}

			tokens := service.NewTokenManager(e.authority, e.repo, e.ledger, e.log)
			if _, err := e.authority.Setup(cmd.Context()); err != nil {
				return err
			}
			result, err := tokens.SetupToken(cmd.Context(), decimals, name, e.authority.PublicKey(), amount)
			if err != nil {
				return err
			}
			cmd.Printf("mint: %s\n", result.MintAddress)
			cmd.Printf("holding account: %s\n", result.AtaAddress)
			return nil
		},
	}
	cmd.Flags().IntVar(&decimals, "decimals", 9, "token decimals (0-18)")
	cmd.Flags().StringVar(&name, "name", "", "token name")
	cmd.Flags().StringVar(&supply, "supply", "", "initial supply in whole tokens")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("supply")
	return cmd
}

func newDisburseLoanCmd() *cobra.Command {
	var (
		user   string
		mint   string
		amount string
	)
	cmd := &cobra.Command{
		Use:   "disburse-loan",
		Short: "Disburse a loan to a user wallet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if err := utils.ValidateAddress(user); err != nil {
				return err
			}
			if err := utils.ValidateAddress(mint); err != nil {
				return err
			}

			tokens := service.NewTokenManager(e.authority, e.repo, e.ledger, e.log)
			transfer := service.NewTransfer(e.authority, e.repo, e.ledger, e.log)
			lend := service.NewLend(e.authority, tokens, transfer, e.repo, e.ledger, nil, nil, e.log)

			info, err := tokens.GetTokenInfo(cmd.Context(), mint)
			if err != nil {
				return err
			}
			parsed, err := utils.ParseAmount(amount, info.Decimals)
			if err != nil {
				return err
			}

			result, err := lend.DisburseLoan(cmd.Context(), user, mint, parsed)
			if err != nil {
				return err
			}
			cmd.Printf("loan %d disbursed, tx %s\n", result.LoanID, result.TxID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "borrower wallet address")
	cmd.Flags().StringVar(&mint, "mint", "", "token mint address")
	cmd.Flags().StringVar(&amount, "amount", "", "loan amount in whole tokens")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newTruncateDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "truncate-db",
		Short: "Delete all loans, transactions and users (tokens and authorities are kept)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := newEnv()
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.repo.TruncateLendingData(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("lending data truncated")
			return nil
		},
	}
}

func main() {
	root := &cobra.Command{
		Use:           "lendctl",
		Short:         "Operational CLI for the lending service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGenerateKPCmd(),
		newSetupAuthorityCmd(),
		newSetupTokenCmd(),
		newDisburseLoanCmd(),
		newTruncateDBCmd(),
	)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
