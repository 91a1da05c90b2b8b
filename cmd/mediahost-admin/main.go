// Package main is the entry point for the MediaHost admin CLI.
// It operates directly on the database, bypassing the HTTP API, and is meant
// to be run on the host next to the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/mediahost/internal/config"
	"github.com/prn-tf/mediahost/internal/domain"
	"github.com/prn-tf/mediahost/internal/pkg/crypto"
	"github.com/prn-tf/mediahost/internal/repository"
	"github.com/prn-tf/mediahost/internal/repository/postgres"
	"github.com/prn-tf/mediahost/internal/repository/sqlite"
	"github.com/prn-tf/mediahost/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "version" {
		fmt.Printf("MediaHost Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		return
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return
	}

	cfg := config.MustLoad(*configPath)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users, apikeys, closeDB, err := openServices(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer closeDB()

	switch args[0] {
	case "create":
		if len(args) < 3 {
			fatal(fmt.Errorf("usage: mediahost-admin create <username> <password>"))
		}
		out, err := users.Create(ctx, service.CreateUserInput{
			Username:       args[1],
			Password:       args[2],
			SignupPassword: cfg.Signup.Password,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created user %q (id %d)\n", out.User.Username, out.User.ID)
		fmt.Printf("TOTP secret (shown once): %s\n", out.OTPSecret)

	case "list":
		all, err := users.List(ctx)
		if err != nil {
			fatal(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tCREATED\tFILE QUOTA\tTOTAL QUOTA")
		for _, u := range all {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\n",
				u.ID, u.Username, u.CreatedAt.Format(time.RFC3339), u.MaxFileUpload, u.MaxTotalUpload)
		}
		w.Flush()

	case "quota":
		if len(args) < 4 {
			fatal(fmt.Errorf("usage: mediahost-admin quota <user-id> <max-file-bytes> <max-total-bytes>"))
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid user id: %w", err))
		}
		maxFile, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid per-file quota: %w", err))
		}
		maxTotal, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid total quota: %w", err))
		}
		if err := users.SetQuota(ctx, userID, maxFile, maxTotal); err != nil {
			fatal(err)
		}
		fmt.Println("Quota updated")

	case "otp-secret":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: mediahost-admin otp-secret <user-id>"))
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid user id: %w", err))
		}
		secret, err := users.OTPSecret(ctx, userID)
		if err != nil {
			fatal(err)
		}
		fmt.Println(secret)

	case "apikey":
		if len(args) < 3 {
			fatal(fmt.Errorf("usage: mediahost-admin apikey <user-id> <description> [right ...]"))
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid user id: %w", err))
		}
		if _, err := users.GetByID(ctx, userID); err != nil {
			fatal(err)
		}

		// No named rights means a full-capability key.
		rights := domain.FullRightSet()
		if len(args) > 3 {
			rights = domain.NewRightSet()
			for _, name := range args[3:] {
				right, ok := domain.RightByName(name)
				if !ok {
					fatal(fmt.Errorf("unknown right: %s", name))
				}
				rights = rights.With(right)
			}
		}

		out, err := apikeys.Generate(ctx, service.GenerateInput{
			UserID:      userID,
			Description: args[2],
			Rights:      rights,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Created API key %s\n", out.Key.KeyID)
		fmt.Printf("Token (shown once): %s\n", out.Token)

	case "delete":
		if len(args) < 2 {
			fatal(fmt.Errorf("usage: mediahost-admin delete <user-id>"))
		}
		userID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatal(fmt.Errorf("invalid user id: %w", err))
		}
		if err := users.DeleteAccount(ctx, userID); err != nil {
			fatal(err)
		}
		fmt.Println("Account deleted")

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// openServices wires the account services straight onto the configured
// database.
func openServices(ctx context.Context, cfg *config.Config) (*service.UserService, *service.APIKeyService, func(), error) {
	logger := zerolog.New(os.Stderr).Level(zerolog.WarnLevel)

	var (
		userRepo    repository.UserRepository
		apikeyRepo  repository.APIKeyRepository
		chunkRepo   repository.ChunkRepository
		contentRepo repository.ContentRepository
		closeDB     func() error
	)

	switch cfg.Database.Driver {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		userRepo = postgres.NewUserRepository(db)
		apikeyRepo = postgres.NewAPIKeyRepository(db)
		chunkRepo = postgres.NewChunkRepository(db)
		contentRepo = postgres.NewContentRepository(db)
		closeDB = db.Close

	default:
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return nil, nil, nil, err
		}
		userRepo = sqlite.NewUserRepository(db)
		apikeyRepo = sqlite.NewAPIKeyRepository(db)
		chunkRepo = sqlite.NewChunkRepository(db)
		contentRepo = sqlite.NewContentRepository(db)
		closeDB = db.Close
	}

	key, err := cfg.Auth.GetEncryptionKey()
	if err != nil {
		return nil, nil, nil, err
	}
	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, nil, nil, err
	}

	users := service.NewUserService(userRepo, apikeyRepo, contentRepo, chunkRepo, encryptor, cfg.Signup, cfg.Upload, cfg.Auth.SaltLength, logger)
	apikeys := service.NewAPIKeyService(apikeyRepo, cfg.Auth.APITokenLength, logger)
	return users, apikeys, func() { _ = closeDB() }, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`MediaHost Admin CLI

Usage:
  mediahost-admin [-config <path>] <command> [arguments]

Commands:
  create      Create a user: create <username> <password>
  list        List all users
  quota       Set a user's quotas: quota <user-id> <max-file-bytes> <max-total-bytes>
  otp-secret  Print a user's TOTP secret: otp-secret <user-id>
  apikey      Generate an API key: apikey <user-id> <description> [right ...]
  delete      Delete an account and all its content: delete <user-id>
  version     Print version information
  help        Show this help message`)
}
