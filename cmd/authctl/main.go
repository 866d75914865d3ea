package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"auth-vault/internal/config"
	"auth-vault/internal/db"
	"auth-vault/internal/fieldcrypt"
	"auth-vault/internal/repository"
	"auth-vault/internal/service"
)

const usage = `usage: authctl <command>

commands:
  migrate            apply pending schema migrations
  purge-otps         delete expired one-time codes
  whois <email>      print the stored profile for an account
  reencrypt          rewrite personal fields with the current cipher format`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(2)
	}
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	codec, err := fieldcrypt.New(fieldcrypt.Options{
		KeyHex:      cfg.EncryptionKey,
		LegacyIVHex: cfg.EncryptionIV,
		LegacyWrite: cfg.EncryptionLegacyWrite,
	})
	if err != nil {
		log.Fatal(err)
	}
	users := repository.NewPgUserRepository(pool, codec)

	switch os.Args[1] {
	case "migrate":
		err = db.Migrate(ctx, pool)
	case "purge-otps":
		err = purgeOTPs(ctx, pool, logger)
	case "whois":
		if len(os.Args) < 3 {
			log.Fatal("whois requires an email")
		}
		err = whois(ctx, users, os.Args[2])
	case "reencrypt":
		if cfg.EncryptionLegacyWrite {
			log.Fatal("reencrypt would keep the legacy format; unset ENCRYPTION_LEGACY_WRITE first")
		}
		if !confirm("Rewrite every user row with the current cipher format?") {
			fmt.Println("aborted")
			return
		}
		err = reencrypt(ctx, users, logger)
	default:
		fmt.Println(usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func purgeOTPs(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	ledger := service.NewOTPLedger(repository.NewPgOTPRepository(pool))
	n, err := ledger.Purge(ctx)
	if err != nil {
		return err
	}
	logger.Info("expired otps purged", zap.Int64("count", n))
	return nil
}

func whois(ctx context.Context, users *repository.PgUserRepository, email string) error {
	user, err := users.GetByEmail(ctx, email)
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Println("no such user")
		return nil
	}
	if err != nil {
		return err
	}
	p := user.Profile()
	fmt.Printf("id:          %s\n", p.ID)
	fmt.Printf("name:        %s %s\n", p.FirstName, p.LastName)
	fmt.Printf("email:       %s (verified=%t)\n", p.Email, p.EmailVerified)
	fmt.Printf("2fa:         %t\n", p.TwoFactorEnabled)
	if p.LastLoginAt != nil {
		fmt.Printf("last login:  %s\n", p.LastLoginAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// reencrypt lee cada usuario (descifrando cualquier formato soportado) y lo
// vuelve a guardar, lo que aplica el formato de cifrado vigente.
func reencrypt(ctx context.Context, users *repository.PgUserRepository, logger *zap.Logger) error {
	ids, err := users.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	var failed int
	for _, id := range ids {
		user, err := users.GetByID(ctx, id)
		if err != nil {
			failed++
			logger.Warn("read user failed", zap.String("user_id", id), zap.Error(err))
			continue
		}
		if err := users.Save(ctx, user); err != nil {
			failed++
			logger.Warn("save user failed", zap.String("user_id", id), zap.Error(err))
		}
	}
	logger.Info("reencrypt finished", zap.Int("users", len(ids)), zap.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("%d users could not be rewritten", failed)
	}
	return nil
}

func confirm(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", question)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
