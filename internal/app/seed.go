package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hitoshi/clinicq/internal/clinic"
	"github.com/hitoshi/clinicq/internal/config"
	"github.com/hitoshi/clinicq/internal/database"
	"github.com/hitoshi/clinicq/internal/model"
	"github.com/hitoshi/clinicq/internal/repository"
)

// seedOptions は seed サブコマンドの引数。
type seedOptions struct {
	Name       string
	Domain     string
	Plan       string
	StaffEmail string
	StaffName  string
}

// parseSeedOptions は seed サブコマンドの引数を解析する。
func parseSeedOptions(args []string, output io.Writer) (*seedOptions, error) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(output)

	opts := &seedOptions{}
	fs.StringVar(&opts.Name, "name", "Ravi Hospital", "clinic display name")
	fs.StringVar(&opts.Domain, "domain", "ravihospital", "clinic domain (tenant identifier)")
	fs.StringVar(&opts.Plan, "plan", "basic", "clinic plan")
	fs.StringVar(&opts.StaffEmail, "staff-email", "", "email of a staff user to register (optional)")
	fs.StringVar(&opts.StaffName, "staff-name", "", "display name of the staff user")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.Domain = strings.TrimSpace(opts.Domain)
	opts.StaffEmail = strings.ToLower(strings.TrimSpace(opts.StaffEmail))
	if opts.Domain == "" {
		return nil, errors.New("--domain must not be empty")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("--name must not be empty")
	}
	if opts.StaffName == "" {
		opts.StaffName = opts.StaffEmail
	}
	return opts, nil
}

// runSeed はクリニックと、指定があればスタッフを登録する。
// 同じdomainのクリニックが既に存在する場合は既存のものを使う。
func runSeed(ctx context.Context, cfg *config.Config, args []string) error {
	opts, err := parseSeedOptions(args, io.Discard)
	if err != nil {
		return fmt.Errorf("invalid seed arguments: %w", err)
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	directory, closeStore, err := openDirectory(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	seeded, err := seedClinic(ctx, directory, repository.NewPostgresClinicRepo(db), cfg.StoreBackend == config.StoreBackendMongo, opts)
	if err != nil {
		return err
	}

	if opts.StaffEmail == "" {
		return nil
	}
	return seedStaff(ctx, repository.NewPostgresUserRepo(db), seeded, opts)
}

// seedClinic はディレクトリにクリニックを登録する。
// mirror が true の場合は、受付番号やスタッフの外部キーを満たすため同じIDでPostgreSQLにも登録する。
// PostgreSQLに同じdomainで別IDのクリニックが既にある場合はエラーを返す。
func seedClinic(ctx context.Context, directory, relational repository.ClinicRepository, mirror bool, opts *seedOptions) (*model.Clinic, error) {
	seeded, created, err := clinic.NewService(directory).Ensure(ctx, &model.Clinic{
		Name:   opts.Name,
		Domain: opts.Domain,
		Plan:   opts.Plan,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("clinic seeded",
		slog.String("clinic_id", seeded.ID),
		slog.String("domain", seeded.Domain),
		slog.Bool("created", created),
	)

	if !mirror {
		return seeded, nil
	}

	copied := *seeded
	mirrored, _, err := clinic.NewService(relational).Ensure(ctx, &copied)
	if err != nil {
		return nil, err
	}
	if mirrored.ID != seeded.ID {
		return nil, fmt.Errorf("クリニック %q のIDがMongoDBとPostgreSQLで一致しません: mongo=%s postgres=%s",
			seeded.Domain, seeded.ID, mirrored.ID)
	}
	return mirrored, nil
}

// seedStaff はクリニックのスタッフを登録する。既存の場合は名前を更新する。
func seedStaff(ctx context.Context, users repository.UserRepository, c *model.Clinic, opts *seedOptions) error {
	staff := &model.User{
		ClinicID: c.ID,
		Email:    opts.StaffEmail,
		Name:     opts.StaffName,
	}
	if err := users.Upsert(ctx, staff); err != nil {
		return fmt.Errorf("スタッフの登録に失敗しました: %w", err)
	}

	slog.Info("staff seeded",
		slog.String("clinic_id", c.ID),
		slog.String("user_id", staff.ID),
		slog.String("email", staff.Email),
	)
	return nil
}
