package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"daily-quiz-service/internal/app"
	"daily-quiz-service/internal/config"
	"daily-quiz-service/internal/domain"
	pgstore "daily-quiz-service/internal/infra/postgres"
	redisstore "daily-quiz-service/internal/infra/redis"
	"daily-quiz-service/internal/logger"
)

type recordFlags struct {
	userID      string
	kind        string
	amount      string
	category    string
	method      string
	description string
	at          string
}

// NewRecordCmd logs one activity record, the raw material of tomorrow's questions.
func NewRecordCmd(configPath *string) *cobra.Command {
	var f recordFlags
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record an expense or income entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd.Context(), *configPath, f)
		},
	}
	cmd.Flags().StringVar(&f.userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&f.kind, "kind", string(domain.KindExpense), "expense or income")
	cmd.Flags().StringVar(&f.amount, "amount", "", "positive amount, e.g. 120.50 (required)")
	cmd.Flags().StringVar(&f.category, "category", "", "category, e.g. food")
	cmd.Flags().StringVar(&f.method, "method", "", "payment method, e.g. cash")
	cmd.Flags().StringVar(&f.description, "description", "", "free-form note")
	cmd.Flags().StringVar(&f.at, "at", "", "RFC3339 timestamp, defaults to now")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (f recordFlags) toRecord() (domain.ActivityRecord, error) {
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return domain.ActivityRecord{}, fmt.Errorf("amount %q: %w", f.amount, err)
	}
	rec := domain.ActivityRecord{
		UserID:        f.userID,
		Kind:          domain.ActivityKind(strings.ToLower(f.kind)),
		Amount:        amount,
		Category:      strings.ToLower(strings.TrimSpace(f.category)),
		PaymentMethod: strings.ToLower(strings.TrimSpace(f.method)),
		Description:   f.description,
	}
	if f.at != "" {
		if rec.OccurredAt, err = time.Parse(time.RFC3339, f.at); err != nil {
			return domain.ActivityRecord{}, fmt.Errorf("at %q: %w", f.at, err)
		}
	}
	return rec, nil
}

func runRecord(ctx context.Context, configPath string, f recordFlags) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	rec, err := f.toRecord()
	if err != nil {
		return err
	}
	game, err := cfg.GameConfig()
	if err != nil {
		return err
	}

	db, err := openBun(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err = pgstore.NewActivityRecorder(db).Record(ctx, rec)
	if err != nil {
		return err
	}
	day := rec.OccurredAt.In(game.Location).Format(app.DayLayout)

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache := redisstore.NewActivityRepository(client, nil, 0)
		if err := cache.Invalidate(ctx, rec.UserID, day); err != nil {
			log.Warn().Err(err).Str("user_id", rec.UserID).Str("day", day).Msg("activity cache not invalidated")
		}
	}
	log.Info().Str("id", rec.ID).Str("user_id", rec.UserID).Str("day", day).Str("amount", rec.Amount.String()).Msg("activity recorded")
	return nil
}
