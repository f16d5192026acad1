// Package main provides botctl, the administrative CLI for the cycle bet
// engine: create/update/delete bots, rebuild cycles and inspect wagers and
// cycle history.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/cyclebet/internal/config"
	"github.com/yourusername/cyclebet/internal/database"
	"github.com/yourusername/cyclebet/internal/engine"
	"github.com/yourusername/cyclebet/internal/models"
	"github.com/yourusername/cyclebet/internal/repository"
	"github.com/yourusername/cyclebet/internal/service"
	"github.com/yourusername/cyclebet/internal/wallet"
)

var (
	configFile string
	logger     *logrus.Logger
	cfg        *config.Config
	db         *database.DB
	botSvc     *service.BotService
)

var (
	createName      string
	createKind      string
	createStakeMin  string
	createStakeMax  string
	createGames     int
	createWinPct    int
	createLossPct   int
	createDrawPct   int
	createWinCount  int
	createLossCount int
	createDrawCount int
	createPauseSecs int
	updatePauseSecs int
	updateActive    bool
	updateStakeMin  string
	updateStakeMax  string
)

var rootCmd = &cobra.Command{
	Use:   "botctl",
	Short: "Administer cycle bet bots",
	Long:  `Manage bot profiles, rebuild cycles and inspect active wagers and cycle history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupDependencies(); err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a bot profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		stakeMin, err := decimal.NewFromString(createStakeMin)
		if err != nil {
			return fmt.Errorf("invalid --stake-min: %w", err)
		}
		stakeMax, err := decimal.NewFromString(createStakeMax)
		if err != nil {
			return fmt.Errorf("invalid --stake-max: %w", err)
		}

		bot, err := botSvc.CreateBot(ctx, &models.BotProfile{
			Name:       createName,
			Kind:       models.ParticipantKind(createKind),
			StakeMin:   stakeMin,
			StakeMax:   stakeMax,
			CycleGames: createGames,
			WinPct:     createWinPct,
			LossPct:    createLossPct,
			DrawPct:    createDrawPct,
			WinCount:   createWinCount,
			LossCount:  createLossCount,
			DrawCount:  createDrawCount,
			CyclePause: time.Duration(createPauseSecs) * time.Second,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Created bot %s (%s)\n", bot.ID, bot.Name)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <bot-id>",
	Short: "Apply a partial profile update",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		botID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid bot id: %w", err)
		}

		update := &service.BotUpdate{}
		if cmd.Flags().Changed("stake-min") {
			v, err := decimal.NewFromString(updateStakeMin)
			if err != nil {
				return fmt.Errorf("invalid --stake-min: %w", err)
			}
			update.StakeMin = &v
		}
		if cmd.Flags().Changed("stake-max") {
			v, err := decimal.NewFromString(updateStakeMax)
			if err != nil {
				return fmt.Errorf("invalid --stake-max: %w", err)
			}
			update.StakeMax = &v
		}
		if cmd.Flags().Changed("pause-seconds") {
			v := time.Duration(updatePauseSecs) * time.Second
			update.CyclePause = &v
		}
		if cmd.Flags().Changed("active") {
			update.IsActive = &updateActive
		}

		bot, err := botSvc.UpdateBot(ctx, botID, update)
		if err != nil {
			return err
		}

		fmt.Printf("Updated bot %s (%s)\n", bot.ID, bot.Name)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <bot-id>",
	Short: "Cancel a bot's open wagers and remove it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		botID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid bot id: %w", err)
		}
		if err := botSvc.DeleteBot(ctx, botID); err != nil {
			return err
		}

		fmt.Printf("Deleted bot %s\n", botID)
		return nil
	},
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate <bot-id>",
	Short: "Rebuild the bot's current cycle from scratch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		botID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid bot id: %w", err)
		}
		if err := botSvc.RecalculateBets(ctx, botID); err != nil {
			return err
		}

		fmt.Printf("Rebuilt current cycle for bot %s\n", botID)
		return nil
	},
}

var activeCmd = &cobra.Command{
	Use:   "active <bot-id>",
	Short: "Show the bot's in-flight wagers and remaining capacity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		botID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid bot id: %w", err)
		}
		active, err := botSvc.GetActiveBets(ctx, botID)
		if err != nil {
			return err
		}

		fmt.Printf("Bot %s — cycle %d, remaining capacity %d\n",
			active.BotID, active.CycleNumber, active.RemainingCapacity)
		for _, w := range active.Wagers {
			fmt.Printf("  %s  %-8s  stake %s", w.ID, w.State, w.StakeAmount)
			if w.MatchDeadline != nil {
				fmt.Printf("  deadline %s", w.MatchDeadline.Format(time.RFC3339))
			}
			fmt.Println()
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <bot-id>",
	Short: "Show the bot's completed cycle records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := opCtx()
		defer cancel()

		botID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid bot id: %w", err)
		}
		records, err := botSvc.GetCycleHistory(ctx, botID)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No completed cycles")
			return nil
		}

		fmt.Printf("%-7s %10s %10s %10s %10s %8s  %s\n",
			"cycle", "wins", "losses", "draws", "net", "roi%", "closed")
		for _, c := range records {
			fmt.Printf("%-7d %10s %10s %10s %10s %8s  %s\n",
				c.CycleNumber, c.WinsAmount, c.LossesAmount, c.DrawsAmount,
				c.NetProfit, c.ROIActive, c.ClosedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")

	createCmd.Flags().StringVar(&createName, "name", "", "Bot name")
	createCmd.Flags().StringVar(&createKind, "kind", string(models.ParticipantRegularBot), "Bot kind (human_bot or regular_bot)")
	createCmd.Flags().StringVar(&createStakeMin, "stake-min", "1", "Minimum stake")
	createCmd.Flags().StringVar(&createStakeMax, "stake-max", "100", "Maximum stake")
	createCmd.Flags().IntVar(&createGames, "games", 16, "Wagers per cycle")
	createCmd.Flags().IntVar(&createWinPct, "win-pct", 44, "Win percentage")
	createCmd.Flags().IntVar(&createLossPct, "loss-pct", 36, "Loss percentage")
	createCmd.Flags().IntVar(&createDrawPct, "draw-pct", 20, "Draw percentage")
	createCmd.Flags().IntVar(&createWinCount, "win-count", 7, "Win wager count")
	createCmd.Flags().IntVar(&createLossCount, "loss-count", 6, "Loss wager count")
	createCmd.Flags().IntVar(&createDrawCount, "draw-count", 3, "Draw wager count")
	createCmd.Flags().IntVar(&createPauseSecs, "pause-seconds", 0, "Inter-cycle pause in seconds (0 uses the configured default)")
	_ = createCmd.MarkFlagRequired("name")

	updateCmd.Flags().StringVar(&updateStakeMin, "stake-min", "", "Minimum stake")
	updateCmd.Flags().StringVar(&updateStakeMax, "stake-max", "", "Maximum stake")
	updateCmd.Flags().IntVar(&updatePauseSecs, "pause-seconds", 0, "Inter-cycle pause in seconds")
	updateCmd.Flags().BoolVar(&updateActive, "active", true, "Whether the scheduler drives this bot")

	rootCmd.AddCommand(createCmd, updateCmd, deleteCmd, recalculateCmd, activeCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func setupDependencies() error {
	var err error
	cfg, err = config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger = logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err = database.NewDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	repos := repository.Repositories{
		Bots:        repository.NewPostgresBotRepository(db),
		Wagers:      repository.NewPostgresWagerRepository(db),
		Cycles:      repository.NewPostgresCompletedCycleRepository(db),
		Commissions: repository.NewPostgresCommissionEventRepository(db),
	}

	platformWallet := wallet.NewHTTPWallet(&cfg.Wallet, logger)
	eng := engine.New(&repos, platformWallet, cfg, logger)
	botSvc = service.NewBotService(&repos, eng, logger)

	return nil
}
