package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/arbihedron/arbihedron-go/internal/models"
)

// NotifierConfig holds the Telegram alerting parameters.
type NotifierConfig struct {
	BotToken string
	ChatID   int64
	// MinProfitAlert suppresses opportunity alerts below this profit percent,
	// independent of the executable gate.
	MinProfitAlert decimal.Decimal
	// MaxAlertsPerHour caps opportunity alerts; execution outcomes are never
	// rate limited.
	MaxAlertsPerHour int
}

// TelegramNotifier pushes opportunity and execution alerts to a Telegram
// chat. Sends run on their own goroutine so a slow Telegram API never stalls
// a scan cycle. A disabled notifier (no token) degrades to a no-op.
type TelegramNotifier struct {
	bot    *bot.Bot
	chatID int64
	config NotifierConfig
	budget *RateBudget
	logger *logrus.Logger
	caser  cases.Caser
}

var _ AlertSink = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates the notifier. An empty bot token yields a
// disabled notifier rather than an error so alerting stays optional.
func NewTelegramNotifier(config NotifierConfig, logger *logrus.Logger) (*TelegramNotifier, error) {
	n := &TelegramNotifier{
		config: config,
		budget: NewRateBudget(config.MaxAlertsPerHour, time.Hour, nil),
		logger: logger,
		caser:  cases.Title(language.English),
	}
	if config.BotToken == "" {
		logger.Info("Telegram alerting disabled, no bot token configured")
		return n, nil
	}
	if config.ChatID == 0 {
		return nil, fmt.Errorf("telegram chat_id is required when a bot token is set")
	}

	b, err := bot.New(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	n.bot = b
	n.chatID = config.ChatID
	return n, nil
}

// NotifyOpportunity alerts on one executable opportunity, subject to the
// profit floor and the hourly alert budget.
func (n *TelegramNotifier) NotifyOpportunity(ctx context.Context, opp models.Opportunity) {
	if n.bot == nil || !opp.Executable {
		return
	}
	if opp.ProfitPercentage.LessThan(n.config.MinProfitAlert) {
		return
	}
	if !n.budget.TryAcquire() {
		n.logger.Debug("Opportunity alert suppressed, hourly alert budget exhausted")
		return
	}
	n.send(ctx, n.formatOpportunity(opp))
}

// NotifyExecution alerts on a finished execution attempt. Partial executions
// always alert: stranded capital needs a human.
func (n *TelegramNotifier) NotifyExecution(ctx context.Context, record *models.ExecutionRecord) {
	if n.bot == nil || record == nil {
		return
	}
	// Protective refusals (rate cap, stale revalidation) are routine; only
	// attempts that placed or tried to place orders are worth a ping.
	if record.Outcome == models.OutcomeFailed && !record.CapitalMoved() && len(record.Legs) == 0 {
		return
	}
	n.send(ctx, n.formatExecution(record))
}

func (n *TelegramNotifier) send(ctx context.Context, text string) {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		_, err := n.bot.SendMessage(sendCtx, &bot.SendMessageParams{
			ChatID:    n.chatID,
			Text:      text,
			ParseMode: tgmodels.ParseModeMarkdown,
		})
		if err != nil {
			n.logger.WithError(err).Warn("Failed to send telegram alert")
		}
	}()
}

func (n *TelegramNotifier) formatOpportunity(opp models.Opportunity) string {
	venue := n.caser.String(opp.Path.Start())
	if len(opp.Pairs) > 0 {
		venue = n.caser.String(opp.Pairs[0].Venue)
	}

	message := "🔺 *Triangular Arbitrage Opportunity*\n\n"
	message += fmt.Sprintf("🏪 Venue: *%s*\n", venue)
	message += fmt.Sprintf("🔄 Path: `%s`\n", opp.Path.String())
	message += fmt.Sprintf("💰 Profit: *%s%%*\n", opp.ProfitPercentage.StringFixed(4))
	message += fmt.Sprintf("⚖️ Risk Score: *%.1f/100*\n", opp.RiskScore)

	for _, leg := range opp.Path.Legs {
		arrow := "📉"
		if leg.Direction == models.Buy {
			arrow = "📈"
		}
		message += fmt.Sprintf("%s %s %s (%s → %s)\n", arrow, leg.Direction, leg.Symbol, leg.From, leg.To)
	}

	message += "\n⚡ Opportunities decay in seconds."
	return message
}

func (n *TelegramNotifier) formatExecution(record *models.ExecutionRecord) string {
	var message string
	switch record.Outcome {
	case models.OutcomeSuccess:
		message = "✅ *Arbitrage Executed*\n\n"
		message += fmt.Sprintf("🔄 Path: `%s`\n", record.Path)
		message += fmt.Sprintf("💰 Realized Profit: *%s*\n", record.RealizedProfit.StringFixed(8))
		message += fmt.Sprintf("📊 Total Slippage: %s%%\n", record.TotalSlippage.StringFixed(4))
	case models.OutcomePartial:
		message = "🚨 *PARTIAL EXECUTION - ACTION REQUIRED*\n\n"
		message += fmt.Sprintf("🔄 Path: `%s`\n", record.Path)
		message += fmt.Sprintf("✅ Filled Legs: %d of %d\n", record.FilledLegs(), len(record.Legs))
		message += fmt.Sprintf("❌ Error: %s\n", record.Error)
		message += "\n⚠️ Capital is stranded mid-path. Manual intervention needed."
	default:
		message = "❌ *Execution Failed*\n\n"
		message += fmt.Sprintf("🔄 Path: `%s`\n", record.Path)
		message += fmt.Sprintf("Error: %s\n", record.Error)
		message += "No capital moved."
	}
	message += fmt.Sprintf("\n🕐 %s", record.CompletedAt.UTC().Format(time.RFC3339))
	return message
}
