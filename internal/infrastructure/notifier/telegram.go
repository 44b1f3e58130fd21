package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"github.com/vitos/loop_scanner/internal/domain"
	"go.uber.org/zap"
)

const DefaultTopN = 5

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts the best loops of each scan to one chat.
type TelegramNotifier struct {
	bot    messageSender
	chatID int64
	topN   int
	minNet float64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, topN int, minNet float64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	logger.Info("Telegram bot authorized", zap.String("account", bot.Self.UserName))
	return newTelegramNotifier(bot, chatID, topN, minNet, logger), nil
}

func newTelegramNotifier(bot messageSender, chatID int64, topN int, minNet float64, logger *zap.Logger) *TelegramNotifier {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, topN: topN, minNet: minNet, logger: logger}
}

// Notify sends nothing when no loop clears the notifier's threshold.
func (n *TelegramNotifier) Notify(ctx context.Context, report *domain.ScanReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := FormatMessage(report, n.topN, n.minNet)
	if text == "" {
		n.logger.Debug("No loops worth notifying", zap.String("scan_id", report.ID))
		return nil
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(n.chatID, text)); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	n.logger.Info("Scan notification sent", zap.String("scan_id", report.ID), zap.Int64("chat_id", n.chatID))
	return nil
}

// FormatMessage renders the top loops with net APY above minNet.
// It returns "" when there is nothing to report.
func FormatMessage(report *domain.ScanReport, topN int, minNet float64) string {
	var lines []string
	for _, l := range report.Loops {
		if len(lines) == topN {
			break
		}
		if l.BestNet <= minNet {
			continue
		}
		lines = append(lines, formatLoop(len(lines)+1, l))
	}
	if len(lines) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top loops (%s UTC, %d rates)\n", report.CreatedAt.Format("2006-01-02 15:04"), report.RateCount)
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func formatLoop(rank int, l domain.LoopRecord) string {
	net := pct(l.BestNet)
	switch l.Type {
	case domain.TopologyCross:
		return fmt.Sprintf("%d. %s  net %s (LTV %s)", rank, l.Path, net, pct(l.LTV))
	default:
		lev := ""
		if l.SingleReturns != nil {
			lev = " @ " + l.BestLev
		}
		return fmt.Sprintf("%d. %s/%s on %s %s  net %s%s", rank, l.Collateral, l.Borrow, l.Platform, l.Market, net, lev)
	}
}

func pct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}
