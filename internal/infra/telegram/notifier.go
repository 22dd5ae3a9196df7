// internal/infra/telegram/notifier.go
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"
	domainTelegram "review_monitor/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// Notifier mirrors review and purchase-link alerts into a Telegram chat.
type Notifier struct {
	client domainTelegram.Client
	chatID int64
	loc    *time.Location
}

var (
	_ review.Notifier       = (*Notifier)(nil)
	_ purchaselink.Notifier = (*Notifier)(nil)
)

func NewNotifier(client domainTelegram.Client, chatID int64, loc *time.Location) *Notifier {
	return &Notifier{client: client, chatID: chatID, loc: loc}
}

func (n *Notifier) Notify(ctx context.Context, c review.Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📝 신규 리뷰 등록 (ID %d)\n", c.NaturalID)
	fmt.Fprintf(&b, "캠페인: %s\n", valueOr(c.CampaignName.String))
	fmt.Fprintf(&b, "블로거: %s\n", valueOr(c.BloggerID.String))
	fmt.Fprintf(&b, "매니저: %s\n", valueOr(c.ManagerName.String))
	if !c.RegisteredAt.IsZero() {
		fmt.Fprintf(&b, "등록: %s\n", c.RegisteredAt.In(n.loc).Format("2006-01-02 15:04"))
	}
	b.WriteString(c.PostLink)

	return n.send(b.String())
}

func (n *Notifier) NotifyViolations(ctx context.Context, notices []purchaselink.Notice) error {
	if len(notices) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 구매링크 누락 %d건", len(notices))
	if unresolved := purchaselink.UnresolvedCount(notices); unresolved > 0 {
		fmt.Fprintf(&b, " (%d건 미해결)", unresolved)
	}
	for _, notice := range notices {
		v := notice.Violation
		fmt.Fprintf(&b, "\n• %d / 캠페인 %d %s", v.PropositionID, v.CampaignID, valueOr(v.CampaignName.String))
	}
	return n.send(b.String())
}

func (n *Notifier) send(text string) error {
	if err := n.client.SendMessage(n.chatID, text, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", n.chatID, err)
	}
	return nil
}

func valueOr(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
