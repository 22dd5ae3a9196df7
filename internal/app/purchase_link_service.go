// internal/app/purchase_link_service.go
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"review_monitor/internal/domain/purchaselink"

	"github.com/sirupsen/logrus"
)

// PurchaseLinkConfig tunes the purchase-link compliance check.
type PurchaseLinkConfig struct {
	RenotifyAfter  time.Duration
	LookbackMonths int
}

// PurchaseLinkReport summarises one compliance check.
type PurchaseLinkReport struct {
	Violations int
	Notified   int
	Renotified int
	LogSaved   bool
}

// PurchaseLinkService alerts on responded propositions that are missing the purchase link
// their channel campaign requires. Each violation is alerted on once and then again every
// RenotifyAfter for as long as it stays unresolved.
type PurchaseLinkService struct {
	source   purchaselink.Source
	notifier purchaselink.Notifier
	logs     purchaselink.LogStore
	cfg      PurchaseLinkConfig
	logger   *logrus.Entry

	now func() time.Time
}

func NewPurchaseLinkService(
	source purchaselink.Source,
	notifier purchaselink.Notifier,
	logs purchaselink.LogStore,
	cfg PurchaseLinkConfig,
	logger *logrus.Entry,
) *PurchaseLinkService {
	return &PurchaseLinkService{
		source:   source,
		notifier: notifier,
		logs:     logs,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *PurchaseLinkService) Run(ctx context.Context) (*PurchaseLinkReport, error) {
	now := s.now().UTC()
	report := &PurchaseLinkReport{}

	since := now.AddDate(0, -s.cfg.LookbackMonths, 0)
	violations, err := s.source.ListPurchaseLinkViolations(ctx, since)
	if err != nil {
		return report, fmt.Errorf("failed to list purchase link violations: %w", err)
	}
	report.Violations = len(violations)
	if len(violations) == 0 {
		s.logger.Info("No missing purchase links")
		return report, nil
	}
	s.logger.Warnf("Found %d propositions missing a purchase link", len(violations))

	current, err := s.logs.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to load notification log: %w", err)
	}
	// Selection mutates the log; work on a copy so a failed delivery leaves it untouched.
	next := current.Clone()
	notices := next.SelectForNotification(violations, now, s.cfg.RenotifyAfter)
	report.Renotified = purchaselink.UnresolvedCount(notices)
	report.Notified = len(notices) - report.Renotified

	s.logCampaignSummary(violations)

	if len(notices) > 0 {
		if err := s.notifier.NotifyViolations(ctx, notices); err != nil {
			return report, fmt.Errorf("failed to deliver purchase link alert: %w", err)
		}
		s.logger.WithFields(logrus.Fields{
			"new":        report.Notified,
			"renotified": report.Renotified,
		}).Info("Purchase link alert sent")
	} else {
		s.logger.Info("All violations were alerted on recently, nothing sent")
	}

	if err := s.logs.Save(ctx, next); err != nil {
		return report, fmt.Errorf("failed to save notification log: %w", err)
	}
	report.LogSaved = true
	return report, nil
}

func (s *PurchaseLinkService) logCampaignSummary(violations []purchaselink.Violation) {
	type campaignSummary struct {
		name  string
		link  string
		count int
	}
	byCampaign := map[int64]*campaignSummary{}
	var ids []int64
	for _, v := range violations {
		sum, ok := byCampaign[v.CampaignID]
		if !ok {
			sum = &campaignSummary{name: v.CampaignName.String, link: v.ChannelPurchaseLink}
			byCampaign[v.CampaignID] = sum
			ids = append(ids, v.CampaignID)
		}
		sum.count++
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		sum := byCampaign[id]
		s.logger.WithFields(logrus.Fields{
			"campaign_id":   id,
			"campaign_name": sum.name,
			"purchase_link": sum.link,
			"missing":       sum.count,
		}).Info("Purchase link violations by campaign")
	}
}
