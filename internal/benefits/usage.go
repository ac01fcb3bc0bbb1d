package benefits

import (
	"context"
	"sort"
	"time"

	"cardperks-go/internal/models"
)

// UsageSummary is the per-benefit read model handed to the presentation
// layer. UsedAmount is clamped to MaxAmount here, at read time; the stored
// period keeps the raw accumulated figure.
type UsageSummary struct {
	AccountID       uint     `json:"account_id"`
	BenefitRuleID   uint     `json:"benefit_rule_id"`
	Name            string   `json:"name"`
	Category        string   `json:"category"`
	Cadence         string   `json:"cadence"`
	MaxAmount       *float64 `json:"max_amount,omitempty"`
	UsedAmount      float64  `json:"used_amount"`
	RemainingAmount float64  `json:"remaining_amount"`
	Percentage      float64  `json:"percentage"`
	Completed       bool     `json:"completed"`
	PeriodEnd       time.Time `json:"period_end"`
	DaysRemaining   int       `json:"days_remaining"`
}

// Usage builds the sorted read model for a user's accounts: incomplete
// benefits first, soonest-ending first, larger remaining amount as the
// tiebreak. Benefits without an open period yet report zero usage against
// the cadence's current window.
func (m *Matcher) Usage(ctx context.Context, userID uint, accountID *uint) ([]UsageSummary, error) {
	accounts, err := m.store.AccountsForUser(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}

	accountIDs := make([]uint, 0, len(accounts))
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.ID)
	}

	now := m.now()
	var periods []models.BenefitUsagePeriod
	if len(accountIDs) > 0 {
		periods, err = m.store.OpenUsagePeriods(ctx, accountIDs, now)
		if err != nil {
			return nil, err
		}
	}

	type key struct {
		rule    uint
		account uint
	}
	used := map[key]float64{}
	for _, p := range periods {
		used[key{p.BenefitRuleID, p.AccountID}] = p.UsedAmount
	}

	summaries := []UsageSummary{}
	for _, a := range accounts {
		if a.CardProduct == nil {
			continue
		}
		for _, rule := range a.CardProduct.Rules {
			if !rule.Active || !rule.Approved {
				continue
			}
			_, end := PeriodBounds(rule.Cadence, now)
			s := UsageSummary{
				AccountID:     a.ID,
				BenefitRuleID: rule.ID,
				Name:          rule.Name,
				Category:      rule.Category,
				Cadence:       rule.Cadence,
				MaxAmount:     rule.MaxAmount,
				UsedAmount:    used[key{rule.ID, a.ID}],
				PeriodEnd:     end,
				DaysRemaining: daysUntil(now, end),
			}
			if rule.MaxAmount != nil {
				max := *rule.MaxAmount
				if s.UsedAmount > max {
					s.UsedAmount = max
				}
				s.RemainingAmount = max - s.UsedAmount
				if max > 0 {
					s.Percentage = s.UsedAmount / max * 100
				}
				s.Completed = s.UsedAmount >= max
			}
			summaries = append(summaries, s)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			return a.PeriodEnd.Before(b.PeriodEnd)
		}
		return a.RemainingAmount > b.RemainingAmount
	})
	return summaries, nil
}

func daysUntil(now, end time.Time) int {
	d := int(end.Sub(now).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
