package benefits

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"cardperks-go/internal/models"
)

// ErrAlreadyMatched reports that another scan linked the transaction first.
// The losing scan treats it as "nothing to do", not as a failure: the
// transaction stays linked to exactly one benefit and counted exactly once.
var ErrAlreadyMatched = errors.New("transaction already matched")

// Store is the persistence surface the matcher and the usage read model
// depend on. The gorm implementation lives in internal/store.
type Store interface {
	// AccountsForUser returns the user's accounts with each card product's
	// benefit rules preloaded in ascending rule-id order.
	AccountsForUser(ctx context.Context, userID uint, accountID *uint) ([]models.Account, error)
	// UnevaluatedTransactions returns transactions with no match record at all.
	UnevaluatedTransactions(ctx context.Context, accountIDs []uint, limit int) ([]models.Transaction, error)
	// RetryableTransactions returns transactions whose previous evaluation
	// concluded "no match"; a later-added rule may claim them.
	RetryableTransactions(ctx context.Context, accountIDs []uint, limit int) ([]models.Transaction, error)
	// ApplyMatch atomically claims the transaction-benefit link,
	// resolves-or-creates the open usage period, and increments its used
	// amount. If another scan linked the transaction first it returns
	// ErrAlreadyMatched without incrementing anything.
	ApplyMatch(ctx context.Context, m *Match) error
	// RecordNoMatch marks the transaction as evaluated with no benefit link.
	RecordNoMatch(ctx context.Context, transactionID uint) error
	// OpenUsagePeriods returns periods still open at the given instant.
	OpenUsagePeriods(ctx context.Context, accountIDs []uint, now time.Time) ([]models.BenefitUsagePeriod, error)
}

// Match is one atomic match application: the usage-period window is derived
// by the matcher, the store only persists it.
type Match struct {
	TransactionID uint
	AccountID     uint
	BenefitRuleID uint
	Amount        float64 // absolute transaction amount
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Now           time.Time
}

type ScanResult struct {
	Checked int `json:"checked"`
	Matched int `json:"matched"`
}

// Matcher scores unmatched transactions against the active, approved benefit
// rules of each account's card product. A transaction matches at most one
// rule; once matched it is never revisited.
type Matcher struct {
	store      Store
	batchLimit int
	now        func() time.Time
}

func NewMatcher(store Store, batchLimit int) *Matcher {
	return &Matcher{store: store, batchLimit: batchLimit, now: time.Now}
}

// ScanAndMatch evaluates up to batchLimit never-evaluated transactions plus
// batchLimit previously-unmatched ones. Per-transaction failures are logged
// and skipped; only failure to resolve the user's accounts aborts the scan.
func (m *Matcher) ScanAndMatch(ctx context.Context, userID uint, accountID *uint) (*ScanResult, error) {
	accounts, err := m.store.AccountsForUser(ctx, userID, accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve accounts: %w", err)
	}

	accountIDs := make([]uint, 0, len(accounts))
	rulesByAccount := map[uint][]models.BenefitRule{}
	for _, a := range accounts {
		accountIDs = append(accountIDs, a.ID)
		if a.CardProduct != nil {
			rulesByAccount[a.ID] = a.CardProduct.Rules
		}
	}

	res := &ScanResult{}
	if len(accountIDs) == 0 {
		return res, nil
	}

	now := m.now()
	for _, candidates := range m.candidates(ctx, accountIDs) {
		for i := range candidates {
			txn := &candidates[i]
			res.Checked++
			if m.evaluate(ctx, txn, rulesByAccount[txn.AccountID], now) {
				res.Matched++
			}
		}
	}
	return res, nil
}

// candidates runs the two bounded selection passes. A failed pass logs and
// yields nothing rather than aborting the scan.
func (m *Matcher) candidates(ctx context.Context, accountIDs []uint) [][]models.Transaction {
	fresh, err := m.store.UnevaluatedTransactions(ctx, accountIDs, m.batchLimit)
	if err != nil {
		log.Printf("benefit scan: unevaluated pass failed: %v", err)
	}
	retry, err := m.store.RetryableTransactions(ctx, accountIDs, m.batchLimit)
	if err != nil {
		log.Printf("benefit scan: retry pass failed: %v", err)
	}
	return [][]models.Transaction{fresh, retry}
}

// evaluate applies the first eligible rule, or records a no-match marker.
// Rules arrive in ascending id order, so "first rule wins" means the oldest
// eligible rule claims the transaction.
func (m *Matcher) evaluate(ctx context.Context, txn *models.Transaction, rules []models.BenefitRule, now time.Time) bool {
	abs := math.Abs(txn.Amount)
	for i := range rules {
		rule := &rules[i]
		if !rule.Active || !rule.Approved {
			continue
		}
		if !keywordHit(txn, rule.Keywords) {
			continue
		}
		if !rule.AmountRange.Contains(abs) {
			continue
		}

		start, end := PeriodBounds(rule.Cadence, now)
		match := &Match{
			TransactionID: txn.ID,
			AccountID:     txn.AccountID,
			BenefitRuleID: rule.ID,
			Amount:        abs,
			PeriodStart:   start,
			PeriodEnd:     end,
			Now:           now,
		}
		if err := m.store.ApplyMatch(ctx, match); err != nil {
			if errors.Is(err, ErrAlreadyMatched) {
				return false
			}
			log.Printf("benefit scan: txn=%d rule=%d apply failed: %v", txn.ID, rule.ID, err)
			return false
		}
		return true
	}

	if err := m.store.RecordNoMatch(ctx, txn.ID); err != nil {
		log.Printf("benefit scan: txn=%d no-match marker failed: %v", txn.ID, err)
	}
	return false
}

func keywordHit(txn *models.Transaction, keywords models.StringArray) bool {
	haystack := strings.ToLower(txn.Name + " " + txn.MerchantName)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
