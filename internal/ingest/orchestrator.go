package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"cardperks-go/internal/aggregator"
	"cardperks-go/internal/models"
	"cardperks-go/internal/vault"
)

// ErrSecretResolution marks a failure to exchange the item's secret
// reference for an access token. Surfaced before any pagination happens.
var ErrSecretResolution = errors.New("secret resolution failed")

// Commit is everything a successful sync writes in one atomic unit. The
// cursor travels with the transaction writes it certifies: either all of it
// lands or none of it does.
type Commit struct {
	Upserts            []models.Transaction
	RemovedExternalIDs []string
	NextCursor         string
	SyncedAt           time.Time
}

// Store is the persistence surface the orchestrator needs.
type Store interface {
	// AccountIDsByExternal maps the item's aggregator account ids to local ids.
	AccountIDsByExternal(ctx context.Context, itemID uint) (map[string]uint, error)
	// CommitSync applies the whole commit in one database transaction.
	CommitSync(ctx context.Context, itemID uint, c *Commit) error
	// UpdateBalances refreshes cached balances for the item's accounts.
	UpdateBalances(ctx context.Context, itemID uint, balances []aggregator.AccountBalance) error
}

// Dispatcher hands the post-commit benefit scan off without blocking the
// caller. Failures over there never surface here.
type Dispatcher interface {
	EnqueueScan(userID uint, accountID *uint)
}

type Result struct {
	Added      int    `json:"added"`
	Modified   int    `json:"modified"`
	Removed    int    `json:"removed"`
	NextCursor string `json:"next_cursor"`
}

type Orchestrator struct {
	agg           aggregator.Client
	resolver      vault.Resolver
	store         Store
	dispatch      Dispatcher
	maxIterations int
	commitTimeout time.Duration

	mu        sync.Mutex
	itemLocks map[uint]*sync.Mutex
}

func NewOrchestrator(agg aggregator.Client, resolver vault.Resolver, store Store, dispatch Dispatcher, maxIterations int, commitTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		agg:           agg,
		resolver:      resolver,
		store:         store,
		dispatch:      dispatch,
		maxIterations: maxIterations,
		commitTimeout: commitTimeout,
		itemLocks:     map[uint]*sync.Mutex{},
	}
}

// Run executes one full sync for the item: resolve the access token, walk
// the delta feed until the upstream reports no more data or the iteration
// cap trips, then commit transactions plus the advanced cursor atomically.
// A mid-loop upstream failure degrades to a partial sync — whatever pages
// were already fetched still commit. Concurrent runs for the same item are
// serialized so the stored cursor can never regress.
func (o *Orchestrator) Run(ctx context.Context, item *models.Item, requestCursor string) (*Result, error) {
	lock := o.itemLock(item.ID)
	lock.Lock()
	defer lock.Unlock()

	token, err := o.resolver.Resolve(ctx, item.SecretRef)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretResolution, err)
	}

	cursor := requestCursor
	if cursor == "" && item.SyncCursor != nil {
		cursor = *item.SyncCursor
	}

	var (
		added    []aggregator.Transaction
		modified []aggregator.Transaction
		removed  []string
		pages    int
	)
	for i := 0; i < o.maxIterations; i++ {
		resp, err := o.agg.SyncTransactions(ctx, token, cursor)
		if err != nil {
			// Fail open: keep what we already fetched. The cursor only
			// advances past pages that were actually received.
			log.Printf("sync item=%d: page %d failed, committing partial results: %v", item.ID, i+1, err)
			break
		}
		pages++
		added = append(added, resp.Added...)
		modified = append(modified, resp.Modified...)
		for _, r := range resp.Removed {
			removed = append(removed, r.TransactionID)
		}
		cursor = resp.NextCursor
		if !resp.HasMore {
			break
		}
	}

	result := &Result{
		Added:      len(added),
		Modified:   len(modified),
		Removed:    len(removed),
		NextCursor: cursor,
	}

	if pages == 0 {
		// Nothing was fetched; leave the stored cursor untouched so the
		// next attempt repeats the same page.
		return result, nil
	}

	commit, err := o.buildCommit(ctx, item.ID, added, modified, removed, cursor)
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(ctx, o.commitTimeout)
	defer cancel()
	if err := o.store.CommitSync(commitCtx, item.ID, commit); err != nil {
		return nil, fmt.Errorf("sync commit: %w", err)
	}

	o.refreshBalances(ctx, item, token)
	o.dispatch.EnqueueScan(item.UserID, nil)

	return result, nil
}

// buildCommit resolves aggregator account ids to local accounts and dedupes
// upserts by external transaction id (last delivery wins) so re-delivered
// ids stay idempotent within a single batch too.
func (o *Orchestrator) buildCommit(ctx context.Context, itemID uint, added, modified []aggregator.Transaction, removed []string, cursor string) (*Commit, error) {
	accountIDs, err := o.store.AccountIDsByExternal(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("resolve accounts: %w", err)
	}

	byExternal := map[string]int{}
	var upserts []models.Transaction
	for _, t := range append(added, modified...) {
		accountID, ok := accountIDs[t.AccountID]
		if !ok {
			log.Printf("sync item=%d: transaction %s references unknown account %s, skipping", itemID, t.TransactionID, t.AccountID)
			continue
		}
		row := models.Transaction{
			AccountID:             accountID,
			ExternalTransactionID: t.TransactionID,
			Amount:                t.Amount,
			Date:                  t.Date,
			Name:                  t.Name,
			MerchantName:          t.MerchantName,
			Category:              models.StringArray(t.Category),
			CategoryDetail:        t.PersonalFinanceDetail,
			PaymentChannel:        t.PaymentChannel,
			Pending:               t.Pending,
		}
		if idx, seen := byExternal[t.TransactionID]; seen {
			upserts[idx] = row
			continue
		}
		byExternal[t.TransactionID] = len(upserts)
		upserts = append(upserts, row)
	}

	return &Commit{
		Upserts:            upserts,
		RemovedExternalIDs: removed,
		NextCursor:         cursor,
		SyncedAt:           time.Now(),
	}, nil
}

// refreshBalances is best effort: a failed refresh is logged and swallowed,
// never surfaced as a sync failure.
func (o *Orchestrator) refreshBalances(ctx context.Context, item *models.Item, token string) {
	balances, err := o.agg.GetBalances(ctx, token)
	if err != nil {
		log.Printf("sync item=%d: balance refresh failed: %v", item.ID, err)
		return
	}
	if err := o.store.UpdateBalances(ctx, item.ID, balances); err != nil {
		log.Printf("sync item=%d: balance update failed: %v", item.ID, err)
	}
}

func (o *Orchestrator) itemLock(itemID uint) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.itemLocks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		o.itemLocks[itemID] = lock
	}
	return lock
}
