package linkstore

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/farcasterxyz/linkstore/pkg/logger"
)

// PruneScheduler runs Prune across every known fid on a cron schedule:
// compute the next tick with gronx, sleep until it arrives, run, repeat.
type PruneScheduler struct {
	store *LinkStore
	cron  string
}

// NewPruneScheduler builds a scheduler that prunes store on the given cron
// expression (standard 5-field, as accepted by gronx).
func NewPruneScheduler(store *LinkStore, cron string) *PruneScheduler {
	return &PruneScheduler{store: store, cron: cron}
}

// Start launches the scheduling loop in a background goroutine and returns a
// cancel function that stops it.
func (p *PruneScheduler) Start(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go p.run(ctx)
	return cancel
}

func (p *PruneScheduler) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		next, err := gronx.NextTickAfter(p.cron, time.Now().UTC(), false)
		if err != nil {
			logger.Error("prune_schedule_nexttick_failed", "cron", p.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-time.After(wait):
			p.runSweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *PruneScheduler) runSweep(ctx context.Context) {
	fids, err := p.store.enumerateFids()
	if err != nil {
		logger.Error("prune_sweep_enumerate_failed", "error", err)
		return
	}
	var totalDeleted int
	for _, fid := range fids {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := p.store.Prune(ctx, fid)
		if err != nil {
			logger.Error("prune_sweep_fid_failed", "fid", fid, "error", err)
			continue
		}
		totalDeleted += n
	}
	logger.Info("prune_sweep_complete", "fids_scanned", len(fids), "messages_deleted", totalDeleted)
}

// enumerateFids walks the per-user keyspace looking for fids that own at
// least one primary link message. It is a full keyspace scan, acceptable
// for a cron sweep but not for a request-serving path.
func (s *LinkStore) enumerateFids() ([]uint32, error) {
	seen := make(map[uint32]bool)
	var out []uint32
	prefix := []byte{byte(RootPrefixUser)}
	err := s.kv.ScanPrefix(prefix, nil, nil, func(k, _ []byte) (bool, error) {
		if len(k) < RootPrefixedFidSize+PostfixByteSize {
			return false, nil
		}
		if UserPostfix(k[RootPrefixedFidSize]) != UserPostfixLinkMessage {
			return false, nil
		}
		fid := beFid(k[RootPrefixByteSize:RootPrefixedFidSize])
		if !seen[fid] {
			seen[fid] = true
			out = append(out, fid)
		}
		return false, nil
	})
	return out, err
}
