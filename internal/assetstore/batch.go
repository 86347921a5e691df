package assetstore

import (
	"context"
	"crypto/sha256"

	"golang.org/x/sync/errgroup"

	"certassets.dev/internal/coreerr"
	"certassets.dev/internal/rcbytes"
)

func sha256Sum(b []byte) [32]byte {
	return sha256.Sum256(b)
}

// CreateBatch allocates the next batch id, sets its expiry to now +
// BatchExpiry, and sweeps every chunk/batch whose expiry has already
// passed. This sweep is the only GC trigger the upload engine has:
// idle batches accumulate until the next create_batch call notices
// them (spec.md §4.5).
func (s *Store) CreateBatch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.host.Time()
	s.sweepExpiredLocked(now)

	id := s.nextBatchID
	s.nextBatchID++
	s.batches[id] = &Batch{ExpiresAt: now + BatchExpiry}
	return id
}

// sweepExpiredLocked removes every batch past its expiry and the
// chunks staged under it. The scan over s.chunks fans out across
// goroutines the way ctsubmit/bucket.go's garbage collector shards its
// object scan: each shard only reads s.chunks and writes its own
// results slot, so it stays safe under the store-wide mutex the
// caller already holds; only the delete pass below mutates the map.
func (s *Store) sweepExpiredLocked(now int64) {
	expired := make(map[uint64]bool)
	for id, b := range s.batches {
		if b.ExpiresAt <= now {
			expired[id] = true
		}
	}
	if len(expired) == 0 {
		return
	}

	chunkIDs := make([]uint64, 0, len(s.chunks))
	for id := range s.chunks {
		chunkIDs = append(chunkIDs, id)
	}

	const maxShards = 8
	numShards := maxShards
	if len(chunkIDs) < numShards {
		numShards = 1
	}
	shardLen := (len(chunkIDs) + numShards - 1) / numShards
	hits := make([][]uint64, numShards)

	g, _ := errgroup.WithContext(context.Background())
	for shard := 0; shard < numShards; shard++ {
		start := shard * shardLen
		if start >= len(chunkIDs) {
			break
		}
		end := start + shardLen
		if end > len(chunkIDs) {
			end = len(chunkIDs)
		}
		shard, start, end := shard, start, end
		g.Go(func() error {
			var hit []uint64
			for _, id := range chunkIDs[start:end] {
				if expired[s.chunks[id].BatchID] {
					hit = append(hit, id)
				}
			}
			hits[shard] = hit
			return nil
		})
	}
	_ = g.Wait()

	for _, shard := range hits {
		for _, id := range shard {
			delete(s.chunks, id)
		}
	}
	for id := range expired {
		delete(s.batches, id)
	}
}

// CreateChunkArgs is create_chunk's argument record.
type CreateChunkArgs struct {
	BatchID uint64
	Content []byte
	Sha256  *[32]byte
}

// CreateChunk stages content under batch_id, refreshing its expiry.
func (s *Store) CreateChunk(args CreateChunkArgs) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch, ok := s.batches[args.BatchID]
	if !ok {
		return 0, coreerr.ErrBatchNotFound
	}
	batch.ExpiresAt = s.host.Time() + BatchExpiry

	digest, err := chunkDigest(args.Content, args.Sha256)
	if err != nil {
		return 0, err
	}

	id := s.nextChunkID
	s.nextChunkID++
	s.chunks[id] = &Chunk{BatchID: args.BatchID, Content: rcbytes.New(args.Content), Sha256: digest}
	return id, nil
}

func chunkDigest(content []byte, supplied *[32]byte) ([32]byte, error) {
	if supplied != nil {
		return *supplied, nil
	}
	return sha256Sum(content), nil
}

// Operation is one entry of a commit_batch operation log, replayed in
// order against the store. A failing operation stops the replay;
// Operation implementations do not undo the operations applied before
// it.
type Operation interface {
	apply(s *Store) error
}

// CreateAssetOp is commit_batch's CreateAsset operation.
type CreateAssetOp struct {
	Key         string
	ContentType string
}

func (o CreateAssetOp) apply(s *Store) error {
	return s.createAssetLocked(o.Key, o.ContentType)
}

// SetAssetContentOp is commit_batch's SetAssetContent operation.
type SetAssetContentOp struct {
	Args SetAssetContentArgs
}

func (o SetAssetContentOp) apply(s *Store) error {
	return s.setAssetContentLocked(o.Args)
}

// UnsetAssetContentOp is commit_batch's UnsetAssetContent operation.
type UnsetAssetContentOp struct {
	Key      string
	Encoding string
}

func (o UnsetAssetContentOp) apply(s *Store) error {
	return s.unsetAssetContentLocked(o.Key, o.Encoding)
}

// DeleteAssetOp is commit_batch's DeleteAsset operation.
type DeleteAssetOp struct {
	Key string
}

func (o DeleteAssetOp) apply(s *Store) error {
	return s.deleteAssetLocked(o.Key)
}

// ClearOp is commit_batch's Clear operation.
type ClearOp struct{}

func (o ClearOp) apply(s *Store) error {
	return s.clearLocked()
}

// CommitBatch replays operations in order against the asset store and
// then removes batchID. The first failing operation ends the call with
// its error and the batch is kept. Nothing is rolled back: operations
// applied before the failing one stay applied. s.mu is held for the
// whole replay, so no other call observes the store mid-replay, but a
// failed commit can leave it partially updated.
func (s *Store) CommitBatch(batchID uint64, operations []Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.batches[batchID]; !ok {
		return coreerr.ErrBatchNotFound
	}

	for _, op := range operations {
		if err := op.apply(s); err != nil {
			return err
		}
	}

	delete(s.batches, batchID)
	return nil
}
