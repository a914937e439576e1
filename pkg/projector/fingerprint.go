package projector

import (
	"encoding/binary"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"

	"github.com/columnbase/projector/pkg/backend"
	"github.com/columnbase/projector/pkg/expr"
	"github.com/columnbase/projector/pkg/selection"
)

const (
	// shardSlots bounds the shard index; contention-prone expression sets
	// fragment across at most this many cache slots.
	shardSlots = 16

	// contentionSignature marks expression classes whose compiled form
	// serializes on a shared lock during execution (LIKE pattern
	// matching). The canonical form of a like call always contains it.
	contentionSignature = " like("
)

// fingerprintSeed is folded into every digest so the hash space is
// distinct from plain xxhash over the same strings.
var fingerprintSeed = []byte{0x04}

// cacheKey fingerprints a (schema, configuration, expression set, mode)
// tuple. Keys are immutable after construction; hash is consistent with
// Equal (equal keys hash equally, unequal keys may collide).
type cacheKey struct {
	hash        uint64
	schema      *arrow.Schema
	cfg         *backend.Config
	exprStrings []string
	mode        selection.Mode
	shard       uint32
}

// newCacheKey derives a key from the build inputs. Construction cannot
// fail; malformed schema or expression content is caught later by the
// expression validator.
//
// If any expression matches the contention signature, a pseudo-random
// shard in [0, shardSlots) is baked into the key so concurrent callers
// compiling structurally identical expression sets land in different
// cache slots, at the cost of cache hit rate for that expression class.
func newCacheKey(schema *arrow.Schema, cfg *backend.Config, exprs []*expr.Expression, mode selection.Mode) *cacheKey {
	k := &cacheKey{
		schema:      schema,
		cfg:         cfg,
		exprStrings: make([]string, 0, len(exprs)),
		mode:        mode,
	}

	d := xxhash.New()
	_, _ = d.Write(fingerprintSeed)
	for _, e := range exprs {
		s := e.String()
		k.exprStrings = append(k.exprStrings, s)
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})

		if k.shard == 0 && strings.Contains(s, contentionSignature) {
			k.shard = rand.Uint32N(shardSlots)
		}
	}

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(mode))
	_, _ = d.Write(scratch[:])
	binary.LittleEndian.PutUint64(scratch[:], cfg.Hash())
	_, _ = d.Write(scratch[:])
	_, _ = d.WriteString(schema.String())
	binary.LittleEndian.PutUint64(scratch[:], uint64(k.shard))
	_, _ = d.Write(scratch[:])

	k.hash = d.Sum64()
	return k
}

// Hash returns the key's digest.
func (k *cacheKey) Hash() uint64 { return k.hash }

// Equal reports whether two keys fingerprint the same build. Comparison
// short-circuits on the first mismatching component.
func (k *cacheKey) Equal(other *cacheKey) bool {
	if !k.schema.Equal(other.schema) {
		return false
	}
	if !k.cfg.Equal(other.cfg) {
		return false
	}
	if !slices.Equal(k.exprStrings, other.exprStrings) {
		return false
	}
	if k.mode != other.mode {
		return false
	}
	return k.shard == other.shard
}
