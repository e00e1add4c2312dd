// Package binner partitions a sorted stream of latents into a small number
// of bins, each covering a contiguous range of latent values and described
// by a lower bound plus a fixed number of offset bits. Binning is what lets
// the tANS codec spend its table entries on coarse structure (which bin) and
// cheap raw bits on fine structure (offset within the bin), instead of
// giving every distinct latent value its own tANS symbol.
package binner

import (
	"math/bits"
	"sort"

	"github.com/arloliu/pco/errs"
	"github.com/arloliu/pco/format"
	"github.com/arloliu/pco/internal/pool"
)

// BinInfo is one partition of the latent range [Lower, Lower+2^OffsetBits).
// Weight is this bin's normalized tANS weight (>= 1, all weights sum to
// the chosen table size).
type BinInfo struct {
	Lower      uint64
	OffsetBits uint8
	Weight     uint32
}

// perBinOverheadBits approximates the fixed cost of adding one more bin:
// its tANS table-row share plus its header fields (lower bound, offset
// width). The DP merge step only splits a range into more bins when doing
// so saves more raw offset bits than this.
const perBinOverheadBits = 24

// Result is the outcome of binning one latent stream.
type Result struct {
	Bins       []BinInfo
	TableLog   int
	BinIndices []uint32 // per input latent, which bin it fell into
	Offsets    []uint64 // per input latent, its offset within that bin
}

// seed is one quantile-seeded group of contiguous unique values, the unit
// the DP merge step operates on.
type seed struct {
	minVal   uint64
	maxVal   uint64
	count    uint64
	uniqLo   int
	uniqHi   int
}

// Bin partitions latents into at most maxBins bins using quantile seeding
// followed by a DP pass that merges adjacent seed groups whenever doing so
// reduces Σ (count*offset_bits + perBinOverheadBits) over the bins.
func Bin(latents []uint64, maxBins int) (*Result, error) {
	if len(latents) == 0 {
		return nil, errs.Wrap(errs.KindInvalidConfig, errs.ErrInvalidConfig, "binner.Bin", "empty input")
	}
	if maxBins < 1 {
		maxBins = 1
	}
	if maxBins > format.MaxBinCount {
		maxBins = format.MaxBinCount
	}

	uniqVals, uniqCounts := histogram(latents)

	seeds := seedGroups(uniqVals, uniqCounts, maxBins)
	boundaries := dpMerge(seeds)

	bins := make([]BinInfo, len(boundaries))
	for i, b := range boundaries {
		span := b.maxVal - b.minVal
		offsetBits := 0
		if span > 0 {
			offsetBits = bits.Len64(span)
		}
		bins[i] = BinInfo{Lower: b.minVal, OffsetBits: uint8(offsetBits), Weight: uint32(b.count)}
	}

	tableLog := chooseTableLog(len(latents), len(bins))
	normalizeWeights(bins, uint32(1)<<uint(tableLog))

	binIdx, offsets := assign(latents, bins)

	return &Result{Bins: bins, TableLog: tableLog, BinIndices: binIdx, Offsets: offsets}, nil
}

// histogram returns the sorted distinct values in latents and their counts.
// The sort needs its own scratch copy (latents must stay in original
// order for the caller's offset/bin assignment pass), drawn from the pool
// since every page runs this once over its full latent count.
func histogram(latents []uint64) ([]uint64, []uint64) {
	sorted, release := pool.GetUint64Slice(len(latents))
	defer release()
	copy(sorted, latents)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var vals, counts []uint64
	i := 0
	for i < len(sorted) {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		vals = append(vals, sorted[i])
		counts = append(counts, uint64(j-i))
		i = j
	}

	return vals, counts
}

// seedGroups splits the unique-value histogram into up to maxSeeds groups
// of roughly equal total count, using cumulative-count quantile cut points.
func seedGroups(vals, counts []uint64, maxSeeds int) []seed {
	m := len(vals)
	if maxSeeds > m {
		maxSeeds = m
	}

	var total uint64
	prefix := make([]uint64, m+1)
	for i, c := range counts {
		total += c
		prefix[i+1] = total
	}

	seeds := make([]seed, 0, maxSeeds)
	lo := 0
	for g := 0; g < maxSeeds; g++ {
		targetCum := total * uint64(g+1) / uint64(maxSeeds)
		hi := lo
		for hi+1 < m && prefix[hi+1] < targetCum {
			hi++
		}
		if g == maxSeeds-1 {
			hi = m - 1
		}
		if hi < lo {
			hi = lo
		}

		seeds = append(seeds, seed{
			minVal: vals[lo],
			maxVal: vals[hi],
			count:  prefix[hi+1] - prefix[lo],
			uniqLo: lo,
			uniqHi: hi,
		})
		lo = hi + 1
		if lo >= m {
			break
		}
	}

	return seeds
}

// dpMerge finds the subset of adjacent-seed merges minimizing total cost,
// via a classic O(K^2) "optimal partition" DP over the K seed groups.
func dpMerge(seeds []seed) []seed {
	k := len(seeds)
	if k <= 1 {
		return seeds
	}

	seedPrefix := make([]uint64, k+1)
	for i, s := range seeds {
		seedPrefix[i+1] = seedPrefix[i] + s.count
	}

	cost := func(i, j int) (uint64, uint64, uint64) { // [i,j] inclusive -> min,max,count
		return seeds[i].minVal, seeds[j].maxVal, seedPrefix[j+1] - seedPrefix[i]
	}

	dp := make([]uint64, k+1)
	choice := make([]int, k+1)
	const maxCost = ^uint64(0)
	for i := 1; i <= k; i++ {
		dp[i] = maxCost
		for j := 0; j < i; j++ {
			minV, maxV, cnt := cost(j, i-1)
			span := maxV - minV
			offsetBits := uint64(0)
			if span > 0 {
				offsetBits = uint64(bits.Len64(span))
			}
			c := dp[j] + cnt*offsetBits + perBinOverheadBits
			if c < dp[i] {
				dp[i] = c
				choice[i] = j
			}
		}
	}

	var merged []seed
	for i := k; i > 0; {
		j := choice[i]
		minV, maxV, cnt := cost(j, i-1)
		merged = append(merged, seed{minVal: minV, maxVal: maxV, count: cnt, uniqLo: seeds[j].uniqLo, uniqHi: seeds[i-1].uniqHi})
		i = j
	}
	// merged was built back-to-front; reverse it.
	for i, j := 0, len(merged)-1; i < j; i, j = i+1, j-1 {
		merged[i], merged[j] = merged[j], merged[i]
	}

	return merged
}

// chooseTableLog picks the tANS table size exponent: large enough to give
// every bin a weight of at least 1 with reasonable precision relative to
// the number of latents, bounded by format.MaxAnsSizeLog. A single bin
// needs no table precision and gets exponent 0.
func chooseTableLog(n, numBins int) int {
	if numBins <= 1 {
		return 0
	}
	need := bits.Len(uint(numBins))
	if numBins > 0 && numBins&(numBins-1) == 0 {
		need-- // numBins already a power of two
	}
	if need < 5 {
		need = 5
	}
	if need > format.MaxAnsSizeLog {
		need = format.MaxAnsSizeLog
	}
	// Give the table a little more precision than the bare minimum when
	// there is enough data to justify it.
	if n >= (1<<uint(need))*8 && need < format.MaxAnsSizeLog {
		need++
	}

	return need
}

// normalizeWeights scales each bin's raw count to a tANS weight, keeping
// every weight >= 1 and the total exactly L via largest-remainder rounding.
func normalizeWeights(bins []BinInfo, L uint32) {
	var total uint64
	for _, b := range bins {
		total += uint64(b.Weight)
	}
	if total == 0 {
		total = 1
	}

	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(bins))

	var assigned uint32
	for i, b := range bins {
		exact := float64(b.Weight) * float64(L) / float64(total)
		w := uint32(exact)
		if w < 1 {
			w = 1
		}
		rems[i] = rem{idx: i, frac: exact - float64(w)}
		bins[i].Weight = w
		assigned += w
	}

	if assigned == L {
		return
	}

	if assigned < L {
		sort.Slice(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
		need := L - assigned
		for i := 0; i < len(rems) && need > 0; i++ {
			bins[rems[i].idx].Weight++
			need--
		}
		for need > 0 { // exhausted one pass, keep adding round robin
			for i := 0; i < len(rems) && need > 0; i++ {
				bins[rems[i].idx].Weight++
				need--
			}
		}

		return
	}

	sort.Slice(rems, func(a, b int) bool { return rems[a].frac < rems[b].frac })
	excess := assigned - L
	for excess > 0 {
		progressed := false
		for i := 0; i < len(rems) && excess > 0; i++ {
			if bins[rems[i].idx].Weight > 1 {
				bins[rems[i].idx].Weight--
				excess--
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
}

// assign maps each input latent to its bin index and in-bin offset via
// binary search over the (sorted, non-overlapping) bin lower bounds.
func assign(latents []uint64, bins []BinInfo) ([]uint32, []uint64) {
	idx := make([]uint32, len(latents))
	off := make([]uint64, len(latents))

	for i, v := range latents {
		b := sort.Search(len(bins), func(k int) bool { return bins[k].Lower > v }) - 1
		if b < 0 {
			b = 0
		}
		idx[i] = uint32(b)
		off[i] = v - bins[b].Lower
	}

	return idx, off
}
