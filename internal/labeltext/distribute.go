package labeltext

import (
	"sort"
	"strings"

	"cardvault/internal/ocr"
)

// Distribute splits the OCR output for a stitched composite back into one
// text segment per member, in member order. The composite concatenates
// labels top to bottom in a known order, so position is the primary signal:
// when the OCR result carries block geometry, blocks are binned into equal
// vertical bands; otherwise lines are partitioned evenly in order.
//
// The returned slice always has exactly memberCount entries. A member whose
// band produced no text gets an empty segment, not an error.
func Distribute(result *ocr.Result, compositeHeight, memberCount int) []string {
	segments := make([]string, memberCount)
	if memberCount <= 0 || result == nil {
		return segments
	}

	if compositeHeight > 0 && len(result.Blocks) > 0 {
		distributeByBands(result.Blocks, compositeHeight, segments)
		if anyNonEmpty(segments) {
			return segments
		}
	}

	distributeByLines(result.Text, segments)
	return segments
}

func distributeByBands(blocks []ocr.Block, compositeHeight int, segments []string) {
	memberCount := len(segments)
	bandHeight := float64(compositeHeight) / float64(memberCount)
	if bandHeight <= 0 {
		return
	}

	type placed struct {
		band int
		y    int
		x    int
		text string
	}
	var all []placed
	for _, block := range blocks {
		center := float64(block.BoundingBox.Y) + float64(block.BoundingBox.Height)/2
		band := int(center / bandHeight)
		if band < 0 {
			band = 0
		}
		if band >= memberCount {
			band = memberCount - 1
		}
		all = append(all, placed{
			band: band,
			y:    block.BoundingBox.Y,
			x:    block.BoundingBox.X,
			text: block.Text,
		})
	}

	// Reading order within each band: top to bottom, then left to right.
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].band != all[j].band {
			return all[i].band < all[j].band
		}
		if all[i].y != all[j].y {
			return all[i].y < all[j].y
		}
		return all[i].x < all[j].x
	})

	parts := make([][]string, memberCount)
	for _, p := range all {
		parts[p.band] = append(parts[p.band], p.text)
	}
	for i, words := range parts {
		segments[i] = strings.Join(words, "\n")
	}
}

func distributeByLines(text string, segments []string) {
	memberCount := len(segments)
	lines := splitLines(text)
	if len(lines) == 0 {
		return
	}

	// Even contiguous partition: member i gets its positional share of the
	// lines, preserving order.
	perMember := len(lines) / memberCount
	remainder := len(lines) % memberCount
	idx := 0
	for i := 0; i < memberCount; i++ {
		take := perMember
		if i < remainder {
			take++
		}
		if take == 0 || idx >= len(lines) {
			continue
		}
		end := idx + take
		if end > len(lines) {
			end = len(lines)
		}
		segments[i] = strings.Join(lines[idx:end], "\n")
		idx = end
	}
}

func anyNonEmpty(segments []string) bool {
	for _, s := range segments {
		if s != "" {
			return true
		}
	}
	return false
}
