package analysis

// similarityRatio measures how alike two text blocks are as 2*M/T, where M
// is the total length of all matching runs found by repeatedly taking the
// longest common substring and recursing into the unmatched gaps, and T is
// the combined length of both inputs. Identical blocks score 1.0, disjoint
// blocks 0.0.
func similarityRatio(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 1.0
	}

	b2j := make(map[byte][]int, len(b))
	for j := 0; j < len(b); j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	matched := 0
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		besti, bestj, bestsize := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if bestsize == 0 {
			continue
		}
		matched += bestsize
		queue = append(queue,
			span{s.alo, besti, s.blo, bestj},
			span{besti + bestsize, s.ahi, bestj + bestsize, s.bhi},
		)
	}

	return 2 * float64(matched) / float64(len(a)+len(b))
}

// longestMatch locates the longest run of bytes common to a[alo:ahi] and
// b[blo:bhi], preferring the earliest occurrence.
func longestMatch(a string, b2j map[byte][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newj2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newj2len
	}
	return besti, bestj, bestsize
}
