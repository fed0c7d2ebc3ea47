package meter

// Peak returns the largest absolute value in the block. The magnitude of
// math.MinInt16 is 32768, which still fits. An empty block has a peak of 0.
func Peak(block []int16) uint16 {
	var peak uint16
	for _, s := range block {
		m := uint16(s)
		if s < 0 {
			m = -m
		}
		if m > peak {
			peak = m
		}
	}
	return peak
}
