package market

// CalculateImbalance calculates the imbalance between bid and ask volumes
// Imbalance = (BidVol - AskVol) / (BidVol + AskVol)
// The boolean is false when total volume is zero: the ratio is undefined
// there, which must stay distinguishable from a genuine zero imbalance.
func CalculateImbalance(bidVolumeTop float64, askVolumeTop float64) (float64, bool) {
	totalVolume := bidVolumeTop + askVolumeTop
	if totalVolume == 0 {
		return 0, false
	}
	return (bidVolumeTop - askVolumeTop) / totalVolume, true
}
