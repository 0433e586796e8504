package seed

import "gatekeeper/internal/models"

// Distribution weights each moderation status in generated data.
type Distribution map[models.PostStatus]int

var distributionOrder = []models.PostStatus{
	models.PostStatusPending,
	models.PostStatusApproved,
	models.PostStatusRejected,
	models.PostStatusPendingDeletion,
	models.PostStatusDeleted,
}

var defaultDistribution = Distribution{
	models.PostStatusPending:         40,
	models.PostStatusApproved:        40,
	models.PostStatusRejected:        10,
	models.PostStatusPendingDeletion: 5,
	models.PostStatusDeleted:         5,
}

// computeCounts splits total across statuses by weight. Rounding remainders
// go to the earliest statuses so the counts always sum to total.
func computeCounts(total int, d Distribution) map[models.PostStatus]int {
	counts := make(map[models.PostStatus]int, len(distributionOrder))
	if total <= 0 {
		return counts
	}
	weight := 0
	for _, s := range distributionOrder {
		weight += d[s]
	}
	if weight == 0 {
		counts[models.PostStatusPending] = total
		return counts
	}

	assigned := 0
	for _, s := range distributionOrder {
		counts[s] = total * d[s] / weight
		assigned += counts[s]
	}
	for i := 0; assigned < total; i++ {
		s := distributionOrder[i%len(distributionOrder)]
		if d[s] == 0 {
			continue
		}
		counts[s]++
		assigned++
	}
	return counts
}
