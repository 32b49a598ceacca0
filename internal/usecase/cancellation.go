package usecase

import (
	"time"

	"vehicle-rental/internal/data/entity"
)

// RefundPercent returns the share of the captured amount refunded when a
// booking is cancelled hoursUntilStart before it begins.
func RefundPercent(policy entity.CancellationPolicy, hoursUntilStart float64) float64 {
	switch policy {
	case entity.CancellationPolicyFlexible:
		switch {
		case hoursUntilStart > 24:
			return 100
		case hoursUntilStart > 1:
			return 50
		}
	case entity.CancellationPolicyModerate:
		switch {
		case hoursUntilStart > 168:
			return 100
		case hoursUntilStart > 24:
			return 50
		}
	case entity.CancellationPolicyStrict:
		if hoursUntilStart > 168 {
			return 50
		}
	}
	return 0
}

// ApprovalDeadline gives hosts less time to decide the closer the rental
// start is.
func ApprovalDeadline(now, startAt time.Time, minNoticeHours int) time.Time {
	hoursUntilStart := startAt.Sub(now).Hours()
	if hoursUntilStart < float64(minNoticeHours) {
		return now.Add(time.Hour)
	}
	window := time.Duration(minNoticeHours) * time.Hour / 2
	if window < time.Hour {
		window = time.Hour
	}
	return now.Add(window)
}
