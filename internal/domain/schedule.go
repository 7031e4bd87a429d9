package domain

import (
	"fmt"
	"time"
)

const (
	// PickupDateLayout — формат даты самовывоза в API.
	PickupDateLayout = "2006-01-02"

	pickupOpeningMinutes = 8*60 + 30
	pickupClosingMinutes = 20 * 60
	pickupSlotStep       = 30
)

var pickupSlots = buildPickupSlots()

func buildPickupSlots() []string {
	slots := make([]string, 0, (pickupClosingMinutes-pickupOpeningMinutes)/pickupSlotStep+1)
	for m := pickupOpeningMinutes; m <= pickupClosingMinutes; m += pickupSlotStep {
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}

// PickupSlots возвращает копию фиксированного списка слотов: каждые 30 минут с 08:30 до 20:00 включительно.
func PickupSlots() []string {
	out := make([]string, len(pickupSlots))
	copy(out, pickupSlots)
	return out
}

// IsPickupSlot проверяет, что время совпадает с одним из слотов.
func IsPickupSlot(value string) bool {
	for _, slot := range pickupSlots {
		if slot == value {
			return true
		}
	}
	return false
}

// MinimumPickupDate — "завтра" относительно now в его часовом поясе, время обнулено.
func MinimumPickupDate(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
}

// ParsePickupDate разбирает дату самовывоза в часовом поясе магазина.
func ParsePickupDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(PickupDateLayout, value, loc)
}
