package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

var (
	frWeekdays      = [...]string{"dimanche", "lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi"}
	frWeekdaysShort = [...]string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."}
	frMonths        = [...]string{"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"}
	frMonthsShort   = [...]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}
)

// longDate: «mercredi 11 mars 2026».
func longDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", frWeekdays[t.Weekday()], t.Day(), frMonths[t.Month()-1], t.Year())
}

// shortDate: «mer. 11 mars».
func shortDate(t time.Time) string {
	return fmt.Sprintf("%s %d %s", frWeekdaysShort[t.Weekday()], t.Day(), frMonthsShort[t.Month()-1])
}

func euros(d decimal.Decimal) string {
	return d.StringFixed(2) + " €"
}

func quantity(d decimal.Decimal) string {
	return d.String()
}

func paymentLabel(order domain.Order) string {
	if order.PaymentMethod == domain.PaymentMethodOnline {
		if order.PaymentStatus == domain.PaymentStatusPaid {
			return "Paiement en ligne effectué"
		}
		return "Paiement en ligne (en attente de confirmation)"
	}
	return "Paiement en magasin"
}

// titleName приводит «jean DUPONT» к «Jean Dupont».
func titleName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		if len(runes) > 0 {
			runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
