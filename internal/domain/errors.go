package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Ошибки проверки черновика заказа.
	ErrCartEmpty            = errors.New("cart is empty")
	ErrCustomerNameRequired = errors.New("first name and last name are required")
	ErrEmailInvalid         = errors.New("email is missing or invalid")
	ErrPickupRequired       = errors.New("pickup date and time are required")
	ErrPickupDateTooEarly   = errors.New("pickup date must be at least tomorrow")
	ErrPickupSlotInvalid    = errors.New("pickup time is not an available slot")
	ErrPaymentMethodInvalid = errors.New("payment method is not supported")

	// Ошибки корзины.
	ErrQuantityInvalid    = errors.New("quantity must be a positive multiple of 0.5")
	ErrProductUnavailable = errors.New("product is not available")
	ErrProductNotFound    = errors.New("product not found")
	// ErrInsufficientStock — цель для errors.Is у *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCartPersist — не удалось сохранить корзину; изменение откатывается.
	ErrCartPersist = errors.New("cart persistence failed")

	// Ошибки суммы заказа.
	ErrAmountNegative   = errors.New("total amount must be non-negative")
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	ErrAmountMismatch   = errors.New("order amount does not match lines sum")

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — запись с таким ID уже есть.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOrderPersistence — заказ не сохранён; повтор безопасен.
	ErrOrderPersistence = errors.New("order persistence failed")

	// ErrPaymentUnavailable — платёжная сессия не создана (провайдер недоступен, не настроен или отказал).
	ErrPaymentUnavailable = errors.New("payment session unavailable")
	// ErrPaymentRedirect — сессия создана, но перенаправление на оплату не удалось.
	ErrPaymentRedirect = errors.New("payment redirect failed")

	// ErrNotificationFailed — канал уведомлений вернул ошибку.
	ErrNotificationFailed = errors.New("notification delivery failed")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrKeyNotFound — ключ отсутствует в key-value хранилище.
	ErrKeyNotFound = errors.New("key not found")

	// Ошибки idempotency-ключей.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
)

// InsufficientStockError — ожидаемый, исправляемый пользователем отказ по остатку.
type InsufficientStockError struct {
	ProductID string
	Available decimal.Decimal
	Unit      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %s %s", e.ProductID, e.Available.StringFixed(2), e.Unit)
}

// Is позволяет проверять ошибку через errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsValidationError сообщает, что ошибка относится к проверке черновика или количества.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrCartEmpty, ErrCustomerNameRequired, ErrEmailInvalid, ErrPickupRequired,
		ErrPickupDateTooEarly, ErrPickupSlotInvalid, ErrPaymentMethodInvalid, ErrQuantityInvalid,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsIdempotencyConflict проверяет конфликт idempotency-ключа.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

var userMessages = []struct {
	err error
	msg string
}{
	{ErrCartEmpty, "Votre panier est vide."},
	{ErrCustomerNameRequired, "Veuillez remplir votre nom et prénom."},
	{ErrEmailInvalid, "Veuillez remplir une adresse email valide."},
	{ErrPickupRequired, "Veuillez sélectionner une date et une heure de retrait."},
	{ErrPickupDateTooEarly, "La date de retrait doit être au plus tôt demain."},
	{ErrPickupSlotInvalid, "Veuillez choisir un créneau de retrait entre 08:30 et 20:00."},
	{ErrPaymentMethodInvalid, "Veuillez choisir un mode de paiement."},
	{ErrQuantityInvalid, "La quantité doit être un multiple de 0,5."},
	{ErrProductUnavailable, "Ce produit n'est plus disponible."},
	{ErrProductNotFound, "Ce produit est introuvable."},
	{ErrCartPersist, "Impossible d'enregistrer votre panier. Veuillez réessayer."},
	{ErrOrderNotFound, "Commande introuvable."},
	{ErrOrderAlreadyExists, "Cette commande existe déjà."},
	{ErrOrderPersistence, "Erreur lors de la création de la commande. Veuillez réessayer."},
	{ErrPaymentUnavailable, "Le paiement en ligne n'a pas pu être initié. Votre commande est bien enregistrée : vous pouvez réessayer ou régler en magasin."},
	{ErrPaymentRedirect, "La redirection vers le paiement a échoué. Votre commande est bien enregistrée : vous pouvez réessayer ou régler en magasin."},
}

// UserMessage возвращает сообщение для покупателя на французском.
// Текст ошибки бэкенда наружу не попадает.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return fmt.Sprintf("Stock insuffisant. Disponible : %s %s", stockErr.Available.StringFixed(2), stockErr.Unit)
	}
	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Une erreur est survenue. Veuillez réessayer."
}
