package checkout

// State — состояние одной попытки оформления заказа.
type State string

const (
	StateIdle                    State = "idle"
	StateValidating              State = "validating"
	StateCreatingOrder           State = "creating_order"
	StateOrderCreated            State = "order_created"
	StateAwaitingPaymentRedirect State = "awaiting_payment_redirect"
	// StateRedirecting — конечное состояние: покупатель уходит на страницу оплаты.
	StateRedirecting State = "redirecting"
	StateNotifying   State = "notifying"
	// StateCompleted — конечное состояние: корзина очищена, подтверждение показано.
	StateCompleted State = "completed"
)

var transitions = map[State][]State{
	StateIdle:                    {StateValidating},
	StateValidating:              {StateIdle, StateCreatingOrder},
	StateCreatingOrder:           {StateIdle, StateOrderCreated},
	StateOrderCreated:            {StateAwaitingPaymentRedirect, StateNotifying},
	StateAwaitingPaymentRedirect: {StateRedirecting, StateNotifying},
	StateNotifying:               {StateCompleted},
}

// CanTransition сообщает, допустим ли переход from → to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal сообщает, что из состояния больше нет переходов.
func (s State) Terminal() bool {
	return s == StateRedirecting || s == StateCompleted
}
