// Package checkout drives an order from address entry to payment.
//
// An Orchestrator is a state machine over one order:
//
//	LOADING_ORDER -> ADDRESS -> PAYMENT -> SUCCESS
//
// with ERROR reachable from any non-terminal state. Every operation is safe
// for concurrent use; remote calls run outside the lock so Snapshot stays
// responsive while a lookup or payment is in flight.
package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KelvenAlvess/marketplace-storefront/internal/domain"
	"github.com/KelvenAlvess/marketplace-storefront/internal/payments"
	"github.com/KelvenAlvess/marketplace-storefront/internal/shipping"
	"github.com/KelvenAlvess/marketplace-storefront/internal/users"
)

// State is a checkout step.
type State string

const (
	StateLoadingOrder State = "LOADING_ORDER"
	StateAddress      State = "ADDRESS"
	StatePayment      State = "PAYMENT"
	StateSuccess      State = "SUCCESS"
	StateError        State = "ERROR"
)

// ErrSubmissionInFlight rejects a payment while another one is running.
var ErrSubmissionInFlight = &domain.Error{Kind: domain.KindInFlight, Op: "checkout.Pay", Message: "a payment is already being processed"}

// OrderService is the order backend.
type OrderService interface {
	Get(ctx context.Context, id domain.ID) (domain.Order, error)
	Create(ctx context.Context, userID domain.ID) (domain.Order, error)
	PatchShipping(ctx context.Context, id domain.ID, cost domain.Money) (domain.Order, error)
}

// ShippingResolver quotes shipping for a normalized postal code.
type ShippingResolver interface {
	Resolve(ctx context.Context, postalCode string) ([]domain.ShippingOption, error)
}

// PaymentGateway submits payments.
type PaymentGateway interface {
	PayCard(ctx context.Context, req payments.CardRequest) (domain.Settlement, error)
	PayPix(ctx context.Context, req payments.PixRequest) (domain.Settlement, error)
	Status(ctx context.Context, transactionID string) (domain.Settlement, error)
}

// ProfileUpdater persists the identity fields collected at the address step.
type ProfileUpdater interface {
	UpdateProfile(ctx context.Context, userID domain.ID, p users.Profile) error
}

// Identity exposes the signed-in shopper.
type Identity interface {
	User() (domain.User, bool)
}

// CartSource is the cart a new order is created from.
type CartSource interface {
	Items() []domain.CartItem
}

// Deps wires the collaborators.
type Deps struct {
	Orders   OrderService
	Shipping ShippingResolver
	Payments PaymentGateway
	Profiles ProfileUpdater
	Identity Identity
	Logger   *zap.Logger
	// Debounce delays a postal-code lookup so rapid edits only hit the
	// backend once.
	Debounce time.Duration
	// NewKey generates idempotency keys; defaults to payments.NewIdempotencyKey.
	NewKey func() string
}

// AddressForm is the address step submission.
type AddressForm struct {
	TaxID   string
	Phone   string
	Address domain.Address
}

// CardInput is what the tokenization widget yields.
type CardInput struct {
	Token           string
	PaymentMethodID string
	Installments    int
}

// Orchestrator runs the checkout of one order.
type Orchestrator struct {
	deps    Deps
	orderID domain.ID
	logger  *zap.Logger
	tracker *shipping.Tracker

	mu           sync.Mutex
	state        State
	order        domain.Order
	postalCode   string
	options      []domain.ShippingOption
	selection    *domain.ShippingSelection
	cancelLookup context.CancelFunc
	shippingErr  error
	lastErr      error
	addressBusy  bool
	submitting   bool
	refreshing   bool
	settlement   *domain.Settlement
	attempts     []domain.PaymentAttempt
}

// New returns an orchestrator in LOADING_ORDER. Call Load to fetch the order.
func New(deps Deps, orderID domain.ID) *Orchestrator {
	if deps.NewKey == nil {
		deps.NewKey = payments.NewIdempotencyKey
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		deps:    deps,
		orderID: orderID,
		logger:  logger.With(zap.String("order_id", orderID.String())),
		tracker: shipping.NewTracker(),
		state:   StateLoadingOrder,
	}
}

// StartFromCart creates an order from the shopper's cart and returns an
// orchestrator already in ADDRESS.
func StartFromCart(ctx context.Context, deps Deps, cart CartSource) (*Orchestrator, error) {
	const op = "checkout.StartFromCart"
	if deps.Identity == nil {
		return nil, domain.E(domain.KindAuthRequired, op, "sign in to check out")
	}
	user, ok := deps.Identity.User()
	if !ok || user.ID.Empty() {
		return nil, domain.E(domain.KindAuthRequired, op, "sign in to check out")
	}
	if cart == nil || len(cart.Items()) == 0 {
		return nil, domain.Validation(op, domain.FieldErrors{"cart": "empty"})
	}
	order, err := deps.Orders.Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	o := New(deps, order.ID)
	o.mu.Lock()
	o.adoptLocked(order)
	o.mu.Unlock()
	o.logger.Info("checkout: order created from cart", zap.Int("items", order.ItemCount()))
	return o, nil
}

// OrderID returns the order being checked out.
func (o *Orchestrator) OrderID() domain.ID { return o.orderID }

// Load fetches the order. It is valid in LOADING_ORDER and, as a manual
// retry, in ERROR. Failures move to ERROR; nothing is retried automatically.
func (o *Orchestrator) Load(ctx context.Context) error {
	const op = "checkout.Load"
	o.mu.Lock()
	if o.state != StateLoadingOrder && o.state != StateError {
		defer o.mu.Unlock()
		return o.invalidStateLocked(op)
	}
	o.state = StateLoadingOrder
	o.lastErr = nil
	o.mu.Unlock()

	order, err := o.deps.Orders.Get(ctx, o.orderID)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failLocked(err)
		return err
	}
	o.adoptLocked(order)
	return nil
}

// adoptLocked installs a freshly fetched order and enters the matching step.
func (o *Orchestrator) adoptLocked(order domain.Order) {
	if order.ID.Empty() {
		order.ID = o.orderID
	}
	o.order = order
	if order.Status == domain.OrderPaid {
		o.transitionLocked(StateSuccess)
		return
	}
	o.transitionLocked(StateAddress)
}

// CommitPostalCode resolves shipping options for a postal code once the
// shopper finishes typing it. Only the most recent commit may publish
// options; results of superseded lookups are dropped whatever order they
// arrive in, and the call that issued them returns nil. A failed or empty
// lookup is recorded inline and leaves the checkout in ADDRESS.
func (o *Orchestrator) CommitPostalCode(ctx context.Context, raw string) error {
	const op = "checkout.CommitPostalCode"
	code, err := shipping.NormalizePostalCode(raw)

	o.mu.Lock()
	if o.state != StateAddress {
		defer o.mu.Unlock()
		return o.invalidStateLocked(op)
	}
	if err != nil {
		o.shippingErr = err
		o.mu.Unlock()
		return err
	}

	ticket := o.tracker.Issue(code)
	if o.cancelLookup != nil {
		o.cancelLookup()
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	o.cancelLookup = cancel
	o.postalCode = code
	o.options = nil
	o.selection = nil
	o.shippingErr = nil
	o.mu.Unlock()
	defer cancel()

	if o.deps.Debounce > 0 {
		timer := time.NewTimer(o.deps.Debounce)
		select {
		case <-timer.C:
		case <-lookupCtx.Done():
			timer.Stop()
		}
		if !o.tracker.Current(ticket) {
			return nil
		}
	}

	var options []domain.ShippingOption
	if lookupCtx.Err() == nil {
		options, err = o.deps.Shipping.Resolve(lookupCtx, code)
	} else {
		err = lookupCtx.Err()
	}
	if err == nil && len(options) == 0 {
		err = domain.E(domain.KindShippingUnavailable, op, "no shipping options for "+code)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.tracker.Complete(ticket) {
		o.logger.Debug("checkout: discarding stale shipping lookup", zap.String("postal_code", code))
		return nil
	}
	if err != nil {
		switch domain.KindOf(err) {
		case domain.KindShippingUnavailable, domain.KindSessionExpired:
		default:
			err = &domain.Error{Kind: domain.KindShippingUnavailable, Op: op, Message: domain.MessageOf(err), Err: err}
		}
		o.shippingErr = err
		if o.fatal(err) {
			o.failLocked(err)
		}
		o.logger.Debug("checkout: shipping unavailable", zap.String("postal_code", code), zap.Error(err))
		return err
	}
	o.options = append([]domain.ShippingOption(nil), options...)
	o.selection = &domain.ShippingSelection{PostalCode: code, Option: o.options[0]}
	return nil
}

// Calculating reports whether the latest postal-code lookup is in flight.
func (o *Orchestrator) Calculating() bool {
	return o.tracker.InFlight()
}

// SelectShipping picks one of the current options by name.
func (o *Orchestrator) SelectShipping(name string) error {
	const op = "checkout.SelectShipping"
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateAddress {
		return o.invalidStateLocked(op)
	}
	if o.tracker.InFlight() {
		return domain.E(domain.KindInFlight, op, "shipping calculation in progress")
	}
	for _, opt := range o.options {
		if strings.EqualFold(opt.Name, strings.TrimSpace(name)) {
			o.selection = &domain.ShippingSelection{PostalCode: o.postalCode, Option: opt}
			return nil
		}
	}
	return domain.Validation(op, domain.FieldErrors{"shipping": "not_found"})
}

// SubmitAddress validates the address step locally and, only if it is
// valid, persists the profile, patches the order's shipping cost and
// re-fetches the order, in that order. PAYMENT is entered only after all
// three succeed; any failure leaves the checkout in ADDRESS.
func (o *Orchestrator) SubmitAddress(ctx context.Context, form AddressForm) error {
	const op = "checkout.SubmitAddress"
	o.mu.Lock()
	if o.state != StateAddress {
		defer o.mu.Unlock()
		return o.invalidStateLocked(op)
	}
	if o.addressBusy {
		o.mu.Unlock()
		return domain.E(domain.KindInFlight, op, "address submission in progress")
	}
	if o.tracker.InFlight() {
		o.mu.Unlock()
		return domain.E(domain.KindInFlight, op, "shipping calculation in progress")
	}
	user, ok := o.user()
	if !ok {
		err := domain.E(domain.KindAuthRequired, op, "sign in to check out")
		o.lastErr = err
		o.mu.Unlock()
		return err
	}

	addr := form.Address.Normalize()
	if addr.PostalCode == "" {
		addr.PostalCode = o.postalCode
	}
	profile := users.Profile{
		Name:    user.Name,
		Email:   user.Email,
		TaxID:   domain.NormalizeTaxID(form.TaxID),
		Phone:   domain.NormalizePhone(form.Phone),
		Address: addr,
	}
	fields := users.ValidateProfile(profile)
	if o.selection == nil {
		fields["shipping"] = "required"
	} else if addr.PostalCode != "" && addr.PostalCode != o.selection.PostalCode {
		fields["postalCode"] = "mismatch"
	}
	if len(fields) > 0 {
		err := domain.Validation(op, fields)
		o.lastErr = err
		o.mu.Unlock()
		return err
	}

	selection := *o.selection
	o.addressBusy = true
	o.lastErr = nil
	o.mu.Unlock()

	refreshed, err := o.persistAddress(ctx, user.ID, profile, selection)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.addressBusy = false
	if err != nil {
		o.lastErr = err
		if o.fatal(err) {
			o.failLocked(err)
		}
		o.logger.Warn("checkout: address step failed", zap.Error(err))
		return err
	}
	if o.state != StateAddress {
		return o.invalidStateLocked(op)
	}
	if refreshed.ID.Empty() {
		refreshed.ID = o.orderID
	}
	o.order = refreshed
	o.transitionLocked(StatePayment)
	return nil
}

func (o *Orchestrator) persistAddress(ctx context.Context, userID domain.ID, profile users.Profile, selection domain.ShippingSelection) (domain.Order, error) {
	if err := o.deps.Profiles.UpdateProfile(ctx, userID, profile); err != nil {
		return domain.Order{}, err
	}
	if _, err := o.deps.Orders.PatchShipping(ctx, o.orderID, selection.Option.Price); err != nil {
		return domain.Order{}, err
	}
	return o.deps.Orders.Get(ctx, o.orderID)
}

// BackToAddress returns from PAYMENT to ADDRESS so the shopper can change
// shipping. The next payment attempt gets a new idempotency key as always.
func (o *Orchestrator) BackToAddress() error {
	const op = "checkout.BackToAddress"
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StatePayment {
		return o.invalidStateLocked(op)
	}
	if o.submitting {
		return ErrSubmissionInFlight
	}
	o.lastErr = nil
	o.transitionLocked(StateAddress)
	return nil
}

// PayCard submits a tokenized card payment.
func (o *Orchestrator) PayCard(ctx context.Context, in CardInput) (domain.Settlement, error) {
	if strings.TrimSpace(in.Token) == "" {
		err := domain.Validation("checkout.PayCard", domain.FieldErrors{"token": "required"})
		o.mu.Lock()
		if o.state == StatePayment && !o.submitting {
			o.lastErr = err
		}
		o.mu.Unlock()
		return domain.Settlement{}, err
	}
	return o.pay(ctx, domain.MethodCard, func(ctx context.Context, orderID domain.ID, email, key string) (domain.Settlement, error) {
		return o.deps.Payments.PayCard(ctx, payments.CardRequest{
			OrderID:         orderID,
			Token:           in.Token,
			PaymentMethodID: in.PaymentMethodID,
			Installments:    in.Installments,
			Email:           email,
			IdempotencyKey:  key,
		})
	})
}

// PayPix requests a Pix charge. A PENDING settlement completes checkout; the
// shopper then pays with the returned code.
func (o *Orchestrator) PayPix(ctx context.Context) (domain.Settlement, error) {
	return o.pay(ctx, domain.MethodPix, func(ctx context.Context, orderID domain.ID, email, key string) (domain.Settlement, error) {
		return o.deps.Payments.PayPix(ctx, payments.PixRequest{
			OrderID:        orderID,
			Email:          email,
			IdempotencyKey: key,
		})
	})
}

type submitFunc func(ctx context.Context, orderID domain.ID, email, key string) (domain.Settlement, error)

func (o *Orchestrator) pay(ctx context.Context, method domain.PaymentMethod, submit submitFunc) (domain.Settlement, error) {
	op := "checkout.Pay" + strings.ToUpper(string(method)[:1]) + string(method)[1:]
	o.mu.Lock()
	if o.state != StatePayment {
		defer o.mu.Unlock()
		return domain.Settlement{}, o.invalidStateLocked(op)
	}
	if o.submitting {
		o.mu.Unlock()
		return domain.Settlement{}, ErrSubmissionInFlight
	}
	user, ok := o.user()
	if !ok {
		err := domain.E(domain.KindAuthRequired, op, "sign in to pay")
		o.lastErr = err
		o.mu.Unlock()
		return domain.Settlement{}, err
	}
	email := user.Email
	if email == "" {
		email = o.order.BuyerEmail
	}
	attempt := domain.PaymentAttempt{Method: method, IdempotencyKey: o.deps.NewKey()}
	o.submitting = true
	o.lastErr = nil
	o.mu.Unlock()

	o.logger.Info("checkout: submitting payment",
		zap.String("method", string(method)),
		zap.String("idempotency_key", attempt.IdempotencyKey),
	)
	settlement, err := submit(ctx, o.orderID, email, attempt.IdempotencyKey)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.submitting = false
	attempt.Status = settlement.Status
	if err != nil {
		attempt.Error = domain.MessageOf(err)
		o.attempts = append(o.attempts, attempt)
		o.lastErr = err
		if o.fatal(err) {
			o.failLocked(err)
		}
		o.logger.Warn("checkout: payment failed", zap.String("method", string(method)), zap.Error(err))
		return settlement, err
	}
	o.attempts = append(o.attempts, attempt)
	o.settlement = &settlement
	if settlement.Status.Approved() {
		o.order.Status = domain.OrderPaid
	} else {
		o.order.Status = domain.OrderAwaitingPayment
	}
	o.transitionLocked(StateSuccess)
	return settlement, nil
}

// RefreshPayment asks the backend for the current status of a pending
// settlement. An approved status marks the order PAID; a failed one marks it
// FAILED. Checkout stays in SUCCESS either way.
func (o *Orchestrator) RefreshPayment(ctx context.Context) (domain.Settlement, error) {
	const op = "checkout.RefreshPayment"
	o.mu.Lock()
	if o.state != StateSuccess || o.settlement == nil {
		defer o.mu.Unlock()
		return domain.Settlement{}, o.invalidStateLocked(op)
	}
	current := *o.settlement
	if !current.Status.Pending() {
		o.mu.Unlock()
		return current, nil
	}
	if current.TransactionID == "" {
		o.mu.Unlock()
		return current, domain.E(domain.KindInvalidState, op, "settlement has no transaction id")
	}
	if o.refreshing {
		o.mu.Unlock()
		return current, ErrSubmissionInFlight
	}
	o.refreshing = true
	o.mu.Unlock()

	latest, err := o.deps.Payments.Status(ctx, current.TransactionID)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshing = false
	if err != nil {
		o.logger.Warn("checkout: payment status refresh failed", zap.Error(err))
		return current, err
	}
	if latest.TransactionID == "" {
		latest.TransactionID = current.TransactionID
	}
	if latest.QRCode == "" && latest.QRCodeBase64 == "" {
		latest.QRCode, latest.QRCodeBase64 = current.QRCode, current.QRCodeBase64
	}
	if latest.Amount.IsZero() {
		latest.Amount = current.Amount
	}
	o.settlement = &latest
	switch {
	case latest.Status.Approved():
		o.order.Status = domain.OrderPaid
	case !latest.Status.Pending():
		o.order.Status = domain.OrderFailed
	}
	if n := len(o.attempts); n > 0 {
		o.attempts[n-1].Status = latest.Status
	}
	o.logger.Info("checkout: payment status refreshed", zap.String("status", string(latest.Status)))
	return latest, nil
}

// fatal reports errors after which the checkout cannot continue.
func (o *Orchestrator) fatal(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindOrderNotFound, domain.KindSessionExpired:
		return true
	}
	return false
}

func (o *Orchestrator) failLocked(err error) {
	o.lastErr = err
	if o.cancelLookup != nil {
		o.cancelLookup()
	}
	o.tracker.Reset()
	o.transitionLocked(StateError)
}

func (o *Orchestrator) transitionLocked(next State) {
	if o.state == next {
		return
	}
	o.logger.Debug("checkout: transition", zap.String("from", string(o.state)), zap.String("to", string(next)))
	o.state = next
}

func (o *Orchestrator) invalidStateLocked(op string) error {
	return domain.E(domain.KindInvalidState, op, "not allowed in "+string(o.state))
}

func (o *Orchestrator) user() (domain.User, bool) {
	if o.deps.Identity == nil {
		return domain.User{}, false
	}
	u, ok := o.deps.Identity.User()
	if !ok || u.ID.Empty() {
		return domain.User{}, false
	}
	return u, true
}

// View is a point-in-time copy of the checkout for rendering.
type View struct {
	State       State
	OrderID     domain.ID
	Order       domain.Order
	PostalCode  string
	Options     []domain.ShippingOption
	Selection   *domain.ShippingSelection
	Calculating bool
	Submitting  bool

	ItemsSubtotal domain.Money
	ShippingPrice domain.Money
	FinalAmount   domain.Money

	// ShippingError is the inline lookup failure shown next to the postal code.
	ShippingError error
	// Error is the last failure of a step-level operation.
	Error error

	Settlement *domain.Settlement
	Attempts   []domain.PaymentAttempt
}

// Snapshot returns the current view. Totals always come from the items plus
// the explicit selection, never from a shipping cost the server may already
// have folded into the stored total.
func (o *Orchestrator) Snapshot() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	v := View{
		State:         o.state,
		OrderID:       o.orderID,
		Order:         o.order,
		PostalCode:    o.postalCode,
		Options:       append([]domain.ShippingOption(nil), o.options...),
		Calculating:   o.tracker.InFlight(),
		Submitting:    o.submitting || o.addressBusy,
		ShippingError: o.shippingErr,
		Error:         o.lastErr,
		Attempts:      append([]domain.PaymentAttempt(nil), o.attempts...),
	}
	v.Order.Items = append([]domain.OrderItem(nil), o.order.Items...)
	if o.selection != nil {
		sel := *o.selection
		v.Selection = &sel
		v.ShippingPrice = sel.Option.Price
	}
	if o.settlement != nil {
		s := *o.settlement
		v.Settlement = &s
	}
	if o.order.HasItemData {
		v.ItemsSubtotal = domain.ItemsSubtotal(o.order.Items)
	} else {
		v.ItemsSubtotal = o.order.TotalAmount.Sub(o.order.ShippingCost)
	}
	v.FinalAmount = domain.FinalAmount(o.order, v.Selection)
	return v
}
