package pipeline

import (
	"math"
	"strconv"

	"github.com/dispatchmate/dmate-go/contracts"
)

// OrderFirst pins an interceptor ahead of every explicitly ordered one.
// It is reserved for stages that must observe everything, such as outer
// error boundaries.
const OrderFirst = math.MinInt

// Registrations without a usable declared order sort after all explicitly
// ordered ones while keeping their relative registration order. The band
// sits near the top of the integer range; a true order recomputed at
// specialization time replaces the placeholder during assembly.
const deferredOrderBase = math.MaxInt - 1_000_000

// deferredOrder returns the placeholder for registration index idx.
func deferredOrder(idx int) int { return deferredOrderBase + idx }

// isDeferredOrder reports whether v lies inside the placeholder band.
func isDeferredOrder(v int) bool { return v >= deferredOrderBase }

// declaredOrderOf reads an instance's declared order. The second result
// is false when the instance does not implement contracts.Ordered or
// returns contracts.UnspecifiedOrder, which marks an inherited accessor
// rather than a real declaration.
func declaredOrderOf(instance any) (int, bool) {
	o, ok := instance.(contracts.Ordered)
	if !ok {
		return 0, false
	}
	v := o.InterceptorOrder()
	if v == contracts.UnspecifiedOrder {
		return 0, false
	}
	return v, true
}

// OrderDisplay renders an order value for reports: "first" for the
// sentinel minimum, "deferred" for values in the placeholder band, and
// the plain number otherwise.
func OrderDisplay(order int) string {
	switch {
	case order == OrderFirst:
		return "first"
	case isDeferredOrder(order):
		return "deferred"
	default:
		return strconv.Itoa(order)
	}
}
