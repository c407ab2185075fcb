package sample

// Budget pairs a filter with a per-bucket reservoir capacity.
//
// Budgets are ordered: an event is offered to each matching budget in
// declaration order, and an item displaced from one reservoir cascades
// to the next matching budget. Programs use early budgets to guarantee
// headroom for rare events (errors) while later, wider budgets sample
// the common pool.
type Budget struct {
	// Filter selects the entries this budget is interested in.
	Filter Filter

	// Capacity is the reservoir size for one bucket:
	// ceil(rate_per_second × bucket_duration_seconds).
	Capacity int
}
