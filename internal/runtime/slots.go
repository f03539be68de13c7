package runtime

// Well-known context slots. Generated code binds a statement's auxiliary
// clause data into these names immediately before the dispatch call and
// clears them right after, so clause data never leaks across statements.
// Action implementations read them through the resolving API like any other
// binding.
const (
	SlotLiteral          = "_literal_"
	SlotExpression       = "_expression_"
	SlotAggregationType  = "_aggregation_type_"
	SlotAggregationField = "_aggregation_field_"
	SlotWhereField       = "_where_field_"
	SlotWhereOp          = "_where_op_"
	SlotWhereValue       = "_where_value_"
	SlotByPattern        = "_by_pattern_"
	SlotByFlags          = "_by_flags_"
)

// Slots lists every well-known slot name, in binding order.
var Slots = []string{
	SlotLiteral,
	SlotExpression,
	SlotAggregationType,
	SlotAggregationField,
	SlotWhereField,
	SlotWhereOp,
	SlotWhereValue,
	SlotByPattern,
	SlotByFlags,
}
