// Package router decides, per operation, whether a database call should be
// served by the replica pool or the default primary connection.
package router

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/pool"
)

// Operation is a routable database operation.
type Operation string

const (
	OpFindMany   Operation = "findMany"
	OpCreateMany Operation = "createMany"
)

// Entity enumerates the routable persistence entities. Routing rules key off
// this enumeration instead of raw model-name strings.
type Entity string

const (
	EntityImportJob      Entity = "import_job"
	EntitySchemaMetadata Entity = "schema_metadata"
	EntityGlobalSchema   Entity = "global_schema"
	EntitySchemaVersion  Entity = "schema_version"
	EntityDataRow        Entity = "data_row"
)

// alwaysReplica lists entities routed to the replica for every operation,
// regardless of operation shape. Kept as data, not branching code.
var alwaysReplica = map[Entity]bool{
	EntityImportJob:      true,
	EntitySchemaMetadata: true,
}

// MarkerToken is the routing hint searched for in the serialized filter.
// Callers embed it in a filter to force replica routing for a heavy read.
const MarkerToken = `"replicaEligible":true`

// Args describes the shape of an operation for routing purposes. Filter is an
// opaque predicate; only its JSON serialization is inspected.
type Args struct {
	// Take is the requested row limit for findMany
	Take int

	// Filter is the caller's predicate, inspected for MarkerToken
	Filter interface{}

	// Include lists relational includes/projections requested by the caller
	Include []string

	// Rows is the payload row count for createMany
	Rows int
}

// Decision is the routing outcome. Routing never fails; a malformed filter
// simply does not match the marker.
type Decision struct {
	// Target is the pool the operation should borrow from
	Target pool.Kind

	// Reason names the rule that fired, for logs and diagnostics
	Reason string

	// Comment is a diagnostic annotation set outside production. It must never
	// be spliced into query text; it exists for observability only.
	Comment string
}

// Router routes operations between the primary and replica pools.
type Router struct {
	findManyTakeThreshold  int
	createManyRowThreshold int
	production             bool
}

// New creates a router from configuration.
func New(cfg *config.Config) *Router {
	return &Router{
		findManyTakeThreshold:  cfg.Router.FindManyTakeThreshold,
		createManyRowThreshold: cfg.Router.CreateManyRowThreshold,
		production:             cfg.IsProduction(),
	}
}

// Route decides the target pool for an operation. Rules are evaluated in
// precedence order: always-replica entities, then operation-shape rules, then
// the primary default.
func (r *Router) Route(op Operation, entity Entity, args Args) Decision {
	d := r.decide(op, entity, args)
	if !r.production && d.Target == pool.Replica {
		d.Comment = fmt.Sprintf("routed=replica entity=%s op=%s reason=%s", entity, op, d.Reason)
	}
	return d
}

func (r *Router) decide(op Operation, entity Entity, args Args) Decision {
	if alwaysReplica[entity] {
		return Decision{Target: pool.Replica, Reason: "always-replica entity"}
	}

	switch op {
	case OpFindMany:
		if args.Take > r.findManyTakeThreshold {
			return Decision{Target: pool.Replica, Reason: fmt.Sprintf("take %d exceeds threshold %d", args.Take, r.findManyTakeThreshold)}
		}
		if filterHasMarker(args.Filter) {
			return Decision{Target: pool.Replica, Reason: "filter carries replica marker"}
		}
		if len(args.Include) > 0 {
			return Decision{Target: pool.Replica, Reason: "relational includes requested"}
		}
	case OpCreateMany:
		if args.Rows > r.createManyRowThreshold {
			return Decision{Target: pool.Replica, Reason: fmt.Sprintf("bulk insert of %d rows exceeds threshold %d", args.Rows, r.createManyRowThreshold)}
		}
	}

	return Decision{Target: pool.Primary, Reason: "default"}
}

// filterHasMarker reports whether the filter serializes to contain the routing
// marker. Unserializable filters fail open: they do not match.
func filterHasMarker(filter interface{}) bool {
	if filter == nil {
		return false
	}
	data, err := json.Marshal(filter)
	if err != nil {
		return false
	}
	return strings.Contains(string(data), MarkerToken)
}
