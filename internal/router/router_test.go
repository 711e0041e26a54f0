package router

import (
	"testing"

	"github.com/tablekit/tablekit/internal/config"
	"github.com/tablekit/tablekit/internal/pool"
)

func newTestRouter(env config.Environment) *Router {
	cfg := config.DefaultConfig()
	cfg.Environment = env
	return New(cfg)
}

func TestRoute_AlwaysReplicaEntities(t *testing.T) {
	r := newTestRouter(config.EnvProduction)

	// The allow-list fires for every operation shape, including writes
	for _, op := range []Operation{OpFindMany, OpCreateMany} {
		for _, entity := range []Entity{EntityImportJob, EntitySchemaMetadata} {
			d := r.Route(op, entity, Args{})
			if d.Target != pool.Replica {
				t.Errorf("Route(%s, %s, empty args) = %s, want replica", op, entity, d.Target)
			}
		}
	}
}

func TestRoute_FindManyShape(t *testing.T) {
	r := newTestRouter(config.EnvProduction)

	cases := []struct {
		name string
		args Args
		want pool.Kind
	}{
		{"default", Args{}, pool.Primary},
		{"take at threshold", Args{Take: 1000}, pool.Primary},
		{"take above threshold", Args{Take: 1001}, pool.Replica},
		{"marker in filter", Args{Filter: map[string]interface{}{"replicaEligible": true}}, pool.Replica},
		{"nested marker", Args{Filter: map[string]interface{}{"and": []map[string]interface{}{{"replicaEligible": true}}}}, pool.Replica},
		{"marker false", Args{Filter: map[string]interface{}{"replicaEligible": false}}, pool.Primary},
		{"includes requested", Args{Include: []string{"versions"}}, pool.Replica},
		{"plain filter", Args{Filter: map[string]interface{}{"owner": "u1"}}, pool.Primary},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := r.Route(OpFindMany, EntityGlobalSchema, tc.args)
			if d.Target != tc.want {
				t.Errorf("got %s (%s), want %s", d.Target, d.Reason, tc.want)
			}
		})
	}
}

func TestRoute_CreateManyShape(t *testing.T) {
	r := newTestRouter(config.EnvProduction)

	if d := r.Route(OpCreateMany, EntityDataRow, Args{Rows: 100}); d.Target != pool.Primary {
		t.Errorf("100 rows is at the threshold, want primary, got %s", d.Target)
	}
	if d := r.Route(OpCreateMany, EntityDataRow, Args{Rows: 101}); d.Target != pool.Replica {
		t.Errorf("101 rows exceeds the threshold, want replica, got %s", d.Target)
	}
}

func TestRoute_UnserializableFilterFailsOpen(t *testing.T) {
	r := newTestRouter(config.EnvProduction)

	// Channels cannot be marshaled; the filter is treated as markerless
	d := r.Route(OpFindMany, EntityGlobalSchema, Args{Filter: make(chan int)})
	if d.Target != pool.Primary {
		t.Errorf("unserializable filter must fail open to primary, got %s", d.Target)
	}
}

func TestRoute_DiagnosticCommentOutsideProduction(t *testing.T) {
	dev := newTestRouter(config.EnvDevelopment)
	prod := newTestRouter(config.EnvProduction)
	args := Args{Take: 5000}

	if d := dev.Route(OpFindMany, EntityGlobalSchema, args); d.Comment == "" {
		t.Error("development routing must carry a diagnostic comment")
	}
	if d := prod.Route(OpFindMany, EntityGlobalSchema, args); d.Comment != "" {
		t.Errorf("production routing must not carry comments, got %q", d.Comment)
	}

	// Primary-routed calls carry no comment even in development
	if d := dev.Route(OpFindMany, EntityGlobalSchema, Args{}); d.Comment != "" {
		t.Errorf("default routing must not carry comments, got %q", d.Comment)
	}
}

func TestRoute_CustomThresholds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Environment = config.EnvProduction
	cfg.Router.FindManyTakeThreshold = 10
	cfg.Router.CreateManyRowThreshold = 3
	r := New(cfg)

	if d := r.Route(OpFindMany, EntityGlobalSchema, Args{Take: 11}); d.Target != pool.Replica {
		t.Error("custom findMany threshold not applied")
	}
	if d := r.Route(OpCreateMany, EntityDataRow, Args{Rows: 4}); d.Target != pool.Replica {
		t.Error("custom createMany threshold not applied")
	}
}
